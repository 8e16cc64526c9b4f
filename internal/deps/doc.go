// Package deps checks for the external binaries vidscribe shells out to and
// probes for a usable CUDA GPU.
package deps
