// Package ffprobe wraps ffprobe JSON output for the few media facts vidscribe
// needs: container duration and whether an audio stream exists.
//
// Prober.Duration is best effort and returns 0 whenever ffprobe is missing or
// the container does not report a usable duration.
package ffprobe
