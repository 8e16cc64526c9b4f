// Package preflight provides readiness checks for the filesystem paths and
// external tools vidscribe depends on.
//
// The `vidscribe check` command renders RunAll as a table, and `vidscribe
// run` calls RunAll before acquiring the output lock so a doomed batch fails
// before any model is loaded. Optional concerns (GPU, mirror, notifications)
// report their state without failing the run.
package preflight
