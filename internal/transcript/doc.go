// Package transcript defines timed speech segments, the forward-only stream
// engines produce them through, and the aggregation that turns a stream into
// transcript text.
//
// A Stream is consumed exactly once. Collect drains it in order, joins the
// trimmed segment texts with single spaces, and reports word count and
// duration. An empty aggregate means the engine heard no speech.
package transcript
