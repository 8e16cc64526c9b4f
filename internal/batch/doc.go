// Package batch discovers video files and drives each one through the
// transcription pipeline.
//
// Items are processed sequentially in discovery order. Every item ends in
// exactly one Outcome (Succeeded, Skipped, NoSpeech, Failed) and increments
// exactly one counter; a failure in one item never stops the run. Extracted
// audio is removed on every terminal path, including panics recovered at the
// item boundary.
//
// Collaborators are interfaces so the runner can be exercised with fakes:
// Extractor, Transcriber, Writer, Reporter, and Recorder.
package batch
