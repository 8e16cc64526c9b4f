// Package audio prepares model input by demuxing a video's audio track into a
// mono 16-bit PCM WAV file with ffmpeg.
//
// Extraction is an optimization, not a requirement: Extract reports success
// as a bool and callers fall back to the original video when it returns
// false. A failed extraction never leaves a partial file at the target path.
package audio
