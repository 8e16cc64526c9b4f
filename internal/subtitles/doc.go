// Package subtitles renders transcript segments as SubRip (SRT) subtitles and
// parses SRT content back into cues.
//
// Timestamps use the HH:MM:SS,mmm layout. Fractional seconds are truncated to
// whole milliseconds, never rounded, so a rendered file never places a cue
// later than the engine reported it.
package subtitles
