// Package services defines shared utilities consumed by the transcription
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, item names, and stage names
//     for logging.
//   - Structured error markers plus the Wrap helper that separate fatal
//     startup failures from failures scoped to a single batch item.
//
// Use these helpers when wiring new pipeline logic so error handling and
// observability stay uniform.
package services
