// Package engine runs Whisper-family speech recognition as an external CLI
// and exposes its output as a transcript.Stream.
//
// The model, device, and numeric precision are resolved once in New; a
// configuration that cannot run (CUDA requested without a GPU, launcher not
// on PATH, unknown language hint) fails construction so a batch aborts before
// touching any file. Each Transcribe call launches one process:
//
//   - faster-whisper (whisper-ctranslate2) prints segments as it decodes; the
//     stream reads them from stdout while the process is still running.
//   - whisperx writes a JSON document; the stream decodes its segments array
//     token by token without loading the whole file.
//
// Closing a stream kills an unfinished process and removes its scratch
// directory.
package engine
