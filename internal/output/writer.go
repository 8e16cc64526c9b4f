// Package output writes transcript and subtitle artifacts into the output
// directory and optionally mirrors them to remote storage.
//
// Paths are derived from the input's base name: B.txt and B.srt. Writes are
// atomic and overwrite existing files; deciding whether to skip an input is
// the caller's job.
package output

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"vidscribe/internal/fileutil"
	"vidscribe/internal/logging"
	"vidscribe/internal/services"
	"vidscribe/internal/subtitles"
	"vidscribe/internal/transcript"
)

// Artifact extensions.
const (
	TranscriptExt = ".txt"
	SubtitleExt   = ".srt"
	AudioExt      = ".wav"
)

// Mirror uploads a written file to remote storage.
type Mirror interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// Option customizes a Writer.
type Option func(*Writer)

// WithLogger sets the writer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = logging.NewComponentLogger(logger, "output")
	}
}

// WithMirrorRequired makes mirror failures fail the write.
func WithMirrorRequired(required bool) Option {
	return func(w *Writer) {
		w.mirrorRequired = required
	}
}

// Writer places artifacts in a single output directory.
type Writer struct {
	dir            string
	mirror         Mirror
	mirrorRequired bool
	logger         *slog.Logger
}

// New returns a Writer for dir. mirror may be nil.
func New(dir string, mirror Mirror, opts ...Option) *Writer {
	w := &Writer{
		dir:    dir,
		mirror: mirror,
		logger: logging.NewComponentLogger(nil, "output"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// TranscriptPath returns the transcript location for base.
func (w *Writer) TranscriptPath(base string) string {
	return filepath.Join(w.dir, base+TranscriptExt)
}

// SubtitlePath returns the subtitle location for base.
func (w *Writer) SubtitlePath(base string) string {
	return filepath.Join(w.dir, base+SubtitleExt)
}

// AudioPath returns the scratch WAV location for base.
func (w *Writer) AudioPath(base string) string {
	return filepath.Join(w.dir, base+AudioExt)
}

// WriteTranscript writes text (no trailing newline) to B.txt.
func (w *Writer) WriteTranscript(ctx context.Context, base, text string) (string, error) {
	path := w.TranscriptPath(base)
	if err := w.write(ctx, path, []byte(text)); err != nil {
		return "", err
	}
	return path, nil
}

// WriteSubtitles renders segments as SRT into B.srt.
func (w *Writer) WriteSubtitles(ctx context.Context, base string, segments []transcript.Segment) (string, error) {
	path := w.SubtitlePath(base)
	if err := w.write(ctx, path, []byte(subtitles.Render(segments))); err != nil {
		return "", err
	}
	return path, nil
}

func (w *Writer) write(ctx context.Context, path string, data []byte) error {
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "write", filepath.Base(path), "", err)
	}
	if w.mirror == nil {
		return nil
	}

	key, err := w.mirror.Upload(ctx, path)
	if err != nil {
		if w.mirrorRequired {
			if _, rmErr := fileutil.RemoveIfExists(path); rmErr != nil {
				logging.WarnWithContext(logging.WithContext(ctx, w.logger), "remove unmirrored artifact failed",
					"artifact_cleanup_failed",
					logging.String("path", path),
					logging.Error(rmErr),
				)
			}
			return fmt.Errorf("mirror %s: %w", filepath.Base(path), err)
		}
		logging.WarnWithContext(logging.WithContext(ctx, w.logger), "mirror upload failed",
			"mirror_upload_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the local file was written; the remote copy is missing"),
		)
		return nil
	}
	logging.WithContext(ctx, w.logger).Debug("artifact mirrored",
		logging.String("path", path),
		logging.String("key", key),
	)
	return nil
}
