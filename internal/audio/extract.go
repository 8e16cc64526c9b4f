package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"vidscribe/internal/logging"
)

// DefaultSampleRate is the rate Whisper-family models are trained on.
const DefaultSampleRate = 16000

const stderrTailLines = 5

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Option customizes an Extractor.
type Option func(*Extractor)

// WithRunner replaces process execution (for testing).
func WithRunner(run Runner) Option {
	return func(e *Extractor) {
		if run != nil {
			e.run = run
		}
	}
}

// WithLookPath replaces binary resolution (for testing).
func WithLookPath(lookPath func(string) (string, error)) Option {
	return func(e *Extractor) {
		if lookPath != nil {
			e.lookPath = lookPath
		}
	}
}

// Extractor converts videos to model-ready WAV files.
type Extractor struct {
	binary   string
	logger   *slog.Logger
	run      Runner
	lookPath func(string) (string, error)
}

// NewExtractor builds an extractor that invokes the given ffmpeg binary.
func NewExtractor(binary string, logger *slog.Logger, opts ...Option) *Extractor {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	e := &Extractor{
		binary:   binary,
		logger:   logging.NewComponentLogger(logger, "audio"),
		run:      runCommand,
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract writes a mono PCM WAV of videoPath to targetPath at sampleRate Hz,
// overwriting any existing file. It returns false when ffmpeg is unavailable
// or fails; the reason is logged as a warning.
func (e *Extractor) Extract(ctx context.Context, videoPath, targetPath string, sampleRate int) bool {
	logger := logging.WithContext(ctx, e.logger)
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	binary, err := e.lookPath(e.binary)
	if err != nil {
		logging.WarnWithContext(logger, "ffmpeg not found; transcribing original video",
			"audio_extract_unavailable",
			logging.String("binary", e.binary),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "install ffmpeg or set audio.ffmpeg_binary"),
			logging.String(logging.FieldImpact, "the model decodes the video container directly"),
		)
		return false
	}

	partial := PartialPath(targetPath)
	output, err := e.run(ctx, binary, BuildArgs(videoPath, partial, sampleRate)...)
	if err == nil {
		err = finalize(partial, targetPath)
	}
	if err != nil {
		removeQuietly(logger, partial)
		logging.WarnWithContext(logger, "audio extraction failed; transcribing original video",
			"audio_extract_failed",
			logging.String("video", videoPath),
			logging.Error(err),
			logging.String("stderr", stderrTail(output)),
			logging.String(logging.FieldImpact, "the model decodes the video container directly"),
		)
		return false
	}

	logger.Debug("audio extracted",
		logging.String("video", videoPath),
		logging.String("audio", targetPath),
		logging.Int("sample_rate", sampleRate),
	)
	return true
}

// BuildArgs returns the ffmpeg arguments for a mono 16-bit PCM extraction.
func BuildArgs(videoPath, dest string, sampleRate int) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		dest,
	}
}

// PartialPath is the scratch location ffmpeg writes to before the result is
// renamed into place.
func PartialPath(targetPath string) string {
	ext := filepath.Ext(targetPath)
	return strings.TrimSuffix(targetPath, ext) + ".partial" + ext
}

func finalize(partial, target string) error {
	info, err := os.Stat(partial)
	if err != nil {
		return fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("ffmpeg produced an empty file")
	}
	if err := os.Rename(partial, target); err != nil {
		return fmt.Errorf("move extracted audio into place: %w", err)
	}
	return nil
}

func removeQuietly(logger *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Debug("remove partial audio failed", logging.String("path", path), logging.Error(err))
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

func stderrTail(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) > stderrTailLines {
		lines = lines[len(lines)-stderrTailLines:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
