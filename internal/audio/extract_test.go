package audio

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"vidscribe/internal/logging"
	"vidscribe/internal/testsupport"
)

func TestBuildArgs(t *testing.T) {
	args := BuildArgs("/in/talk.mp4", "/out/talk.partial.wav", 22050)
	want := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", "/in/talk.mp4",
		"-vn", "-sn", "-dn",
		"-ac", "1", "-ar", "22050", "-c:a", "pcm_s16le",
		"-f", "wav", "/out/talk.partial.wav",
	}
	if !slices.Equal(args, want) {
		t.Fatalf("unexpected args:\n got %v\nwant %v", args, want)
	}
}

func TestPartialPath(t *testing.T) {
	if got := PartialPath("/out/talk.wav"); got != "/out/talk.partial.wav" {
		t.Fatalf("unexpected partial path %q", got)
	}
}

func TestExtractSuccessRenamesIntoPlace(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "talk.wav")

	var gotArgs []string
	extractor := NewExtractor("ffmpeg", logging.NewNop(),
		WithLookPath(func(string) (string, error) { return "/usr/bin/ffmpeg", nil }),
		WithRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
			gotArgs = args
			return nil, os.WriteFile(args[len(args)-1], []byte("RIFF"), 0o644)
		}),
	)

	if !extractor.Extract(context.Background(), "/in/talk.mp4", target, 0) {
		t.Fatal("expected extraction to succeed")
	}
	if got := testsupport.ReadFile(t, target); got != "RIFF" {
		t.Fatalf("unexpected target contents %q", got)
	}
	testsupport.AssertMissing(t, PartialPath(target))
	if !slices.Contains(gotArgs, "16000") {
		t.Fatalf("expected default sample rate in args %v", gotArgs)
	}
}

func TestExtractMissingBinaryReturnsFalse(t *testing.T) {
	var logs bytes.Buffer
	logger, _, err := logging.New(logging.Options{Format: "json", Console: &logs})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	ran := false
	extractor := NewExtractor("ffmpeg", logger,
		WithLookPath(func(string) (string, error) { return "", errors.New("not found") }),
		WithRunner(func(context.Context, string, ...string) ([]byte, error) {
			ran = true
			return nil, nil
		}),
	)

	target := filepath.Join(t.TempDir(), "talk.wav")
	if extractor.Extract(context.Background(), "/in/talk.mp4", target, 16000) {
		t.Fatal("expected extraction to report failure")
	}
	if ran {
		t.Fatal("runner should not be invoked without a binary")
	}
	if !strings.Contains(logs.String(), "audio_extract_unavailable") {
		t.Fatalf("expected warning event, got %q", logs.String())
	}
	testsupport.AssertMissing(t, target)
}

func TestExtractFailureRemovesPartialOutput(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "talk.wav")

	var logs bytes.Buffer
	logger, _, err := logging.New(logging.Options{Format: "json", Console: &logs})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	extractor := NewExtractor("ffmpeg", logger,
		WithLookPath(func(string) (string, error) { return "/usr/bin/ffmpeg", nil }),
		WithRunner(func(_ context.Context, _ string, args ...string) ([]byte, error) {
			_ = os.WriteFile(args[len(args)-1], []byte("half"), 0o644)
			return []byte("Stream map '0:a' matches no streams"), errors.New("exit status 1")
		}),
	)

	if extractor.Extract(context.Background(), "/in/silent.mp4", target, 16000) {
		t.Fatal("expected extraction failure")
	}
	testsupport.AssertMissing(t, target)
	testsupport.AssertMissing(t, PartialPath(target))
	if !strings.Contains(logs.String(), "matches no streams") {
		t.Fatalf("expected stderr tail in warning, got %q", logs.String())
	}
}

func TestExtractEmptyOutputIsFailure(t *testing.T) {
	target := filepath.Join(t.TempDir(), "talk.wav")
	extractor := NewExtractor("ffmpeg", logging.NewNop(),
		WithLookPath(func(string) (string, error) { return "/usr/bin/ffmpeg", nil }),
		WithRunner(func(_ context.Context, _ string, args ...string) ([]byte, error) {
			return nil, os.WriteFile(args[len(args)-1], nil, 0o644)
		}),
	)
	if extractor.Extract(context.Background(), "/in/talk.mp4", target, 16000) {
		t.Fatal("expected empty output to count as failure")
	}
	testsupport.AssertMissing(t, PartialPath(target))
}

func TestExtractWithStubBinary(t *testing.T) {
	binDir := t.TempDir()
	testsupport.WriteStub(t, binDir, "ffmpeg", "for last; do :; done\nprintf 'RIFF' > \"$last\"\n")
	testsupport.PrependPath(t, binDir)

	target := filepath.Join(t.TempDir(), "talk.wav")
	if !NewExtractor("ffmpeg", nil).Extract(context.Background(), "/in/talk.mp4", target, 16000) {
		t.Fatal("expected stubbed ffmpeg extraction to succeed")
	}
	if got := testsupport.ReadFile(t, target); got != "RIFF" {
		t.Fatalf("unexpected contents %q", got)
	}
}
