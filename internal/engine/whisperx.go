package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"

	"vidscribe/internal/config"
	"vidscribe/internal/services"
	"vidscribe/internal/transcript"
)

// WhisperX launcher settings.
const (
	WhisperXTool    = "whisperx"
	CUDAIndexURL    = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL    = "https://pypi.org/simple"
	whisperXBatch   = "4"
	whisperXVADOn   = "0.500"
	whisperXVADOff  = "0.363"
	whisperXVADKind = "silero"
)

var whisperXLanguage = regexp.MustCompile(`Detected language: ([a-z]{2,3}) \(([0-9.]+)\)`)

type whisperX struct{}

func (whisperX) transcribe(ctx context.Context, e *Engine, input string) (*transcript.Stream, Info, error) {
	scratch, err := e.scratchDir()
	if err != nil {
		return nil, Info{}, err
	}

	args := e.command(WhisperXTool, e.whisperXArgs(input, scratch), e.whisperXIndexArgs()...)
	cmd := exec.CommandContext(ctx, e.binary, args...) //nolint:gosec
	// Torch 2.6 defaults torch.load to weights_only, which breaks pyannote checkpoints.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		_ = removeScratch(scratch)
		if ctxErr := ctx.Err(); ctxErr != nil {
			marker := services.ErrTransient
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				marker = services.ErrTimeout
			}
			return nil, Info{}, services.Wrap(marker, stageTranscribe, WhisperXTool, "interrupted", ctxErr)
		}
		tail := &tailBuffer{limit: stderrTailBytes}
		_, _ = tail.Write(output)
		return nil, Info{}, services.Wrap(services.ErrExternalTool, stageTranscribe, WhisperXTool, tail.Tail(), err)
	}

	var info Info
	if m := whisperXLanguage.FindSubmatch(output); m != nil {
		info.Language = string(m[1])
		info.LanguageProbability, _ = strconv.ParseFloat(string(m[2]), 64)
	}

	jsonPath, err := findJSON(scratch)
	if err != nil {
		_ = removeScratch(scratch)
		return nil, Info{}, services.Wrap(services.ErrExternalTool, stageTranscribe, WhisperXTool, "locate output", err)
	}
	file, err := os.Open(jsonPath)
	if err != nil {
		_ = removeScratch(scratch)
		return nil, Info{}, services.Wrap(services.ErrExternalTool, stageTranscribe, WhisperXTool, "open output", err)
	}

	decoder := newSegmentDecoder(file)
	closeFn := func() error {
		closeErr := file.Close()
		if err := removeScratch(scratch); err != nil {
			return err
		}
		return closeErr
	}
	next := func() (transcript.Segment, bool, error) {
		seg, ok, err := decoder.next()
		if err != nil {
			return transcript.Segment{}, false, services.Wrap(services.ErrExternalTool, stageTranscribe, WhisperXTool, "decode output", err)
		}
		return seg, ok, nil
	}
	return transcript.NewStream(next, closeFn), info, nil
}

func (e *Engine) whisperXIndexArgs() []string {
	if e.settings.Device == config.DeviceCUDA {
		return []string{"--index-url", CUDAIndexURL, "--extra-index-url", PypiIndexURL}
	}
	return []string{"--index-url", PypiIndexURL}
}

// VADCaveat describes how backend departs from the configured voice-activity
// settings. It is empty when the settings apply as written.
func VADCaveat(backend string, vad config.VAD) string {
	if backend != config.BackendWhisperX {
		return ""
	}
	if !vad.Enabled {
		return "whisperx always filters with its own VAD; vad.enabled=false is ignored"
	}
	return "whisperx uses fixed onset/offset thresholds; the vad.*_ms settings are ignored"
}

func (e *Engine) whisperXArgs(input, outputDir string) []string {
	s := e.settings
	args := []string{
		input,
		"--model", s.Model,
		"--batch_size", whisperXBatch,
		"--output_dir", outputDir,
		"--output_format", "json",
		"--beam_size", strconv.Itoa(s.BeamSize),
		"--temperature", formatFloat(s.Temperature),
		"--device", s.Device,
		"--compute_type", s.ComputeType,
	}
	if s.VAD.Enabled {
		args = append(args,
			"--vad_method", whisperXVADKind,
			"--vad_onset", whisperXVADOn,
			"--vad_offset", whisperXVADOff,
		)
	}
	if s.Language != "" {
		args = append(args, "--language", s.Language)
	}
	return args
}

func findJSON(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", errors.New("no json output written")
	}
	return matches[0], nil
}

type whisperXSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// segmentDecoder walks a whisperx JSON document and yields the elements of
// its top-level "segments" array one at a time.
type segmentDecoder struct {
	dec     *json.Decoder
	started bool
	done    bool
}

func newSegmentDecoder(r io.Reader) *segmentDecoder {
	return &segmentDecoder{dec: json.NewDecoder(r)}
}

func (d *segmentDecoder) next() (transcript.Segment, bool, error) {
	if d.done {
		return transcript.Segment{}, false, nil
	}
	if !d.started {
		if err := d.seekSegments(); err != nil {
			d.done = true
			return transcript.Segment{}, false, err
		}
		d.started = true
	}
	if !d.dec.More() {
		d.done = true
		if _, err := d.dec.Token(); err != nil {
			return transcript.Segment{}, false, fmt.Errorf("close segments array: %w", err)
		}
		return transcript.Segment{}, false, nil
	}
	var seg whisperXSegment
	if err := d.dec.Decode(&seg); err != nil {
		d.done = true
		return transcript.Segment{}, false, fmt.Errorf("decode segment: %w", err)
	}
	return transcript.Segment(seg), true, nil
}

// seekSegments advances the decoder to just inside the segments array,
// skipping any keys that precede it.
func (d *segmentDecoder) seekSegments() error {
	if err := expectDelim(d.dec, '{'); err != nil {
		return err
	}
	for d.dec.More() {
		tok, err := d.dec.Token()
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		if key == "segments" {
			return expectDelim(d.dec, '[')
		}
		var skip json.RawMessage
		if err := d.dec.Decode(&skip); err != nil {
			return fmt.Errorf("skip %q: %w", key, err)
		}
	}
	return errors.New("segments array missing")
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
