package engine

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"vidscribe/internal/language"
	"vidscribe/internal/services"
	"vidscribe/internal/transcript"
)

// UVXCommand is the launcher used to run Python model CLIs in isolated environments.
const UVXCommand = "uvx"

// FasterWhisperTool is the faster-whisper command-line front end.
const FasterWhisperTool = "whisper-ctranslate2"

const maxLineBytes = 1024 * 1024

var (
	segmentLine  = regexp.MustCompile(`^\[((?:\d+:)?\d{1,2}:\d{2}[.,]\d{1,3}) --> ((?:\d+:)?\d{1,2}:\d{2}[.,]\d{1,3})\]\s?(.*)$`)
	languageLine = regexp.MustCompile(`^Detected language '([^']+)' with probability ([0-9.]+)`)
)

type fasterWhisper struct{}

func (fasterWhisper) transcribe(ctx context.Context, e *Engine, input string) (*transcript.Stream, Info, error) {
	scratch, err := e.scratchDir()
	if err != nil {
		return nil, Info{}, err
	}
	args := e.command(FasterWhisperTool, e.fasterWhisperArgs(input, scratch))
	proc, err := startProcess(ctx, FasterWhisperTool, e.binary, args, nil, scratch)
	if err != nil {
		_ = removeScratch(scratch)
		return nil, Info{}, err
	}

	scanner := bufio.NewScanner(proc.stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	// Read ahead to the first segment so a detected-language line printed
	// before it lands in Info.
	var (
		info    Info
		pending transcript.Segment
		primed  bool
		done    bool
	)
	for scanner.Scan() {
		line := scanner.Text()
		if seg, ok := parseSegmentLine(line); ok {
			pending, primed = seg, true
			break
		}
		if code, prob, ok := parseLanguageLine(line); ok {
			info.Language, info.LanguageProbability = code, prob
		}
	}
	if err := scanner.Err(); err != nil {
		_ = proc.close()
		return nil, Info{}, services.Wrap(services.ErrExternalTool, stageTranscribe, FasterWhisperTool, "read output", err)
	}

	next := func() (transcript.Segment, bool, error) {
		if primed {
			primed = false
			return pending, true, nil
		}
		if done {
			return transcript.Segment{}, false, nil
		}
		for scanner.Scan() {
			if seg, ok := parseSegmentLine(scanner.Text()); ok {
				return seg, true, nil
			}
		}
		done = true
		if err := scanner.Err(); err != nil {
			return transcript.Segment{}, false, services.Wrap(services.ErrExternalTool, stageTranscribe, FasterWhisperTool, "read output", err)
		}
		if err := proc.wait(ctx); err != nil {
			return transcript.Segment{}, false, err
		}
		return transcript.Segment{}, false, nil
	}
	return transcript.NewStream(next, proc.close), info, nil
}

func (e *Engine) fasterWhisperArgs(input, outputDir string) []string {
	s := e.settings
	args := []string{
		input,
		"--model", s.Model,
		"--device", s.Device,
		"--compute_type", s.ComputeType,
		"--beam_size", strconv.Itoa(s.BeamSize),
		"--temperature", formatFloat(s.Temperature),
	}
	if s.Language != "" {
		args = append(args, "--language", s.Language)
	}
	args = append(args, "--vad_filter", formatBool(s.VAD.Enabled))
	if s.VAD.Enabled {
		args = append(args,
			"--vad_min_silence_duration_ms", strconv.Itoa(s.VAD.MinSilenceMS),
			"--vad_speech_pad_ms", strconv.Itoa(s.VAD.SpeechPadMS),
			"--vad_min_speech_duration_ms", strconv.Itoa(s.VAD.MinSpeechMS),
		)
	}
	return append(args,
		"--verbose", "True",
		"--output_format", "txt",
		"--output_dir", outputDir,
	)
}

// parseSegmentLine parses "[MM:SS.mmm --> MM:SS.mmm] text" (hours optional).
func parseSegmentLine(line string) (transcript.Segment, bool) {
	m := segmentLine.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return transcript.Segment{}, false
	}
	start, err := parseClock(m[1])
	if err != nil {
		return transcript.Segment{}, false
	}
	end, err := parseClock(m[2])
	if err != nil {
		return transcript.Segment{}, false
	}
	return transcript.Segment{Start: start, End: end, Text: m[3]}, true
}

func parseClock(value string) (float64, error) {
	parts := strings.Split(strings.ReplaceAll(value, ",", "."), ":")
	var total float64
	for i, part := range parts {
		var (
			n   float64
			err error
		)
		if i == len(parts)-1 {
			n, err = strconv.ParseFloat(part, 64)
		} else {
			var whole int
			whole, err = strconv.Atoi(part)
			n = float64(whole)
		}
		if err != nil {
			return 0, fmt.Errorf("parse clock %q: %w", value, err)
		}
		total = total*60 + n
	}
	return total, nil
}

func parseLanguageLine(line string) (string, float64, bool) {
	m := languageLine.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", 0, false
	}
	code := language.ToISO2(m[1])
	if code == "" {
		return "", 0, false
	}
	prob, _ := strconv.ParseFloat(m[2], 64)
	return code, prob, true
}
