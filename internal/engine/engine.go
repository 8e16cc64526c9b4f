package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"vidscribe/internal/config"
	"vidscribe/internal/deps"
	"vidscribe/internal/language"
	"vidscribe/internal/logging"
	"vidscribe/internal/media/ffprobe"
	"vidscribe/internal/services"
	"vidscribe/internal/transcript"
)

// Compute types chosen when none is configured.
const (
	ComputeFloat16 = "float16"
	ComputeInt8    = "int8"
)

const stageTranscribe = "transcribe"

// Info is metadata reported alongside a segment stream.
type Info struct {
	// Language is the ISO 639-1 code, configured or detected. Empty when the
	// backend did not report one.
	Language            string
	LanguageProbability float64
	// Duration is the media duration in seconds, 0 when unknown.
	Duration float64
}

// Settings is the resolved, read-only model configuration.
type Settings struct {
	Backend     string
	Model       string
	Device      string
	ComputeType string
	BeamSize    int
	Temperature float64
	Language    string
	VAD         config.VAD
}

// Option customizes engine construction.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.NewComponentLogger(logger, "engine")
	}
}

// WithGPUDetector replaces CUDA detection (for testing).
func WithGPUDetector(detect func(context.Context) deps.GPU) Option {
	return func(e *Engine) {
		if detect != nil {
			e.detectGPU = detect
		}
	}
}

// WithDurationProbe replaces the media duration lookup (for testing).
func WithDurationProbe(probe func(context.Context, string) float64) Option {
	return func(e *Engine) {
		if probe != nil {
			e.probeDuration = probe
		}
	}
}

// WithScratchRoot sets where per-call scratch directories are created.
func WithScratchRoot(dir string) Option {
	return func(e *Engine) {
		e.scratchRoot = dir
	}
}

type backend interface {
	transcribe(ctx context.Context, e *Engine, input string) (*transcript.Stream, Info, error)
}

// Engine owns the resolved model settings and launches transcriptions.
// It is safe for sequential reuse across many files.
type Engine struct {
	settings      Settings
	binary        string
	viaUVX        bool
	backend       backend
	logger        *slog.Logger
	detectGPU     func(context.Context) deps.GPU
	probeDuration func(context.Context, string) float64
	scratchRoot   string
}

// New resolves device, precision, and launcher from cfg. Errors are marked
// with services.ErrConfiguration and should abort the run.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "engine", "init", "config required", nil)
	}
	e := &Engine{
		logger:        logging.NewComponentLogger(nil, "engine"),
		detectGPU:     deps.DetectGPU,
		probeDuration: ffprobe.NewProber(cfg.FFprobeBinary()).Duration,
	}
	for _, opt := range opts {
		opt(e)
	}

	switch cfg.Model.Backend {
	case config.BackendFasterWhisper:
		e.backend = fasterWhisper{}
	case config.BackendWhisperX:
		e.backend = whisperX{}
	default:
		return nil, services.Wrap(services.ErrConfiguration, "engine", "init",
			fmt.Sprintf("unknown backend %q", cfg.Model.Backend), nil)
	}

	device, err := e.resolveDevice(ctx, cfg.Model.Device)
	if err != nil {
		return nil, err
	}

	lang := ""
	if hint := strings.TrimSpace(cfg.Decoding.Language); hint != "" && !strings.EqualFold(hint, language.Auto) {
		lang = language.ToISO2(hint)
		if lang == "" || !language.Supported(lang) {
			return nil, services.Wrap(services.ErrConfiguration, "engine", "init",
				fmt.Sprintf("unsupported language %q", hint), nil)
		}
	}

	command := strings.TrimSpace(cfg.Model.Command)
	if command == "" {
		command = UVXCommand
	}
	binary, err := exec.LookPath(command)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "engine", "init",
			fmt.Sprintf("model launcher %q not found", command), err)
	}
	e.binary = binary
	e.viaUVX = filepath.Base(command) == UVXCommand

	compute := strings.TrimSpace(cfg.Model.ComputeType)
	if compute == "" {
		compute = ComputeInt8
		if device == config.DeviceCUDA {
			compute = ComputeFloat16
		}
	}

	e.settings = Settings{
		Backend:     cfg.Model.Backend,
		Model:       cfg.Model.Name,
		Device:      device,
		ComputeType: compute,
		BeamSize:    cfg.Decoding.BeamSize,
		Temperature: cfg.Decoding.Temperature,
		Language:    lang,
		VAD:         cfg.VAD,
	}

	if caveat := VADCaveat(e.settings.Backend, e.settings.VAD); caveat != "" {
		logging.WarnWithContext(e.logger, "vad settings not applied", "vad_settings_ignored",
			logging.String("backend", e.settings.Backend),
			logging.String(logging.FieldErrorHint, caveat),
			logging.String(logging.FieldImpact, "transcription continues with the backend's own voice filtering"),
		)
	}
	e.logger.Info("model ready",
		logging.String("backend", e.settings.Backend),
		logging.String("model", e.settings.Model),
		logging.String("device", e.settings.Device),
		logging.String("compute_type", e.settings.ComputeType),
		logging.Bool("vad", e.settings.VAD.Enabled),
	)
	return e, nil
}

func (e *Engine) resolveDevice(ctx context.Context, configured string) (string, error) {
	switch configured {
	case config.DeviceCPU:
		return config.DeviceCPU, nil
	case config.DeviceCUDA:
		gpu := e.detectGPU(ctx)
		if !gpu.Available {
			return "", services.Wrap(services.ErrConfiguration, "engine", "resolve device",
				"cuda requested but no GPU detected: "+gpu.Detail, nil)
		}
		return config.DeviceCUDA, nil
	case config.DeviceAuto, "":
		if e.detectGPU(ctx).Available {
			return config.DeviceCUDA, nil
		}
		return config.DeviceCPU, nil
	default:
		return "", services.Wrap(services.ErrConfiguration, "engine", "resolve device",
			fmt.Sprintf("unknown device %q", configured), nil)
	}
}

// Settings returns the resolved model settings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Describe summarizes the engine for status output.
func (e *Engine) Describe() string {
	return fmt.Sprintf("%s %s on %s (%s)", e.settings.Backend, e.settings.Model, e.settings.Device, e.settings.ComputeType)
}

// Transcribe launches the model on input and returns its segment stream.
// The caller must Close the stream.
func (e *Engine) Transcribe(ctx context.Context, input string) (*transcript.Stream, Info, error) {
	if strings.TrimSpace(input) == "" {
		return nil, Info{}, services.Wrap(services.ErrValidation, stageTranscribe, "transcribe", "input path required", nil)
	}
	if _, err := os.Stat(input); err != nil {
		return nil, Info{}, services.Wrap(services.ErrNotFound, stageTranscribe, "stat input", input, err)
	}

	logging.WithContext(ctx, e.logger).Debug("starting transcription",
		logging.String("input", input),
		logging.String("backend", e.settings.Backend),
	)

	stream, info, err := e.backend.transcribe(ctx, e, input)
	if err != nil {
		return nil, Info{}, err
	}
	if e.settings.Language != "" && info.Language == "" {
		info.Language = e.settings.Language
		info.LanguageProbability = 1
	}
	info.Duration = e.probeDuration(ctx, input)
	return stream, info, nil
}

func (e *Engine) scratchDir() (string, error) {
	dir, err := os.MkdirTemp(e.scratchRoot, "vidscribe-engine-*")
	if err != nil {
		return "", services.Wrap(services.ErrTransient, stageTranscribe, "scratch dir", "", err)
	}
	return dir, nil
}

// command prefixes tool with the uvx launcher when one is configured.
func (e *Engine) command(tool string, args []string, uvxArgs ...string) []string {
	if !e.viaUVX {
		return args
	}
	out := make([]string, 0, len(args)+len(uvxArgs)+1)
	out = append(out, uvxArgs...)
	out = append(out, tool)
	return append(out, args...)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
