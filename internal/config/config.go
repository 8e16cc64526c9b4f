package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains input, output, and state directory configuration.
type Paths struct {
	InputDir  string `toml:"input_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	HistoryDB string `toml:"history_db"`
}

// Model selects the speech-recognition backend and where it runs.
type Model struct {
	Backend     string `toml:"backend"`
	Name        string `toml:"name"`
	Device      string `toml:"device"`
	ComputeType string `toml:"compute_type"`
	Command     string `toml:"command"`
	// TimeoutSeconds bounds a single file's transcription. Zero disables the limit.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Decoding contains parameters passed verbatim to the decoder.
type Decoding struct {
	BeamSize    int     `toml:"beam_size"`
	Temperature float64 `toml:"temperature"`
	// Language is an ISO code or language name; empty means auto-detect.
	Language string `toml:"language"`
}

// VAD contains voice-activity filtering thresholds in milliseconds.
type VAD struct {
	Enabled      bool `toml:"enabled"`
	MinSilenceMS int  `toml:"min_silence_ms"`
	SpeechPadMS  int  `toml:"speech_pad_ms"`
	MinSpeechMS  int  `toml:"min_speech_ms"`
}

// Audio contains audio pre-extraction settings.
type Audio struct {
	Extract       bool   `toml:"extract"`
	SampleRate    int    `toml:"sample_rate"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Output contains artifact and resume policy settings.
type Output struct {
	Resume     bool     `toml:"resume"`
	Subtitles  bool     `toml:"subtitles"`
	Extensions []string `toml:"extensions"`
}

// Storage configures the optional S3-compatible mirror for written artifacts.
type Storage struct {
	S3Enabled bool   `toml:"s3_enabled"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	PathStyle bool   `toml:"path_style"`
	// Required turns mirror upload failures into item failures.
	Required bool `toml:"required"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	File       bool   `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Config encapsulates all configuration values for vidscribe.
//
// Configuration sections by subsystem:
//   - Paths: input folder, output folder, log and history locations
//   - Model: backend, model name, device and numeric precision
//   - Decoding: beam width, temperature, language hint
//   - VAD: voice-activity filtering toggle and thresholds
//   - Audio: ffmpeg pre-extraction toggle and sample rate
//   - Output: resume policy, subtitle export, recognized extensions
//   - Storage: S3-compatible mirror of written artifacts
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and file rotation
//
// A Config returned by Load is never modified afterwards; components hold a
// pointer and only read from it.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Model         Model         `toml:"model"`
	Decoding      Decoding      `toml:"decoding"`
	VAD           VAD           `toml:"vad"`
	Audio         Audio         `toml:"audio"`
	Output        Output        `toml:"output"`
	Storage       Storage       `toml:"storage"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	return LoadWithOverrides(path, Overrides{})
}

// LoadWithOverrides layers built-in defaults, the configuration file, environment
// fallbacks, and explicit overrides (in that order) before normalizing and
// validating the result.
func LoadWithOverrides(path string, overrides Overrides) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	overrides.apply(&cfg)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vidscribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output and log directories. The input
// directory is never created; a missing input folder is reported by the run.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if dir := filepath.Dir(c.Paths.HistoryDB); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for audio extraction.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Audio.FFmpegBinary); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Audio.FFprobeBinary); bin != "" {
		return bin
	}
	return "ffprobe"
}

// RecognizedExtension reports whether ext (with or without the leading dot)
// belongs to the configured input set. Matching is case-insensitive.
func (c *Config) RecognizedExtension(ext string) bool {
	ext = normalizeExtension(ext)
	if ext == "" {
		return false
	}
	for _, candidate := range c.Output.Extensions {
		if candidate == ext {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML. Secrets are masked.
func (c *Config) Encode() ([]byte, error) {
	clone := *c
	clone.Output.Extensions = append([]string(nil), c.Output.Extensions...)
	if clone.Storage.AccessKey != "" {
		clone.Storage.AccessKey = maskedSecret
	}
	if clone.Storage.SecretKey != "" {
		clone.Storage.SecretKey = maskedSecret
	}
	data, err := toml.Marshal(clone)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
