package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	minSampleRate = 8000
	maxSampleRate = 192000
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validateDecoding(); err != nil {
		return err
	}
	if err := c.validateVAD(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.InputDir == c.Paths.OutputDir {
		return errors.New("paths.output_dir must differ from paths.input_dir")
	}
	return nil
}

func (c *Config) validateModel() error {
	switch c.Model.Backend {
	case BackendFasterWhisper, BackendWhisperX:
	default:
		return fmt.Errorf("model.backend must be %q or %q, got %q", BackendFasterWhisper, BackendWhisperX, c.Model.Backend)
	}
	switch c.Model.Device {
	case DeviceAuto, DeviceCUDA, DeviceCPU:
	default:
		return fmt.Errorf("model.device must be one of auto, cuda, cpu, got %q", c.Model.Device)
	}
	if strings.ContainsAny(c.Model.Name, " \t") {
		return fmt.Errorf("model.name must not contain whitespace, got %q", c.Model.Name)
	}
	return nil
}

func (c *Config) validateDecoding() error {
	if c.Decoding.BeamSize < 1 {
		return errors.New("decoding.beam_size must be at least 1")
	}
	if c.Decoding.Temperature < 0 || c.Decoding.Temperature > 1 {
		return errors.New("decoding.temperature must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateVAD() error {
	if !c.VAD.Enabled {
		return nil
	}
	if err := ensureNonNegativeMap(map[string]int{
		"vad.min_silence_ms": c.VAD.MinSilenceMS,
		"vad.speech_pad_ms":  c.VAD.SpeechPadMS,
		"vad.min_speech_ms":  c.VAD.MinSpeechMS,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAudio() error {
	if c.Audio.SampleRate < minSampleRate || c.Audio.SampleRate > maxSampleRate {
		return fmt.Errorf("audio.sample_rate must be between %d and %d", minSampleRate, maxSampleRate)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if !c.Storage.S3Enabled {
		return nil
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket must be set when storage.s3_enabled is true")
	}
	if (c.Storage.AccessKey == "") != (c.Storage.SecretKey == "") {
		return fmt.Errorf("storage.access_key and storage.secret_key must be set together (or export %s and %s)", envS3AccessKey, envS3SecretKey)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
}

func ensureNonNegativeMap(values map[string]int) error {
	for key, value := range values {
		if value < 0 {
			return fmt.Errorf("%s must be >= 0", key)
		}
	}
	return nil
}
