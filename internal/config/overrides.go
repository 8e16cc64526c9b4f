package config

// Overrides carries explicit per-invocation settings, typically from CLI
// flags. Nil fields leave the lower layers untouched.
type Overrides struct {
	InputDir    *string
	OutputDir   *string
	Model       *string
	Device      *string
	Language    *string
	BeamSize    *int
	Temperature *float64
	SampleRate  *int
	VAD         *bool
	Extract     *bool
	Resume      *bool
	Subtitles   *bool
	LogLevel    *string
	LogFormat   *string
}

func (o Overrides) apply(c *Config) {
	setString(&c.Paths.InputDir, o.InputDir)
	setString(&c.Paths.OutputDir, o.OutputDir)
	setString(&c.Model.Name, o.Model)
	setString(&c.Model.Device, o.Device)
	setString(&c.Decoding.Language, o.Language)
	setString(&c.Logging.Level, o.LogLevel)
	setString(&c.Logging.Format, o.LogFormat)
	if o.BeamSize != nil {
		c.Decoding.BeamSize = *o.BeamSize
	}
	if o.Temperature != nil {
		c.Decoding.Temperature = *o.Temperature
	}
	if o.SampleRate != nil {
		c.Audio.SampleRate = *o.SampleRate
	}
	if o.VAD != nil {
		c.VAD.Enabled = *o.VAD
	}
	if o.Extract != nil {
		c.Audio.Extract = *o.Extract
	}
	if o.Resume != nil {
		c.Output.Resume = *o.Resume
	}
	if o.Subtitles != nil {
		c.Output.Subtitles = *o.Subtitles
	}
}

func setString(dst *string, value *string) {
	if value != nil {
		*dst = *value
	}
}
