package config

const (
	defaultConfigPath           = "~/.config/vidscribe/config.toml"
	defaultInputDir             = "video"
	defaultOutputDir            = "output"
	defaultLogDir               = "~/.local/share/vidscribe/logs"
	defaultHistoryFile          = "history.db"
	defaultBackend              = BackendFasterWhisper
	defaultModelName            = "medium"
	defaultDevice               = DeviceAuto
	defaultModelCommand         = "uvx"
	defaultBeamSize             = 1
	defaultTemperature          = 0.0
	defaultVADMinSilenceMS      = 500
	defaultVADSpeechPadMS       = 400
	defaultVADMinSpeechMS       = 250
	defaultSampleRate           = 16000
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogMaxSizeMB         = 10
	defaultLogMaxBackups        = 3
	defaultLogMaxAgeDays        = 28
	defaultStorageRegion        = "us-east-1"
	defaultStoragePrefix        = "transcripts"
	maskedSecret                = "********"
	envS3AccessKey              = "VIDSCRIBE_S3_ACCESS_KEY"
	envS3SecretKey              = "VIDSCRIBE_S3_SECRET_KEY"
	envNtfyTopic                = "NTFY_TOPIC"
)

// Backend identifiers.
const (
	BackendFasterWhisper = "faster-whisper"
	BackendWhisperX      = "whisperx"
)

// Device identifiers.
const (
	DeviceAuto = "auto"
	DeviceCUDA = "cuda"
	DeviceCPU  = "cpu"
)

// DefaultExtensions lists the video containers recognized as batch inputs.
var DefaultExtensions = []string{".mp4", ".mov", ".avi", ".mkv", ".webm", ".flv", ".wmv", ".m4v"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InputDir:  defaultInputDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Model: Model{
			Backend: defaultBackend,
			Name:    defaultModelName,
			Device:  defaultDevice,
			Command: defaultModelCommand,
		},
		Decoding: Decoding{
			BeamSize:    defaultBeamSize,
			Temperature: defaultTemperature,
		},
		VAD: VAD{
			Enabled:      true,
			MinSilenceMS: defaultVADMinSilenceMS,
			SpeechPadMS:  defaultVADSpeechPadMS,
			MinSpeechMS:  defaultVADMinSpeechMS,
		},
		Audio: Audio{
			Extract:    true,
			SampleRate: defaultSampleRate,
		},
		Output: Output{
			Resume:     true,
			Subtitles:  false,
			Extensions: append([]string(nil), DefaultExtensions...),
		},
		Storage: Storage{
			Region: defaultStorageRegion,
			Prefix: defaultStoragePrefix,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			File:       true,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
			Compress:   true,
		},
	}
}
