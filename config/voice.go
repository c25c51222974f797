package config

import (
	"fmt"
	"time"

	"github.com/kbukum/voicekit/validation"
)

// Backend identifiers accepted in VoiceConfig backend lists.
const (
	BackendEspeak      = "espeak"
	BackendSay         = "say"
	BackendStream      = "stream"
	BackendWebSpeech   = "webspeech"
	BackendCloudSpeech = "cloudspeech"
)

// DefaultLocale is the locale every backend requests unless configured otherwise.
const DefaultLocale = "de-DE"

// VoiceConfig configures the voice I/O layer.
type VoiceConfig struct {
	// Locale is the BCP-47 locale requested for synthesis and recognition.
	Locale string `yaml:"locale" mapstructure:"locale" validate:"required,bcp47_language_tag"`
	// CompletionTimeout bounds every notification-driven completion wait.
	CompletionTimeout time.Duration `yaml:"completion_timeout" mapstructure:"completion_timeout" validate:"gt=0"`
	// SettleDelay is waited after injecting the speech script before first use.
	SettleDelay time.Duration `yaml:"settle_delay" mapstructure:"settle_delay" validate:"gte=0"`
	// BridgeTimeout bounds a single call into the script host.
	BridgeTimeout time.Duration `yaml:"bridge_timeout" mapstructure:"bridge_timeout" validate:"gt=0"`
	// Platform overrides runtime.GOOS when selecting the native backends.
	Platform string `yaml:"platform" mapstructure:"platform" validate:"omitempty,oneof=linux darwin generic"`

	TTS TTSConfig `yaml:"tts" mapstructure:"tts"`
	STT STTConfig `yaml:"stt" mapstructure:"stt"`
}

// TTSConfig selects and configures speech synthesis backends.
type TTSConfig struct {
	// Backends restricts the native backends in platform order; empty enables
	// all of them. Script-hosted and no-op backends are always appended.
	Backends     []string `yaml:"backends" mapstructure:"backends" validate:"dive,oneof=espeak say stream"`
	EspeakBinary string   `yaml:"espeak_binary" mapstructure:"espeak_binary" validate:"required"`
	SayBinary    string   `yaml:"say_binary" mapstructure:"say_binary" validate:"required"`
	PlayerBinary string   `yaml:"player_binary" mapstructure:"player_binary" validate:"required"`
}

// STTConfig selects and configures speech recognition backends.
type STTConfig struct {
	// Backends enables optional recognizers ahead of the script-hosted one.
	Backends      []string `yaml:"backends" mapstructure:"backends" validate:"dive,oneof=cloudspeech"`
	CaptureBinary string   `yaml:"capture_binary" mapstructure:"capture_binary" validate:"required"`
	SampleRate    int      `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gt=0"`
	// Language overrides Locale for recognition; empty means use Locale.
	Language string `yaml:"language" mapstructure:"language" validate:"omitempty,bcp47_language_tag"`
	// CredentialsFile is the service account key for cloud recognition.
	// Empty uses Application Default Credentials.
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
}

// ApplyDefaults applies default values to voice configuration.
func (c *VoiceConfig) ApplyDefaults() {
	if c.Locale == "" {
		c.Locale = DefaultLocale
	}
	if c.CompletionTimeout == 0 {
		c.CompletionTimeout = 30 * time.Second
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = 500 * time.Millisecond
	}
	if c.BridgeTimeout == 0 {
		c.BridgeTimeout = 5 * time.Second
	}
	if c.TTS.EspeakBinary == "" {
		c.TTS.EspeakBinary = "espeak-ng"
	}
	if c.TTS.SayBinary == "" {
		c.TTS.SayBinary = "say"
	}
	if c.TTS.PlayerBinary == "" {
		c.TTS.PlayerBinary = "aplay"
	}
	if c.STT.CaptureBinary == "" {
		c.STT.CaptureBinary = "arecord"
	}
	if c.STT.SampleRate == 0 {
		c.STT.SampleRate = 16000
	}
}

// Validate validates voice configuration.
func (c *VoiceConfig) Validate() error {
	if err := validation.Validate(c); err != nil {
		return fmt.Errorf("config.voice: %w", err)
	}
	return nil
}

// RecognitionLanguage returns the language used for speech recognition.
func (c *VoiceConfig) RecognitionLanguage() string {
	if c.STT.Language != "" {
		return c.STT.Language
	}
	return c.Locale
}

// HasTTSBackend reports whether the named native synthesis backend is enabled.
func (c *VoiceConfig) HasTTSBackend(name string) bool {
	return contains(c.TTS.Backends, name)
}

// HasSTTBackend reports whether the named optional recognizer is enabled.
func (c *VoiceConfig) HasSTTBackend(name string) bool {
	return contains(c.STT.Backends, name)
}

func contains(items []string, val string) bool {
	for _, s := range items {
		if s == val {
			return true
		}
	}
	return false
}
