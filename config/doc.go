// Package config loads service and voice configuration.
//
// LoadConfig reads a config.yml found in ./cmd/<service>/, the working
// directory or /etc/<service>/, loads a matching .env file through godotenv,
// then applies environment overrides named after the mapstructure keys:
// VOICED_VOICE_TTS_ESPEAK_BINARY sets voice.tts.espeak_binary. Lists are
// comma separated and durations use time.ParseDuration syntax.
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Voice config.VoiceConfig `yaml:"voice" mapstructure:"voice"`
//	}
//	var cfg Config
//	err := config.LoadConfig("voiced", &cfg)
//	cfg.ApplyDefaults()
//	err = cfg.Validate()
package config
