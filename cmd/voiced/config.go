package main

import (
	"github.com/kbukum/voicekit/config"
	"github.com/kbukum/voicekit/observability"
	"github.com/kbukum/voicekit/server"
	"github.com/kbukum/voicekit/transcript"
)

// Config is the voiced configuration file.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server    server.Config        `yaml:"server" mapstructure:"server"`
	Voice     config.VoiceConfig   `yaml:"voice" mapstructure:"voice"`
	Telemetry observability.Config `yaml:"telemetry" mapstructure:"telemetry"`
	// Transcripts is the number of recognition events kept for GET /v1/transcripts.
	Transcripts int `yaml:"transcripts" mapstructure:"transcripts"`
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Voice.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
	if c.Transcripts <= 0 {
		c.Transcripts = transcript.DefaultCapacity
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Voice.Validate(); err != nil {
		return err
	}
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	return nil
}

// loadConfig reads config.yml and .env (explicit path or discovery),
// applies defaults and validates.
func loadConfig(path string) (*Config, error) {
	var opts []config.LoaderOption
	if path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	cfg := &Config{}
	if err := config.LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
