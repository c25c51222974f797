package observability

import (
	"fmt"
	"time"
)

// Config enables and configures OTLP export. With Enabled false the global
// no-op providers stay in place and instruments record nothing.
type Config struct {
	Enabled        bool              `yaml:"enabled" mapstructure:"enabled"`
	Endpoint       string            `yaml:"endpoint" mapstructure:"endpoint"` // host:port of an OTLP HTTP collector
	Insecure       bool              `yaml:"insecure" mapstructure:"insecure"`
	Headers        map[string]string `yaml:"headers" mapstructure:"headers"`
	SampleRate     float64           `yaml:"sample_rate" mapstructure:"sample_rate"`
	MetricInterval time.Duration     `yaml:"metric_interval" mapstructure:"metric_interval"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.MetricInterval <= 0 {
		c.MetricInterval = 15 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be within [0, 1], got %v", c.SampleRate)
	}
	if c.Enabled && c.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}
	return nil
}
