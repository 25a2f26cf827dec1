// Package config handles dommirror configuration from YAML files.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level dommirror configuration.
type Config struct {
	LogLevel string        `yaml:"log_level"` // debug | info | warn | error
	Primary  PrimaryConfig `yaml:"primary"`
	Replica  ReplicaConfig `yaml:"replica"`
}

// PrimaryConfig controls the observed side.
type PrimaryConfig struct {
	RootID    string       `yaml:"root_id"` // generated when empty
	QueueSize int          `yaml:"queue_size"`
	Sinks     []SinkConfig `yaml:"sinks"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type    string `yaml:"type"` // stdout | webhook | journal
	URL     string `yaml:"url"`  // for webhook, may contain {root}
	Retries int    `yaml:"retries"`
	Path    string `yaml:"path"` // for journal
}

// ReplicaConfig controls the receiving side.
type ReplicaConfig struct {
	Listen       string `yaml:"listen"`
	InertScripts *bool  `yaml:"inert_scripts"`
	SanitizeView *bool  `yaml:"sanitize_view"`
	MaxBody      int64  `yaml:"max_body"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Primary.QueueSize <= 0 {
		c.Primary.QueueSize = 1024
	}
	if len(c.Primary.Sinks) == 0 {
		c.Primary.Sinks = []SinkConfig{{Type: "stdout"}}
	}
	for i := range c.Primary.Sinks {
		if c.Primary.Sinks[i].Retries <= 0 {
			c.Primary.Sinks[i].Retries = 3
		}
	}
	if c.Replica.Listen == "" {
		c.Replica.Listen = ":8089"
	}
	if c.Replica.InertScripts == nil {
		c.Replica.InertScripts = ptr(true)
	}
	if c.Replica.SanitizeView == nil {
		c.Replica.SanitizeView = ptr(true)
	}
	if c.Replica.MaxBody <= 0 {
		c.Replica.MaxBody = 8 << 20
	}
}

func (c *Config) validate() error {
	for i, s := range c.Primary.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sink %d: webhook without url", i)
			}
		case "journal":
			if s.Path == "" {
				return fmt.Errorf("config: sink %d: journal without path", i)
			}
		default:
			return fmt.Errorf("config: sink %d: unknown type %q", i, s.Type)
		}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
