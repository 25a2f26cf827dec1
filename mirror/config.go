package mirror

import (
	"github.com/hazyhaar/dommirror/mirror/internal/config"
)

// Config is the top-level dommirror configuration. Re-exported from internal.
type Config = config.Config

// PrimaryConfig controls the observed side.
type PrimaryConfig = config.PrimaryConfig

// ReplicaConfig controls the receiving side.
type ReplicaConfig = config.ReplicaConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// ParseConfig decodes YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	return config.Parse(data)
}
