// Package config holds the peerlink CLI settings. Values come from Default,
// then an optional YAML file, then command line flags.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Initiator bool `yaml:"initiator"`

	// STUN servers as host:port. Left nil, the built-in list is used; an
	// explicit empty list disables server-reflexive discovery.
	STUN []string `yaml:"stun"`

	Compact    bool   `yaml:"compact"`
	Passphrase string `yaml:"passphrase"`

	// Timeout bounds local description creation plus candidate gathering.
	Timeout time.Duration `yaml:"timeout"`

	LogLevel string `yaml:"log_level"`
}

func Default() Config {
	return Config{
		Timeout:  30 * time.Second,
		LogLevel: "info",
	}
}

// Load reads path over Default. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()

	if len(path) == 0 {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, path)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return errors.Errorf("timeout must be positive, got %s", c.Timeout)
	}

	return nil
}
