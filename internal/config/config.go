// Package config loads server settings from an optional YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Seed struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type Config struct {
	Addr         string `yaml:"addr"`
	DBPath       string `yaml:"db"`
	SessionHours int    `yaml:"session_hours"`
	Seed         Seed   `yaml:"seed"`
}

func Default() Config {
	return Config{
		Addr:         ":8080",
		DBPath:       "./data/medals.db",
		SessionHours: 24,
		Seed: Seed{
			Username: "TestUser",
			Email:    "t@t.com",
			Password: "haslo",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error:
// the defaults are returned as-is.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	} else if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.SessionHours <= 0 {
		cfg.SessionHours = Default().SessionHours
	}
	return cfg, nil
}

func (c Config) SessionMaxAge() time.Duration {
	return time.Duration(c.SessionHours) * time.Hour
}
