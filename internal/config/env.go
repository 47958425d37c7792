package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
)

// DefaultManifest is the manifest path used when none is configured.
const DefaultManifest = "threads.yaml"

// DefaultAPIAddr is the control API listen address used by `serve`.
const DefaultAPIAddr = "127.0.0.1:7663"

// Env holds settings read from the process environment. Command-line flags
// take precedence over every field.
type Env struct {
	File      string `env:"INTTHREAD_FILE" envDefault:"threads.yaml"`
	LogLevel  string `env:"INTTHREAD_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"INTTHREAD_LOG_FORMAT" envDefault:"text"`
	Backend   string `env:"INTTHREAD_BACKEND"`
	APIAddr   string `env:"INTTHREAD_API_ADDR" envDefault:"127.0.0.1:7663"`
}

// LoadEnv parses the INTTHREAD_* environment variables.
func LoadEnv() (Env, error) {
	var cfg Env
	if err := env.Parse(&cfg); err != nil {
		return Env{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
