package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_REVEAL_THRESHOLD keeps the scenarios short; the production gate is 50
	RevealThreshold int `envconfig:"E2E_REVEAL_THRESHOLD" default:"3"`
	// E2E_LOG_LEVEL tunes the server-side logger during scenarios
	LogLevel string `envconfig:"E2E_LOG_LEVEL" default:"ERROR"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
