package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// envConfig mirrors the environment variables the bot understands. Fields are
// kept as text so that unset and empty can be told apart from zero values.
type envConfig struct {
	BotToken            string `env:"BOT_TOKEN"`
	APIHost             string `env:"API_HOST"`
	APIPort             string `env:"API_PORT"`
	LogConfigFile       string `env:"LOG_CONFIG"`
	RateLimitRPS        string `env:"RATE_LIMIT_RPS"`
	RateLimitBurst      string `env:"RATE_LIMIT_BURST"`
	ShutdownGracePeriod string `env:"SHUTDOWN_GRACE_PERIOD"`
}

// LoadDotEnv copies KEY=VALUE pairs from path into the process environment.
// Values from the file override variables that are already set. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Overload(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func parseEnv() (envConfig, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return envConfig{}, fmt.Errorf("parse environment: %w", err)
	}
	return raw, nil
}
