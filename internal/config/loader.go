package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "DRONESOCCER_"
	envConfig  = envPrefix + "CONFIG"
	envDotEnv  = envPrefix + "DOTENV"
	defaultEnv = ".env"
)

// Load builds a Config by layering sources. Precedence (low -> high):
//  1. defaults (New)
//  2. YAML file named by DRONESOCCER_CONFIG
//  3. environment (prefix DRONESOCCER_), including values from a .env file
//
// The .env file (DRONESOCCER_DOTENV or ./.env) never overrides variables
// already present in the process environment.
func Load(_ context.Context) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	k := koanf.New(".")

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// DRONESOCCER_ANALYSIS_URL -> analysis_url; keys stay flat.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv() error {
	path := os.Getenv(envDotEnv)
	explicit := path != ""
	if !explicit {
		path = defaultEnv
	}
	err := godotenv.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
