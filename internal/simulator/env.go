package simulator

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "DRONESOCCER_SIM_"

// Defaults returns the simulator defaults overlaid with DRONESOCCER_SIM_*
// variables. A .env file in the working directory is read first when present.
func Defaults() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cfg := &Config{
		BaseURL:         envString("URL", "http://localhost:9080"),
		MatchID:         envString("MATCH", ""),
		Drones:          SplitDrones(envString("DRONES", "R1,R2,B1,B2")),
		SamplesPerBatch: DefaultSamplesPerBatch,
		LogFile:         envString("LOG", ""),
	}
	var err error
	if cfg.Round, err = envInt("ROUND", 1); err != nil {
		return nil, err
	}
	if cfg.Batches, err = envInt("BATCHES", 0); err != nil {
		return nil, err
	}
	if cfg.Rate, err = envDuration("RATE", DefaultRate); err != nil {
		return nil, err
	}
	if cfg.Duration, err = envDuration("DURATION", 3*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = envDuration("TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SplitDrones parses a comma separated list of drone ids.
func SplitDrones(s string) []string {
	var out []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.ToUpper(strings.TrimSpace(id)); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := envString(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(envPrefix + key + ": " + err.Error())
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := envString(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.New(envPrefix + key + ": " + err.Error())
	}
	return d, nil
}
