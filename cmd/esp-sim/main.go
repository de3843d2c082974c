package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/okian/dronesoccer/internal/simulator"
)

func main() {
	defaults, err := simulator.Defaults()
	if err != nil {
		os.Stderr.WriteString("Invalid environment: " + err.Error() + "\n")
		os.Exit(1)
	}

	var (
		baseURL        = flag.String("url", defaults.BaseURL, "Base URL of the engine")
		matchID        = flag.String("match", defaults.MatchID, "Match id the telemetry belongs to")
		round          = flag.Int("round", defaults.Round, "Round number")
		drones         = flag.String("drones", strings.Join(defaults.Drones, ","), "Comma separated drone ids")
		rate           = flag.Duration("rate", defaults.Rate, "Interval between a drone's batches")
		duration       = flag.Duration("duration", defaults.Duration, "How long to stream telemetry")
		batches        = flag.Int("batches", defaults.Batches, "Batches per drone; overrides -duration")
		samples        = flag.Int("samples", defaults.SamplesPerBatch, "Samples per batch")
		duplicateEvery = flag.Int("duplicate-every", 0, "Resend every Nth batch id")
		timeout        = flag.Duration("timeout", defaults.Timeout, "HTTP request timeout")
		skipRegister   = flag.Bool("skip-register", false, "Only announce devices that are already registered")
		logFile        = flag.String("log", defaults.LogFile, "Log file (default: esp_sim_TIMESTAMP.log)")
		verbose        = flag.Bool("verbose", false, "Enable verbose logging")
		help           = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulator.ShowHelp()
		return
	}

	if err := simulator.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config := &simulator.Config{
		BaseURL:         strings.TrimRight(*baseURL, "/"),
		MatchID:         *matchID,
		Round:           *round,
		Drones:          simulator.SplitDrones(*drones),
		Rate:            *rate,
		Duration:        *duration,
		Batches:         *batches,
		SamplesPerBatch: *samples,
		DuplicateEvery:  *duplicateEvery,
		Timeout:         *timeout,
		SkipRegister:    *skipRegister,
		LogFile:         *logFile,
		Verbose:         *verbose,
	}

	if _, err := simulator.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
