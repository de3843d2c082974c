package simulator

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/dronesoccer/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "esp_sim_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.InitWithWriter(io.MultiWriter(os.Stdout, file), "text"); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the ESP simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Drone Soccer ESP Simulator
==========================

Simulates a fleet of ESP boards against a running engine: registers and
announces each device, then sends heartbeats and telemetry batches for a
match round.

Usage:
  go run ./cmd/esp-sim [options]

Options:
  -url string
        Base URL of the engine (default "http://localhost:9080")
  -match string
        Match id the telemetry belongs to (required)
  -round int
        Round number (default 1)
  -drones string
        Comma separated drone ids (default "R1,R2,B1,B2")
  -rate duration
        Interval between a drone's batches (default 1s)
  -duration duration
        How long to stream telemetry (default 3m)
  -batches int
        Stop after this many batches per drone; overrides -duration
  -samples int
        Samples per batch (default 10)
  -duplicate-every int
        Resend every Nth batch id to exercise duplicate detection
  -timeout duration
        HTTP request timeout (default 10s)
  -skip-register
        Only announce devices that are already registered
  -log string
        Log file (default: esp_sim_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Every option can also be set through a DRONESOCCER_SIM_* environment
variable, e.g. DRONESOCCER_SIM_MATCH or DRONESOCCER_SIM_DRONES.

Examples:
  # Stream the default fleet into round 1 of a match
  go run ./cmd/esp-sim -match 6f1c...

  # Ten fast batches per drone with a duplicate every third batch
  go run ./cmd/esp-sim -match 6f1c... -batches 10 -rate 200ms -duplicate-every 3
`)
}
