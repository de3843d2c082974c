package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okian/dronesoccer/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// PercentageMultiplier converts a ratio to a percentage.
const PercentageMultiplier = 100

// counters are shared by every drone loop.
type counters struct {
	heartbeats       atomic.Int64
	heartbeatsFailed atomic.Int64
	sent             atomic.Int64
	accepted         atomic.Int64
	duplicate        atomic.Int64
	failed           atomic.Int64
	samples          atomic.Int64
}

// Run brings the fleet online and streams heartbeats and telemetry until
// the configured duration or batch count is reached, or ctx is cancelled.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	if err := validate(config); err != nil {
		return nil, err
	}
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("esp-sim")

	log.Info(ctx, "starting ESP fleet simulation",
		logger.String("baseURL", config.BaseURL),
		logger.String("match", config.MatchID),
		logger.Int("round", config.Round),
		logger.Any("drones", config.Drones),
		logger.Duration("rate", config.Rate),
		logger.Duration("duration", config.Duration),
		logger.Int("batches", config.Batches))

	client := newHTTPClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Register and announce devices
	fleet := NewFleet(config.Drones)
	if !config.SkipRegister {
		if err := registerFleet(ctx, client, fleet, stats); err != nil {
			return nil, fmt.Errorf("device registration failed: %w", err)
		}
	}
	if err := announceFleet(ctx, client, fleet, stats); err != nil {
		return nil, fmt.Errorf("device announce failed: %w", err)
	}

	// Step 3: Stream heartbeats and telemetry
	runCtx := ctx
	if config.Batches == 0 && config.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, config.Duration)
		defer cancel()
	}

	var c counters
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(config.Workers)
	for _, d := range fleet {
		g.Go(func() error {
			return fly(gctx, client, config, d, &c)
		})
	}
	err := g.Wait()

	stats.Heartbeats = int(c.heartbeats.Load())
	stats.HeartbeatsFailed = int(c.heartbeatsFailed.Load())
	stats.BatchesSent = int(c.sent.Load())
	stats.BatchesAccepted = int(c.accepted.Load())
	stats.BatchesDuplicate = int(c.duplicate.Load())
	stats.BatchesFailed = int(c.failed.Load())
	stats.SamplesAccepted = int(c.samples.Load())
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	// The run window closing is the normal way out.
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return stats, err
	}
	if ctx.Err() != nil {
		return stats, ctx.Err()
	}

	displayFinalStats(ctx, stats)
	return stats, nil
}

func validate(config *Config) error {
	switch {
	case config.BaseURL == "":
		return errors.New("base URL is required")
	case config.MatchID == "":
		return errors.New("match id is required")
	case config.Round < 1:
		return fmt.Errorf("round must be positive, got %d", config.Round)
	case len(NewFleet(config.Drones)) == 0:
		return errors.New("at least one drone id is required")
	case config.Batches == 0 && config.Duration <= 0:
		return errors.New("either a duration or a batch count is required")
	}
	if config.Rate <= 0 {
		config.Rate = DefaultRate
	}
	if config.SamplesPerBatch <= 0 {
		config.SamplesPerBatch = DefaultSamplesPerBatch
	}
	if config.Workers <= 0 {
		config.Workers = len(config.Drones)
	}
	return nil
}

// fly runs one drone: a heartbeat and a telemetry batch every tick.
func fly(ctx context.Context, client *HTTPClient, config *Config, d Device, c *counters) error {
	f := newFlight(d.DroneID)
	ticker := time.NewTicker(config.Rate)
	defer ticker.Stop()

	var last Batch
	for n := 1; config.Batches == 0 || n <= config.Batches; n++ {
		heartbeat(ctx, client, d, c)

		b := f.batch(config.MatchID, config.Round, config.SamplesPerBatch, time.Now(), config.Rate)
		if config.DuplicateEvery > 0 && n%config.DuplicateEvery == 0 && last.BatchID != "" {
			b = last
		}
		sendBatch(ctx, client, b, c, config.Verbose)
		last = b

		if config.Batches > 0 && n == config.Batches {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func heartbeat(ctx context.Context, client *HTTPClient, d Device, c *counters) {
	code, err := client.Post(ctx, "/api/devices/heartbeat",
		announceRequest{MACAddress: d.MACAddress, IPAddress: simulatedIP}, nil)
	if err != nil || code != StatusOK {
		c.heartbeatsFailed.Add(1)
		return
	}
	c.heartbeats.Add(1)
}

func sendBatch(ctx context.Context, client *HTTPClient, b Batch, c *counters, verbose bool) {
	c.sent.Add(1)
	var ack Ack
	code, err := client.Post(ctx, "/api/telemetry", b, &ack)
	switch {
	case err != nil:
		c.failed.Add(1)
		if verbose && ctx.Err() == nil {
			logger.Get().Warn(ctx, "telemetry post failed", logger.String("drone", b.DroneID), logger.Error(err))
		}
	case code == StatusAccepted:
		c.accepted.Add(1)
		c.samples.Add(int64(ack.Accepted))
	case code == StatusOK && ack.Duplicate:
		c.duplicate.Add(1)
	default:
		c.failed.Add(1)
		if verbose {
			logger.Get().Warn(ctx, "telemetry rejected", logger.String("drone", b.DroneID), logger.Int("status", code))
		}
	}
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	code, err := client.Get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if code != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", code)
	}
	return nil
}

// displayFinalStats logs the final simulation statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, batchesPerSecond float64

	if stats.BatchesSent > 0 {
		acceptRate = float64(stats.BatchesAccepted) / float64(stats.BatchesSent) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		batchesPerSecond = float64(stats.BatchesSent) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("devicesRegistered", stats.DevicesRegistered),
		logger.Int("devicesAnnounced", stats.DevicesAnnounced),
		logger.Int("heartbeats", stats.Heartbeats),
		logger.Int("heartbeatsFailed", stats.HeartbeatsFailed),
		logger.Int("batchesSent", stats.BatchesSent),
		logger.Int("batchesAccepted", stats.BatchesAccepted),
		logger.Int("batchesDuplicate", stats.BatchesDuplicate),
		logger.Int("batchesFailed", stats.BatchesFailed),
		logger.Int("samplesAccepted", stats.SamplesAccepted),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("batchesPerSecond", batchesPerSecond))
}
