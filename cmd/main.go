package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/dronesoccer/internal/adapters/analysis"
	"github.com/okian/dronesoccer/internal/adapters/http/api"
	"github.com/okian/dronesoccer/internal/adapters/http/swagger"
	"github.com/okian/dronesoccer/internal/adapters/mq/mqtt"
	"github.com/okian/dronesoccer/internal/adapters/mq/worker"
	"github.com/okian/dronesoccer/internal/adapters/repository"
	"github.com/okian/dronesoccer/internal/adapters/repository/sqlite"
	"github.com/okian/dronesoccer/internal/adapters/scheduler"
	app "github.com/okian/dronesoccer/internal/app"
	"github.com/okian/dronesoccer/internal/config"
	"github.com/okian/dronesoccer/internal/domain/dispatch"
	"github.com/okian/dronesoccer/pkg/logger"
	"github.com/okian/dronesoccer/pkg/metrics"
)

// HTTP server timeout constants. Writes allow for a batch analysis call
// made while ending a round.
const (
	readTimeout            = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	writeTimeoutSlack      = 10 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use fmt for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "engine stopped with error", logger.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// run wires every component from cfg and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	if err := logger.InitWithFormat(cfg.LogFormat); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	// The status subscriber needs the service and the service needs the
	// publisher, so the handler resolves svc late.
	var svc *app.Service
	publisher, closePublisher := newPublisher(cfg, func(ctx context.Context, droneID string) {
		svc.DroneStatus(ctx, droneID)
	})
	defer closePublisher()

	svc = app.New(
		app.WithLogger(log.Named("service")),
		app.WithStore(store),
		app.WithAnalyzer(analysis.New(cfg.AnalysisURL,
			analysis.WithTimeout(cfg.AnalysisTimeout()),
			analysis.WithBatchTimeout(cfg.AnalysisBatchTimeout()),
		)),
		app.WithAnalysisMode(dispatch.Mode(cfg.AnalysisMode)),
		app.WithPublisher(publisher),
		app.WithPublishTimeout(time.Duration(cfg.MQTTPublishTimeoutMS)*time.Millisecond),
		app.WithWorkerCount(cfg.CommandWorkers),
		app.WithQueueSize(cfg.CommandQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithServerURL(cfg.ServerURL),
		app.WithOfflineThreshold(cfg.OfflineThreshold()),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop(context.WithoutCancel(ctx))

	if mq, ok := publisher.(*mqtt.Publisher); ok {
		// Delivery is best effort; paho keeps retrying in the background.
		if err := mq.Connect(ctx); err != nil {
			log.Warn(ctx, "mqtt broker not reachable yet", logger.String("broker", cfg.MQTTBroker), logger.Error(err))
		}
	}

	sched, err := newScheduler(cfg, svc)
	if err != nil {
		return err
	}
	sched.Start()
	defer func() {
		if err := sched.Shutdown(); err != nil {
			log.Warn(ctx, "scheduler shutdown failed", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := newHTTPServer(ctx, cfg, svc)
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr),
			logger.String("storage", cfg.StorageDriver), logger.String("analysis_mode", cfg.AnalysisMode),
			logger.Bool("auto_end_rounds", cfg.AutoEndRounds))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.StorageDriver != config.StorageSQLite {
		return repository.NewMemoryStore(), nil
	}
	store, err := sqlite.Open(ctx, cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}

// newPublisher returns the MQTT publisher, or a logging publisher when no
// broker is configured.
func newPublisher(cfg *config.Config, onStatus mqtt.StatusFunc) (worker.Publisher, func()) {
	if cfg.MQTTBroker == "" {
		return worker.NewLogPublisher(), func() {}
	}
	p := mqtt.New(cfg.MQTTBroker, cfg.MQTTClientID,
		mqtt.WithCredentials(cfg.MQTTUsername, cfg.MQTTPassword),
		mqtt.WithCommandGap(time.Duration(cfg.MQTTCommandGapMS)*time.Millisecond),
		mqtt.WithPublishTimeout(time.Duration(cfg.MQTTPublishTimeoutMS)*time.Millisecond),
		mqtt.WithStatusHandler(onStatus),
	)
	return p, func() { _ = p.Close() }
}

func newScheduler(cfg *config.Config, svc *app.Service) (*scheduler.Scheduler, error) {
	opts := []scheduler.Option{}
	if cfg.AutoEndRounds {
		opts = append(opts, scheduler.WithAutoEnd(svc))
	}
	sched, err := scheduler.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := sched.ScheduleSweep(cfg.SweepInterval(), cfg.OfflineThreshold(), svc); err != nil {
		return nil, err
	}
	if err := sched.WatchDeadlines(cfg.DeadlineCheckInterval(), svc); err != nil {
		return nil, err
	}
	return sched, nil
}

func newHTTPServer(ctx context.Context, cfg *config.Config, svc *app.Service) *http.Server {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(mux)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.AnalysisBatchTimeout() + writeTimeoutSlack,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

// updateServiceMetrics refreshes the queue gauges from service stats.
func updateServiceMetrics(ctx context.Context, svc *app.Service) {
	stats := svc.GetStats(ctx)

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
