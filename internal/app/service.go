// Package service is the match orchestrator. It owns the per-match locks
// and the current match pointer, runs round transitions through the round
// machine and hands completed rounds to analysis dispatch. The HTTP API and
// the scheduler call into it.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/dronesoccer/internal/adapters/mq/queue"
	"github.com/okian/dronesoccer/internal/adapters/mq/worker"
	"github.com/okian/dronesoccer/internal/adapters/repository"
	"github.com/okian/dronesoccer/internal/domain/dedupe"
	"github.com/okian/dronesoccer/internal/domain/devices"
	"github.com/okian/dronesoccer/internal/domain/dispatch"
	"github.com/okian/dronesoccer/internal/domain/failure"
	"github.com/okian/dronesoccer/internal/domain/lineup"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/round"
	"github.com/okian/dronesoccer/internal/domain/timer"
	"github.com/okian/dronesoccer/internal/domain/types"
	"github.com/okian/dronesoccer/pkg/logger"
	"github.com/okian/dronesoccer/pkg/metrics"
)

const (
	defaultQueueSize        = 1024
	defaultDedupeSize       = 50000
	defaultOfflineThreshold = 30 * time.Second
	defaultPublishTimeout   = 5 * time.Second
)

// Service implements the orchestrator operations the API and scheduler use.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	analyzer   dispatch.Analyzer
	publisher  worker.Publisher
	clock      clockwork.Clock
	timer      *timer.Engine
	rounds     *round.Machine
	registry   *devices.Registry
	dispatcher *dispatch.Dispatcher
	deduper    dedupe.Deduper
	commands   *queue.InMemoryQueue
	pool       *worker.Pool

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	analysisMode     dispatch.Mode
	serverURL        string
	offlineThreshold time.Duration
	publishTimeout   time.Duration

	// currentMu serializes changes of the current match pointer and match
	// deletion. It is always taken before a match lock.
	currentMu sync.Mutex
	locks     *matchLocks

	// State
	started bool

	logger logger.Logger
}

// New constructs a Service. Without options it keeps everything in memory,
// logs hardware commands instead of sending them and reports analysis as
// unavailable.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      runtime.NumCPU(),
		queueSize:        defaultQueueSize,
		dedupeSize:       defaultDedupeSize,
		analysisMode:     dispatch.ModeBatch,
		offlineThreshold: defaultOfflineThreshold,
		publishTimeout:   defaultPublishTimeout,
		clock:            clockwork.NewRealClock(),
		locks:            newMatchLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.analyzer == nil {
		s.analyzer = offlineAnalyzer{}
	}
	if s.publisher == nil {
		s.publisher = worker.NewLogPublisher()
	}

	s.timer = timer.New(timer.WithClock(s.clock))
	s.registry = devices.New(s.store, devices.WithClock(s.clock))
	s.rounds = round.New(s.timer, lineup.New(droneDirectory{drones: s.store, devices: s.registry}))
	s.dispatcher = dispatch.New(s.analyzer, s.store, s.registry, reportGuard{s: s},
		dispatch.WithMode(s.analysisMode), dispatch.WithClock(s.clock))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.commands = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.commands, s.publisher, worker.WithPublishTimeout(s.publishTimeout))
	return s
}

// Start launches the command workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if err := s.store.Ping(ctx); err != nil {
		return failure.Wrap("ping store", err)
	}
	s.pool.Start(context.WithoutCancel(ctx))
	s.started = true
	s.logger.Info(ctx, "match service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("analysisMode", string(s.dispatcher.Mode())),
	)
	return nil
}

// Stop drains pending hardware commands and closes the store.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping match service...")
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "command pool shutdown failed", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "store close failed", logger.Error(err))
	}
	s.started = false
	s.logger.Info(ctx, "match service stopped")
}

// Ready reports whether the store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Devices exposes the device registry to the scheduler and the MQTT status
// listener.
func (s *Service) Devices() *devices.Registry { return s.registry }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"dedupeSize":   s.dedupeSize,
		"analysisMode": string(s.dispatcher.Mode()),
	}
	queueLen := s.commands.Len(ctx)
	stats["queueLength"] = queueLen
	stats["dedupeEntries"] = s.deduper.Size()
	metrics.UpdateQueueSize(queueLen)

	if matches, err := s.store.ListMatches(ctx, ""); err == nil {
		byStatus := map[types.MatchStatus]int{}
		for _, m := range matches {
			byStatus[m.Status]++
		}
		stats["matches"] = len(matches)
		stats["matchesInProgress"] = byStatus[types.MatchInProgress]
		stats["matchesCompleted"] = byStatus[types.MatchCompleted]
	}
	if all, err := s.store.ListDevices(ctx); err == nil {
		online := 0
		for _, d := range all {
			if d.Status == types.DeviceOnline {
				online++
			}
		}
		stats["devices"] = len(all)
		stats["devicesOnline"] = online
	}
	if id, err := s.store.CurrentMatch(ctx); err == nil && id != "" {
		stats["currentMatch"] = id
	}
	return stats
}

// matchLocks hands out one mutex per match id.
type matchLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMatchLocks() *matchLocks {
	return &matchLocks{locks: map[string]*sync.Mutex{}}
}

func (l *matchLocks) lock(id string) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func (l *matchLocks) forget(id string) {
	l.mu.Lock()
	delete(l.locks, id)
	l.mu.Unlock()
}

// reportGuard writes a round's reports under the match lock and only while
// the match still exists, so a match deleted during analysis keeps no reports.
type reportGuard struct {
	s *Service
}

func (g reportGuard) ReplaceReports(ctx context.Context, matchID string, round int, reports []model.DroneReport) error {
	unlock := g.s.locks.lock(matchID)
	defer unlock()

	_, ok, err := g.s.store.GetMatch(ctx, matchID)
	if err != nil {
		return failure.Wrap("load match", err)
	}
	if !ok {
		return failure.Wrapf(ErrMatchNotFound, "match %s was deleted during analysis", matchID)
	}
	return g.s.store.ReplaceReports(ctx, matchID, round, reports)
}

// droneDirectory resolves drones for the lineup validator: the catalog
// first, then the role of the device bound to the drone.
type droneDirectory struct {
	drones  repository.DroneStore
	devices *devices.Registry
}

func (d droneDirectory) LookupDrone(ctx context.Context, droneID string) (model.Drone, bool, error) {
	drone, ok, err := d.drones.GetDrone(ctx, droneID)
	if err != nil || ok {
		return drone, ok, err
	}
	dev, ok, err := d.devices.LookupByDrone(ctx, droneID)
	if err != nil || !ok {
		return model.Drone{}, false, err
	}
	return model.Drone{DroneID: dev.DroneID, Role: dev.Role, Specifications: model.DefaultSpecs(dev.Role)}, true, nil
}

// offlineAnalyzer stands in when no analysis service is configured.
type offlineAnalyzer struct{}

func (offlineAnalyzer) Analyze(context.Context, dispatch.TeamPayload) (dispatch.TeamResult, error) {
	return dispatch.TeamResult{}, failure.Wrapf(dispatch.ErrAnalysisUnavailable, "no analysis service configured")
}

func (offlineAnalyzer) BatchAnalyze(context.Context, dispatch.BatchPayload) (dispatch.BatchResult, error) {
	return dispatch.BatchResult{}, failure.Wrapf(dispatch.ErrAnalysisUnavailable, "no analysis service configured")
}

func (offlineAnalyzer) Health(context.Context) (dispatch.Health, error) {
	return dispatch.Health{}, failure.Wrapf(dispatch.ErrAnalysisUnavailable, "no analysis service configured")
}
