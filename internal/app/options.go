package service

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/dronesoccer/internal/adapters/mq/worker"
	"github.com/okian/dronesoccer/internal/adapters/repository"
	"github.com/okian/dronesoccer/internal/domain/dispatch"
	"github.com/okian/dronesoccer/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the store the service persists through. The service owns
// it and closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithAnalyzer sets the external analysis service.
func WithAnalyzer(a dispatch.Analyzer) Option {
	return func(s *Service) {
		if a != nil {
			s.analyzer = a
		}
	}
}

// WithAnalysisMode selects batch or per-team analysis calls.
func WithAnalysisMode(mode dispatch.Mode) Option {
	return func(s *Service) {
		s.analysisMode = mode
	}
}

// WithPublisher sets where hardware commands are delivered.
func WithPublisher(p worker.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithClock sets the clock timers, devices and reports use.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithWorkerCount sets the number of command publishing workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the hardware command queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many telemetry batch ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithServerURL sets the telemetry endpoint sent to drones with START.
func WithServerURL(url string) Option {
	return func(s *Service) {
		s.serverURL = url
	}
}

// WithOfflineThreshold sets the default threshold of on-demand sweeps.
func WithOfflineThreshold(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.offlineThreshold = d
		}
	}
}

// WithPublishTimeout bounds each hardware command publish.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
