// Package worker drains the hardware command queue into a Publisher.
//
// Delivery is best effort: a failed publish is logged and counted, never
// retried and never reported back to the match state.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/dronesoccer/internal/adapters/mq/queue"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/pkg/logger"
	"github.com/okian/dronesoccer/pkg/metrics"
)

const (
	defaultWorkers        = 2
	defaultPublishTimeout = 5 * time.Second
	poolShutdownTimeout   = 10 * time.Second
)

// Publisher delivers one command to its drone.
type Publisher interface {
	Publish(ctx context.Context, cmd model.HardwareCommand) error
}

// Queue defines how workers receive commands.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Command
}

// Worker publishes commands until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)
	// Shutdown stops the worker and waits for the command in flight.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	publisher Publisher
	name      string
	timeout   time.Duration

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading q and publishing through p.
func NewInMemoryWorker(q Queue, p Publisher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		publisher: p,
		name:      "worker",
		timeout:   defaultPublishTimeout,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("command-worker").Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	commands := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case cmd, ok := <-commands:
			if !ok {
				return
			}
			if err := w.publish(ctx, cmd); err != nil {
				w.logger.Warn(ctx, "command not delivered",
					logger.String("drone_id", cmd.DroneID),
					logger.String("command", string(cmd.Command)),
					logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) publish(ctx context.Context, cmd model.HardwareCommand) error { //nolint:gocritic // hugeParam: commands travel by value
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	err := w.publisher.Publish(ctx, cmd)
	metrics.RecordCommandPublishLatency(time.Since(start).Seconds())
	if err != nil {
		metrics.RecordHardwareCommand(string(cmd.Command), "failed")
		metrics.RecordErrorByComponent("worker", "publish_error")
		return fmt.Errorf("publish %s to %s: %w", cmd.Command, cmd.DroneID, err)
	}
	metrics.RecordHardwareCommand(string(cmd.Command), "published")
	w.logger.Debug(ctx, "command published",
		logger.String("drone_id", cmd.DroneID),
		logger.String("command", string(cmd.Command)),
		logger.Int("round", cmd.RoundNumber))
	return nil
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers.
func NewPool(workerCount int, q Queue, p Publisher, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkers
	}
	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("command-pool"),
	}
	for i := range pool.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, p, wopts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for every worker to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
