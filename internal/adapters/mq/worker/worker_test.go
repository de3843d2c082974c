package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	queue "github.com/okian/dronesoccer/internal/adapters/mq/queue"
	worker "github.com/okian/dronesoccer/internal/adapters/mq/worker"
	model "github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/types"
	logging "github.com/okian/dronesoccer/pkg/logger"
)

// Mock implementations for testing.
type mockQueue struct {
	commands chan queue.Command
}

func newMockQueue() *mockQueue {
	return &mockQueue{commands: make(chan queue.Command, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Command {
	return mq.commands
}

func (mq *mockQueue) Close() error {
	close(mq.commands)
	return nil
}

type mockPublisher struct {
	mu        sync.Mutex
	published []model.HardwareCommand
	failFor   map[string]error
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{failFor: map[string]error{}}
}

func (mp *mockPublisher) Publish(_ context.Context, cmd model.HardwareCommand) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if err, ok := mp.failFor[cmd.DroneID]; ok {
		return err
	}
	mp.published = append(mp.published, cmd)
	return nil
}

func (mp *mockPublisher) drones() []string {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	out := make([]string, len(mp.published))
	for i, c := range mp.published {
		out[i] = c.DroneID
	}
	return out
}

func cmd(droneID string, c types.Command) model.HardwareCommand {
	return model.HardwareCommand{Command: c, DroneID: droneID, MatchID: "m1", RoundNumber: 1}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		pub := newMockPublisher()
		w := worker.NewInMemoryWorker(q, pub, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When commands are queued", func() {
			q.commands <- cmd("R1", types.CommandStart)
			q.commands <- cmd("B1", types.CommandStart)

			convey.Convey("Then they are published in order", func() {
				convey.So(waitFor(func() bool { return len(pub.drones()) == 2 }), convey.ShouldBeTrue)
				convey.So(pub.drones(), convey.ShouldResemble, []string{"R1", "B1"})
			})
		})

		convey.Convey("When one publish fails", func() {
			pub.failFor["R2"] = errors.New("not connected")
			q.commands <- cmd("R2", types.CommandStop)
			q.commands <- cmd("R3", types.CommandStop)

			convey.Convey("Then the worker carries on with the next command", func() {
				convey.So(waitFor(func() bool { return len(pub.drones()) == 1 }), convey.ShouldBeTrue)
				convey.So(pub.drones()[0], convey.ShouldEqual, "R3")
			})
		})

		convey.Convey("When the worker is shut down", func() {
			err := w.Shutdown(context.Background())

			convey.Convey("Then it stops cleanly", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(32))
		pub := newMockPublisher()
		pool := worker.NewPool(3, q, pub, worker.WithPublishTimeout(time.Second))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When eight commands are queued and the pool shuts down", func() {
			for _, id := range []string{"R1", "R2", "R3", "R4", "B1", "B2", "B3", "B4"} {
				convey.So(q.Enqueue(ctx, cmd(id, types.CommandReset)), convey.ShouldBeTrue)
			}
			err := pool.Shutdown(context.Background())

			convey.Convey("Then every pending command is delivered first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(pub.drones(), convey.ShouldHaveLength, 8)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}
