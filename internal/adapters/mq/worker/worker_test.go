package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/vitalcam/internal/adapters/mq/queue"
	worker "github.com/okian/vitalcam/internal/adapters/mq/worker"
	model "github.com/okian/vitalcam/internal/domain/model"
	"github.com/okian/vitalcam/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	ch chan model.Reading
}

func newMockQueue() *mockQueue {
	return &mockQueue{ch: make(chan model.Reading, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan model.Reading { return mq.ch }

type mockSink struct {
	name  string
	err   error
	delay time.Duration

	mu       sync.Mutex
	received []model.Reading
}

func (s *mockSink) Name() string { return s.name }

func (s *mockSink) Deliver(ctx context.Context, r model.Reading) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, r)
	return s.err
}

func (s *mockSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestWorkerDelivers(t *testing.T) {
	convey.Convey("Given a worker with a healthy and a failing sink", t, func() {
		q := newMockQueue()
		good := &mockSink{name: "good"}
		bad := &mockSink{name: "bad", err: errors.New("unreachable")}
		w := worker.NewInMemoryWorker(q, []worker.Sink{bad, good},
			worker.WithName("test"),
			worker.WithLogger(logger.Nop()),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When readings arrive", func() {
			q.ch <- model.Reading{SessionID: "a", HeartRate: 70}
			q.ch <- model.Reading{SessionID: "b", HeartRate: 80}

			convey.Convey("Then every sink sees every reading despite errors", func() {
				convey.So(eventually(func() bool { return good.count() == 2 && bad.count() == 2 }), convey.ShouldBeTrue)
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerTimeout(t *testing.T) {
	convey.Convey("Given a slow sink and a short delivery timeout", t, func() {
		q := newMockQueue()
		slow := &mockSink{name: "slow", delay: time.Second}
		fast := &mockSink{name: "fast"}
		w := worker.NewInMemoryWorker(q, []worker.Sink{slow, fast}, worker.WithDeliveryTimeout(20*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("Then the slow sink is abandoned and the next one still served", func() {
			q.ch <- model.Reading{SessionID: "a"}
			convey.So(eventually(func() bool { return fast.count() == 1 }), convey.ShouldBeTrue)
			convey.So(slow.count(), convey.ShouldEqual, 0)
		})
	})
}

func TestWorkerShutdown(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		w := worker.NewInMemoryWorker(newMockQueue(), nil)
		go w.Run(context.Background())

		convey.Convey("Then shutting down twice is safe", func() {
			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool over an in-memory queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(50))
		sink := &mockSink{name: "collect"}
		p := worker.NewPool(3, q, []worker.Sink{sink})
		convey.So(p.Size(), convey.ShouldEqual, 3)
		p.Start(context.Background())

		convey.Convey("When readings are queued and the pool shuts down", func() {
			for i := 0; i < 20; i++ {
				convey.So(q.Enqueue(context.Background(), model.Reading{HeartRate: 60 + i}), convey.ShouldBeTrue)
			}
			err := p.Shutdown(context.Background())

			convey.Convey("Then the queue is drained first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(sink.count(), convey.ShouldEqual, 20)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a non-positive worker count", t, func() {
		p := worker.NewPool(0, newMockQueue(), nil)

		convey.Convey("Then the default size is used", func() {
			convey.So(p.Size(), convey.ShouldEqual, 2)
		})
	})
}
