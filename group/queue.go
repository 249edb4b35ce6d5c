package group

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// Handler processes one queued item.
type Handler[T any] func(ctx context.Context, item T) error

// Queue processes items strictly in arrival order with at most one handler
// running at any time. A failing or panicking handler is logged and the
// queue continues with the next item.
type Queue[T any] struct {
	name    string
	ctx     context.Context
	handler Handler[T]
	metrics *Metrics

	mu         sync.Mutex
	idle       *sync.Cond
	items      []T
	processing bool
	// inflight counts items enqueued but not yet handled.
	inflight int
}

// NewQueue creates a queue that hands every item to handler with ctx.
func NewQueue[T any](ctx context.Context, name string, handler Handler[T], metrics *Metrics) *Queue[T] {
	q := &Queue[T]{
		name:    name,
		ctx:     ctx,
		handler: handler,
		metrics: metrics,
	}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends item and starts the processor if none is running.
func (q *Queue[T]) Enqueue(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.inflight++
	q.metrics.setQueueDepth(len(q.items))
	start := !q.processing
	if start {
		q.processing = true
	}
	q.mu.Unlock()

	if start {
		go q.process()
	}
}

// Len returns the number of items waiting to be handled.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Wait blocks until every enqueued item has been handled.
func (q *Queue[T]) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.inflight > 0 {
		q.idle.Wait()
	}
}

func (q *Queue[T]) process() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.processing = false
			q.mu.Unlock()
			return
		}
		item := q.items[0]
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		q.metrics.setQueueDepth(len(q.items))
		q.mu.Unlock()

		if err := q.handle(item); err != nil {
			q.metrics.queueFailure()
			logrus.WithFields(logrus.Fields{
				"function": "process",
				"queue":    q.name,
				"error":    err.Error(),
			}).Error("Queue handler failed, continuing with next item")
		}

		q.mu.Lock()
		q.inflight--
		if q.inflight == 0 {
			q.idle.Broadcast()
		}
		q.mu.Unlock()

		// Give other goroutines a turn between items.
		runtime.Gosched()
	}
}

func (q *Queue[T]) handle(item T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	if q.handler == nil {
		return nil
	}
	return q.handler(q.ctx, item)
}
