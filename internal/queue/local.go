package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"medstudy-backend/internal/shared/telemetry"
)

// ErrQueueClosed is returned by Send after Close.
var ErrQueueClosed = errors.New("queue closed")

// LocalQueue is an in-process Client backed by a buffered channel and a
// fixed pool of workers. It bounds the number of pipelines running at once.
type LocalQueue struct {
	handler Handler
	workers int
	jobs    chan Message

	mu      sync.RWMutex
	closed  bool
	started bool
	pending sync.WaitGroup
	group   *errgroup.Group
}

// NewLocalQueue builds a queue that runs handler on up to workers messages
// concurrently. size is the channel buffer.
func NewLocalQueue(handler Handler, workers, size int) *LocalQueue {
	if workers < 1 {
		workers = 1
	}
	if size < 0 {
		size = 0
	}
	return &LocalQueue{
		handler: handler,
		workers: workers,
		jobs:    make(chan Message, size),
	}
}

// Start launches the worker pool. Workers run until Close and drain the
// buffer before exiting. Handlers get a context that keeps ctx's values but
// not its cancellation, so a message already accepted is always handled.
func (q *LocalQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true

	runCtx := context.WithoutCancel(ctx)
	g := new(errgroup.Group)
	for i := 0; i < q.workers; i++ {
		worker := i
		g.Go(func() error {
			for msg := range q.jobs {
				q.run(runCtx, worker, msg)
			}
			return nil
		})
	}
	q.group = g
}

// Send enqueues msg, blocking while the buffer is full.
func (q *LocalQueue) Send(ctx context.Context, msg Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.pending.Add(1)
	select {
	case q.jobs <- msg:
		return nil
	case <-ctx.Done():
		q.pending.Done()
		return ctx.Err()
	}
}

// Flush blocks until every message sent so far has been handled or ctx ends.
func (q *LocalQueue) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages and waits for workers to drain the buffer.
func (q *LocalQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	g := q.group
	q.mu.Unlock()

	if g == nil {
		return nil
	}
	return g.Wait()
}

func (q *LocalQueue) run(ctx context.Context, worker int, msg Message) {
	defer q.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			telemetry.Error("queue.local.panic", map[string]any{
				"document_id": msg.DocumentID,
				"request_id":  msg.RequestID,
				"worker":      worker,
				"panic":       fmt.Sprint(r),
			})
		}
	}()
	if q.handler == nil {
		return
	}
	if err := q.handler(ctx, msg); err != nil {
		telemetry.Error("queue.local.handler_failed", map[string]any{
			"document_id": msg.DocumentID,
			"request_id":  msg.RequestID,
			"worker":      worker,
			"error":       err.Error(),
		})
	}
}

var _ Client = (*LocalQueue)(nil)
