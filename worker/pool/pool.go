// Package pool runs the single-worker FIFO queue that feeds items to the remover.
//
// Items are enqueued as they arrive, including while a drain is in progress, and the
// one worker goroutine takes them in arrival order. The sem channel has capacity one,
// so at most one handler call is ever in flight.
package pool

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type Handler func(ctx context.Context, itemID string) error

type Queue struct {
	mu      sync.Mutex
	pending []string
	queued  map[string]struct{}
	busy    bool
	idle    chan struct{}
	wake    chan struct{}
	sem     chan struct{}
	handler Handler
	logger  *zap.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewQueue(handler Handler, logger *zap.Logger) *Queue {
	idle := make(chan struct{})
	close(idle)
	return &Queue{
		queued:  make(map[string]struct{}),
		idle:    idle,
		wake:    make(chan struct{}, 1),
		sem:     make(chan struct{}, 1),
		handler: handler,
		logger:  logger,
	}
}

// Start launches the worker. It stops when ctx is cancelled or Shutdown is called.
func (q *Queue) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.run(ctx)
	}()
}

// Enqueue appends ids in order. Ids already waiting are not queued twice.
func (q *Queue) Enqueue(ids ...string) {
	if len(ids) == 0 {
		return
	}

	q.mu.Lock()
	added := 0
	for _, id := range ids {
		if _, ok := q.queued[id]; ok {
			continue
		}
		q.queued[id] = struct{}{}
		q.pending = append(q.pending, id)
		added++
	}
	if added > 0 && !q.busy {
		q.busy = true
		q.idle = make(chan struct{})
	}
	q.mu.Unlock()

	if added > 0 {
		select {
		case q.wake <- struct{}{}:
		default:
		}
	}
}

// Remove drops a waiting id. An id already handed to the handler is unaffected.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.queued[id]; !ok {
		return false
	}
	delete(q.queued, id)
	for i, pid := range q.pending {
		if pid == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
	return true
}

// Clear drops every waiting id.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.pending)
	q.pending = nil
	q.queued = make(map[string]struct{})
	return n
}

// Busy reports whether the queue has work waiting or in flight.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) InFlight() int {
	return len(q.sem)
}

// WaitIdle blocks until nothing is waiting or in flight.
func (q *Queue) WaitIdle(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops the worker after its current item and waits for it to exit.
func (q *Queue) Shutdown() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}

func (q *Queue) run(ctx context.Context) {
	for {
		id, ok := q.next()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-ctx.Done():
				q.logger.Info("Queue worker stopped")
				return
			}
		}

		select {
		case q.sem <- struct{}{}:
		case <-ctx.Done():
			q.logger.Info("Queue worker stopped", zap.Int("waiting", q.Len()+1))
			return
		}
		if err := q.handler(ctx, id); err != nil {
			q.logger.Debug("Item handler returned error",
				zap.String("item_id", id),
				zap.Error(err),
			)
		}
		<-q.sem
	}
}

// next pops the oldest id, or marks the queue idle when there is none.
func (q *Queue) next() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		if q.busy {
			q.busy = false
			close(q.idle)
		}
		return "", false
	}

	id := q.pending[0]
	q.pending = q.pending[1:]
	delete(q.queued, id)
	return id, true
}
