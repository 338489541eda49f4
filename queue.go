package tgrelay

import (
	"context"
	"errors"
	"sync"

	tg "github.com/requilence/telegram-bot-api"
)

// ErrQueueClosed is returned by Put after the queue was closed
var ErrQueueClosed = errors.New("update queue is closed")

// UpdateQueue is a bounded FIFO of Telegram updates.
// Webhook requests are producers, the Dispatcher is the only consumer
type UpdateQueue struct {
	ch   chan *tg.Update
	done chan struct{}

	mu        sync.Mutex
	closed    bool
	producers sync.WaitGroup
}

// NewUpdateQueue returns the queue that can hold size updates before Put starts to block
func NewUpdateQueue(size int) *UpdateQueue {
	if size < 1 {
		size = 1
	}
	return &UpdateQueue{ch: make(chan *tg.Update, size), done: make(chan struct{})}
}

// Put enqueues the update. It blocks only while the queue is full and gives up when ctx is done
func (q *UpdateQueue) Put(ctx context.Context, u *tg.Update) error {
	if u == nil {
		return errors.New("update is nil")
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	// ch is closed only after every registered producer has left
	q.producers.Add(1)
	q.mu.Unlock()
	defer q.producers.Done()

	select {
	case q.ch <- u:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Updates returns the receive side of the queue.
// It is closed once Close was called and blocked producers have returned
func (q *UpdateQueue) Updates() <-chan *tg.Update {
	return q.ch
}

// Len returns the number of updates waiting to be dispatched
func (q *UpdateQueue) Len() int {
	return len(q.ch)
}

// Close stops accepting new updates and releases producers blocked on a full queue.
// Already queued updates stay readable. Close never blocks
func (q *UpdateQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.done)

	go func() {
		q.producers.Wait()
		close(q.ch)
	}()
}
