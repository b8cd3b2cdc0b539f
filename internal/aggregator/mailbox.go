package aggregator

import (
	"context"
	"errors"
	"sync"

	"github.com/jpalmerr/landingboard/internal/store"
)

// ErrMailboxClosed is returned by [Mailbox.Receive] once the mailbox is closed
// and drained.
var ErrMailboxClosed = errors.New("aggregator: mailbox closed")

// Mailbox is an unbounded multi-producer, single-consumer FIFO of updates.
//
// Send never blocks. Messages are received in the order Send was called, so
// updates from one producer keep their relative order.
type Mailbox struct {
	mu     sync.Mutex
	queue  []store.Update
	closed bool
	notify chan struct{}
}

// NewMailbox creates an empty, open mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{notify: make(chan struct{}, 1)}
}

// Send enqueues u. It reports false if the mailbox is already closed, in
// which case u is dropped.
func (m *Mailbox) Send(u store.Update) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, u)
	m.mu.Unlock()

	m.wake()
	return true
}

// Receive blocks until an update is available, the mailbox is closed and
// empty, or ctx is done.
func (m *Mailbox) Receive(ctx context.Context) (store.Update, error) {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			u := m.queue[0]
			m.queue[0] = store.Update{}
			m.queue = m.queue[1:]
			if len(m.queue) == 0 {
				// release the backing array after a burst
				m.queue = nil
			}
			m.mu.Unlock()
			return u, nil
		}
		if m.closed {
			m.mu.Unlock()
			return store.Update{}, ErrMailboxClosed
		}
		m.mu.Unlock()

		select {
		case <-m.notify:
		case <-ctx.Done():
			return store.Update{}, ctx.Err()
		}
	}
}

// Close stops accepting new updates. Queued updates can still be received.
// Safe to call multiple times.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.wake()
}

// Len returns the number of queued updates.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Mailbox) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}
