// Package actor provides the minimal mailbox primitive every pipeline
// component is built on: private state, a single buffered inbox, and one
// goroutine draining it so the component's state never needs locking.
//
// The shape generalizes the drain-goroutine-over-channel pattern used for
// asynchronous telemetry writes in the teacher system this module grew out
// of: a background goroutine ranges over a channel and dispatches each
// message to a handler, and Close drains pending sends before returning.
package actor

import "sync"

// Handler processes one message. It runs on the actor's single goroutine,
// so it may freely mutate closed-over state without synchronization.
type Handler[M any] func(M)

// Mailbox is a FIFO inbox serviced by exactly one goroutine. Sends from
// multiple senders are safe; delivery to the single consumer preserves each
// sender's order (Go channels are FIFO per sender-receiver pair).
type Mailbox[M any] struct {
	ch   chan M
	done chan struct{}
	once sync.Once
}

// NewMailbox starts an actor with the given inbox capacity and handler.
// The handler runs until Close is called and the inbox drains.
func NewMailbox[M any](capacity int, handle Handler[M]) *Mailbox[M] {
	mb := &Mailbox[M]{
		ch:   make(chan M, capacity),
		done: make(chan struct{}),
	}
	go mb.drain(handle)
	return mb
}

func (mb *Mailbox[M]) drain(handle Handler[M]) {
	defer close(mb.done)
	for msg := range mb.ch {
		handle(msg)
	}
}

// Send enqueues a message. It blocks if the inbox is at capacity, providing
// natural back-pressure to producers (matching the "bounded mpsc queue"
// design note for shared audio fan-out).
func (mb *Mailbox[M]) Send(msg M) {
	mb.ch <- msg
}

// TrySend enqueues a message without blocking, returning false if the inbox
// is full. Callers that must never block (e.g. a real-time audio producer)
// use this and treat false as an explicit overflow signal to handle or log,
// never as a silent drop.
func (mb *Mailbox[M]) TrySend(msg M) bool {
	select {
	case mb.ch <- msg:
		return true
	default:
		return false
	}
}

// Close stops accepting new messages and blocks until the handler has
// drained everything already enqueued. Safe to call once; a second call is
// a no-op.
func (mb *Mailbox[M]) Close() {
	mb.once.Do(func() {
		close(mb.ch)
	})
	<-mb.done
}
