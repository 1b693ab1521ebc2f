package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Publisher is the write side of the notification channel. Publish never
// blocks and never reports failure to the caller: by the time an event is
// published the underlying state change has already committed, so delivery
// problems are logged and dropped rather than escalated.
type Publisher interface {
	Publish(ev Event)
}

// Broadcaster is the delivery side: it fans a framed event out to all
// currently connected observers, best effort.
type Broadcaster interface {
	Broadcast(frame []byte)
}

// Nop is a Publisher that discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}

// Dispatcher decouples event emission from delivery. Producers publish into
// a buffered inbox; a single background goroutine encodes each event and
// hands the frame to the Broadcaster. When the inbox is full the event is
// dropped with a warning, keeping the transactional path free of
// back-pressure from slow observers.
type Dispatcher struct {
	out   Broadcaster
	inbox chan Event
	lg    *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// NewDispatcher creates a Dispatcher with the given inbox capacity.
func NewDispatcher(out Broadcaster, buf int, lg *zap.Logger) *Dispatcher {
	if buf <= 0 {
		buf = 256
	}
	return &Dispatcher{
		out:    out,
		inbox:  make(chan Event, buf),
		lg:     lg,
		closed: make(chan struct{}),
	}
}

// Start launches the delivery loop. The loop exits after Close once the
// inbox is drained, or when ctx is cancelled after delivering whatever is
// already buffered.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		defer close(d.closed)
		for {
			select {
			case ev, ok := <-d.inbox:
				if !ok {
					return
				}
				d.deliver(ev)
			case <-ctx.Done():
				d.drain()
				return
			}
		}
	}()
}

// drain delivers buffered events without blocking for new ones.
func (d *Dispatcher) drain() {
	for {
		select {
		case ev, ok := <-d.inbox:
			if !ok {
				return
			}
			d.deliver(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	d.out.Broadcast(Encode(ev))
}

// Publish enqueues an event for delivery. It never blocks: if the inbox is
// full the event is dropped and logged. Publish must not be called after
// Close.
func (d *Dispatcher) Publish(ev Event) {
	select {
	case d.inbox <- ev:
	default:
		d.lg.Warn("event inbox full, dropping event", zap.String("event", ev.EventName()))
	}
}

// Close stops accepting events; the delivery loop flushes the inbox and
// exits. Safe to call multiple times.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.inbox) })
}

// WaitClosed blocks until the delivery loop has exited.
func (d *Dispatcher) WaitClosed() { <-d.closed }
