package workflow

import (
	"sync"
	"time"

	"crewbe/internal/session"
)

// PhaseChange describes one transition.
type PhaseChange struct {
	SessionID string
	From      session.Phase
	To        session.Phase
	At        time.Time
}

// Observer receives pipeline events. Calls are made sequentially from a
// single goroutine in the order the events happened.
type Observer interface {
	OnPhaseChange(change PhaseChange)
	OnReport(report session.Report)
	OnError(kind ErrorKind, detail string)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	PhaseChange func(PhaseChange)
	Report      func(session.Report)
	Error       func(ErrorKind, string)
}

func (o ObserverFuncs) OnPhaseChange(change PhaseChange) {
	if o.PhaseChange != nil {
		o.PhaseChange(change)
	}
}

func (o ObserverFuncs) OnReport(report session.Report) {
	if o.Report != nil {
		o.Report(report)
	}
}

func (o ObserverFuncs) OnError(kind ErrorKind, detail string) {
	if o.Error != nil {
		o.Error(kind, detail)
	}
}

// eventBus queues events without bounding and delivers them in order.
type eventBus struct {
	mu        sync.Mutex
	observers []Observer
	queue     []func(Observer)
	wake      chan struct{}
	closed    bool
	drained   chan struct{}
}

func newEventBus() *eventBus {
	b := &eventBus{
		wake:    make(chan struct{}, 1),
		drained: make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *eventBus) subscribe(obs Observer) {
	if obs == nil {
		return
	}
	b.mu.Lock()
	b.observers = append(b.observers, obs)
	b.mu.Unlock()
}

func (b *eventBus) publish(event func(Observer)) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, event)
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// close stops accepting events and waits until queued ones are delivered.
func (b *eventBus) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.drained
		return
	}
	b.closed = true
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
	<-b.drained
}

func (b *eventBus) loop() {
	defer close(b.drained)
	for range b.wake {
		for {
			b.mu.Lock()
			if len(b.queue) == 0 {
				closed := b.closed
				b.mu.Unlock()
				if closed {
					return
				}
				break
			}
			event := b.queue[0]
			b.queue = b.queue[1:]
			observers := append([]Observer(nil), b.observers...)
			b.mu.Unlock()
			for _, obs := range observers {
				event(obs)
			}
		}
	}
}
