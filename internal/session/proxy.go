package session

import (
	"sync"

	"github.com/GriffinCanCode/SessionOS/backend/internal/types"
)

// eventProxy pumps notifications from whichever connection is currently
// attached into a single sink. Detach fully stops the pump before returning,
// so the sink never observes an event from a replaced connection.
type eventProxy struct {
	mu   sync.Mutex
	sink func(types.ConnectionEvent)
	stop chan struct{}
	done chan struct{}
}

func newEventProxy(sink func(types.ConnectionEvent)) *eventProxy {
	return &eventProxy{sink: sink}
}

// Attach starts forwarding events from conn. The previous connection, if
// any, must already be detached.
func (p *eventProxy) Attach(conn Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.pump(conn.Events(), p.stop, p.done)
}

// Detach stops the pump and waits for it to exit. No-op when nothing is
// attached. After Detach returns the sink receives no further events.
func (p *eventProxy) Detach() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (p *eventProxy) pump(events <-chan types.ConnectionEvent, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			// Re-check stop so an event racing with Detach is dropped
			// instead of delivered against a stale source.
			select {
			case <-stop:
				return
			default:
			}
			p.sink(ev)
		}
	}
}
