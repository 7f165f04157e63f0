package session

import (
	"sync"

	"github.com/GriffinCanCode/SessionOS/backend/internal/types"
)

// eventBufferSize bounds each outward channel. Slow consumers drop the
// oldest pending event rather than stall the manager.
const eventBufferSize = 64

// outwardEvents is the stable event surface a manager exposes. The channels
// survive any number of connection replacements and are closed exactly once
// at disposal, after the terminal disposed notification.
type outwardEvents struct {
	mu     sync.Mutex
	closed bool

	sessionChanged   chan struct{}
	kernelChanged    chan types.KernelChange
	statusChanged    chan types.KernelStatus
	connStatus       chan types.ConnectionStatus
	iopub            chan types.Message
	unhandled        chan types.Message
	propertyChanged  chan types.PropertyChange
	disposed         chan struct{}
	terminated       chan struct{}
	terminatedOnce   sync.Once
}

func newOutwardEvents() *outwardEvents {
	return &outwardEvents{
		sessionChanged:  make(chan struct{}, eventBufferSize),
		kernelChanged:   make(chan types.KernelChange, eventBufferSize),
		statusChanged:   make(chan types.KernelStatus, eventBufferSize),
		connStatus:      make(chan types.ConnectionStatus, eventBufferSize),
		iopub:           make(chan types.Message, eventBufferSize),
		unhandled:       make(chan types.Message, eventBufferSize),
		propertyChanged: make(chan types.PropertyChange, eventBufferSize),
		disposed:        make(chan struct{}),
		terminated:      make(chan struct{}),
	}
}

// emit delivers onto ch unless the surface is closed, evicting the oldest
// pending value when the buffer is full.
func emit[T any](e *outwardEvents, ch chan T, v T) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// markTerminated broadcasts session termination. Safe to call repeatedly.
func (e *outwardEvents) markTerminated() {
	e.terminatedOnce.Do(func() { close(e.terminated) })
}

// close emits the terminal disposed notification then closes every channel.
func (e *outwardEvents) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true

	close(e.disposed)
	close(e.sessionChanged)
	close(e.kernelChanged)
	close(e.statusChanged)
	close(e.connStatus)
	close(e.iopub)
	close(e.unhandled)
	close(e.propertyChanged)
}
