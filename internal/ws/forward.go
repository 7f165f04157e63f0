package ws

import (
	"github.com/GriffinCanCode/SessionOS/backend/internal/session"
)

// Forward pumps one manager's outward channels to connected UI clients
// until the manager is disposed. Rebinding is unnecessary on the caller's
// side: the manager's channels stay stable across connection replacements.
func (h *Hub) Forward(m *session.Manager) {
	go func() {
		path := m.Path()
		// Terminated stays closed once fired; nil it out so the session
		// keeps forwarding after a revival via select/change kernel.
		terminated := m.Terminated()
		for {
			select {
			case <-m.Disposed():
				h.BroadcastEvent(path, "disposed", nil)
				return
			case <-terminated:
				h.BroadcastEvent(path, "terminated", nil)
				terminated = nil
			case _, ok := <-m.SessionChanged():
				if !ok {
					return
				}
				h.BroadcastEvent(path, "session_changed", nil)
			case ev, ok := <-m.KernelChanged():
				if !ok {
					return
				}
				h.BroadcastEvent(path, "kernel_changed", ev)
			case st, ok := <-m.StatusChanged():
				if !ok {
					return
				}
				h.BroadcastEvent(path, "status_changed", st)
			case cs, ok := <-m.ConnectionStatusChanged():
				if !ok {
					return
				}
				h.BroadcastEvent(path, "connection_status_changed", cs)
			case msg, ok := <-m.IOPubMessage():
				if !ok {
					return
				}
				h.BroadcastEvent(path, "iopub_message", msg)
			case msg, ok := <-m.UnhandledMessage():
				if !ok {
					return
				}
				h.BroadcastEvent(path, "unhandled_message", msg)
			case pc, ok := <-m.PropertyChanged():
				if !ok {
					return
				}
				path = m.Path()
				h.BroadcastEvent(path, "property_changed", pc)
			}
		}
	}()
}
