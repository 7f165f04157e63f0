// Package registry tracks the live session managers, one per bound path.
package registry

import (
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/SessionOS/backend/internal/config"
	"github.com/GriffinCanCode/SessionOS/backend/internal/logging"
	"github.com/GriffinCanCode/SessionOS/backend/internal/monitoring"
	"github.com/GriffinCanCode/SessionOS/backend/internal/session"
	"github.com/GriffinCanCode/SessionOS/backend/internal/types"
)

// Manager owns every live session manager, keyed by path.
type Manager struct {
	managers sync.Map
	mu       sync.Mutex // serializes create/remove

	deps     session.Deps
	defaults config.SessionConfig
	metrics  *monitoring.Metrics
	log      *logging.Logger
}

// NewManager creates a registry that builds session managers from deps.
func NewManager(deps session.Deps, defaults config.SessionConfig, metrics *monitoring.Metrics, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Manager{
		deps:     deps,
		defaults: defaults,
		metrics:  metrics,
		log:      log.Named("registry"),
	}
}

// Acquire returns the manager bound to path, creating one when absent. The
// boolean reports whether a new manager was created.
func (r *Manager) Acquire(path, name, typ string, pref types.KernelPreference) (*session.Manager, bool) {
	if val, ok := r.managers.Load(path); ok {
		return val.(*session.Manager), false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if val, ok := r.managers.Load(path); ok {
		return val.(*session.Manager), false
	}

	if typ == "" {
		typ = r.defaults.DefaultType
	}
	if r.defaults.ShutdownOnDispose {
		pref.ShutdownOnDispose = true
	}

	m := session.NewManager(session.Identity{Path: path, Name: name, Type: typ}, pref, r.deps)
	r.managers.Store(path, m)
	if r.metrics != nil {
		r.metrics.SessionsActive.Inc()
	}
	r.log.Info("session manager created", zap.String("path", path))
	return m, true
}

// Get retrieves the manager bound to path.
func (r *Manager) Get(path string) (*session.Manager, bool) {
	val, ok := r.managers.Load(path)
	if !ok {
		return nil, false
	}
	return val.(*session.Manager), true
}

// List returns every live manager.
func (r *Manager) List() []*session.Manager {
	var out []*session.Manager
	r.managers.Range(func(_, value interface{}) bool {
		out = append(out, value.(*session.Manager))
		return true
	})
	return out
}

// Remove disposes the manager bound to path and forgets it.
func (r *Manager) Remove(path string) bool {
	val, ok := r.managers.LoadAndDelete(path)
	if !ok {
		return false
	}
	val.(*session.Manager).Dispose()
	if r.metrics != nil {
		r.metrics.SessionsActive.Dec()
	}
	return true
}

// Close disposes every manager.
func (r *Manager) Close() {
	r.managers.Range(func(key, value interface{}) bool {
		value.(*session.Manager).Dispose()
		r.managers.Delete(key)
		if r.metrics != nil {
			r.metrics.SessionsActive.Dec()
		}
		return true
	})
}
