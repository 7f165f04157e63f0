package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/SessionOS/backend/internal/gateway"
	"github.com/GriffinCanCode/SessionOS/backend/internal/monitoring"
	"github.com/GriffinCanCode/SessionOS/backend/internal/registry"
	"github.com/GriffinCanCode/SessionOS/backend/internal/session"
	"github.com/GriffinCanCode/SessionOS/backend/internal/types"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	registry *registry.Manager
	specs    *gateway.SpecRegistry
	metrics  *monitoring.Metrics
	onCreate func(*session.Manager)
}

// NewHandlers creates a new handler set. onCreate runs once for every newly
// created manager, before it is returned to the caller; the server uses it
// to wire event forwarding.
func NewHandlers(reg *registry.Manager, specs *gateway.SpecRegistry, metrics *monitoring.Metrics, onCreate func(*session.Manager)) *Handlers {
	return &Handlers{registry: reg, specs: specs, metrics: metrics, onCreate: onCreate}
}

// sessionView is the JSON shape of one manager.
type sessionView struct {
	Path              string                 `json:"path"`
	Name              string                 `json:"name"`
	Type              string                 `json:"type"`
	Ready             bool                   `json:"ready"`
	KernelDisplayName string                 `json:"kernel_display_name"`
	KernelStatus      string                 `json:"kernel_status"`
	Preference        types.KernelPreference `json:"kernel_preference"`
}

func viewOf(m *session.Manager) sessionView {
	return sessionView{
		Path:              m.Path(),
		Name:              m.Name(),
		Type:              m.Type(),
		Ready:             m.IsReady(),
		KernelDisplayName: m.KernelDisplayName(),
		KernelStatus:      m.KernelDisplayStatus(),
		Preference:        m.KernelPreference(),
	}
}

// Root handles the service banner.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "SessionOS Backend (Go)",
		"version": "0.3.0",
	})
}

// Health handles detailed health check.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"sessions":          len(h.registry.List()),
		"kernelspecs_ready": h.specs.Specs() != nil,
	})
}

// ListSessions lists all live session managers.
func (h *Handlers) ListSessions(c *gin.Context) {
	managers := h.registry.List()
	views := make([]sessionView, 0, len(managers))
	for _, m := range managers {
		views = append(views, viewOf(m))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": views})
}

// createSessionBody is the POST /sessions payload.
type createSessionBody struct {
	Path       string           `json:"path" binding:"required"`
	Name       string           `json:"name"`
	Type       string           `json:"type"`
	Preference *preferencePatch `json:"kernel_preference"`
}

// preferencePatch is the wire form of a kernel preference. Bool fields are
// pointers so that keys absent from the payload keep the session defaults.
type preferencePatch struct {
	Name              string `json:"name"`
	Language          string `json:"language"`
	ID                string `json:"id"`
	ShouldStart       *bool  `json:"should_start"`
	CanStart          *bool  `json:"can_start"`
	ShutdownOnDispose *bool  `json:"shutdown_on_dispose"`
	AutoStartDefault  *bool  `json:"auto_start_default"`
}

// apply merges the posted fields onto pref.
func (p *preferencePatch) apply(pref types.KernelPreference) types.KernelPreference {
	if p == nil {
		return pref
	}
	pref.Name = p.Name
	pref.Language = p.Language
	pref.ID = p.ID
	if p.ShouldStart != nil {
		pref.ShouldStart = *p.ShouldStart
	}
	if p.CanStart != nil {
		pref.CanStart = *p.CanStart
	}
	if p.ShutdownOnDispose != nil {
		pref.ShutdownOnDispose = *p.ShutdownOnDispose
	}
	if p.AutoStartDefault != nil {
		pref.AutoStartDefault = *p.AutoStartDefault
	}
	return pref
}

// CreateSession acquires (or creates) the manager for a path and kicks off
// initialization in the background.
func (h *Handlers) CreateSession(c *gin.Context) {
	var body createSessionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pref := body.Preference.apply(types.DefaultPreference())

	m, created := h.registry.Acquire(body.Path, body.Name, body.Type, pref)
	if created {
		if h.metrics != nil {
			h.metrics.SessionsStarted.Inc()
		}
		if h.onCreate != nil {
			h.onCreate(m)
		}
		go func() {
			// Initialization outcome surfaces through the event
			// stream and the error collaborator.
			_ = m.Initialize(context.Background())
		}()
	}

	c.JSON(http.StatusOK, gin.H{
		"created": created,
		"session": viewOf(m),
	})
}

// GetSession returns one manager.
func (h *Handlers) GetSession(c *gin.Context) {
	m, ok := h.registry.Get(pathParam(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session for path"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": viewOf(m)})
}

// DeleteSession disposes the manager for a path.
func (h *Handlers) DeleteSession(c *gin.Context) {
	removed := h.registry.Remove(pathParam(c))
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// changeKernelBody is the POST .../change-kernel payload.
type changeKernelBody struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChangeKernel switches the session's kernel.
func (h *Handlers) ChangeKernel(c *gin.Context) {
	m, ok := h.registry.Get(pathParam(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session for path"})
		return
	}
	var body changeKernelBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := m.ChangeKernel(c.Request.Context(), types.KernelIdentity{ID: body.ID, Name: body.Name})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if h.metrics != nil {
		h.metrics.KernelChanges.Inc()
	}
	c.JSON(http.StatusOK, gin.H{"session": viewOf(m)})
}

// SelectKernel opens the interactive kernel selection for a session.
func (h *Handlers) SelectKernel(c *gin.Context) {
	m, ok := h.registry.Get(pathParam(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session for path"})
		return
	}
	if err := m.SelectKernel(c.Request.Context()); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": viewOf(m)})
}

// RestartKernel restarts the session's kernel after confirmation.
func (h *Handlers) RestartKernel(c *gin.Context) {
	m, ok := h.registry.Get(pathParam(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session for path"})
		return
	}
	restarted, err := m.Restart(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if restarted && h.metrics != nil {
		h.metrics.KernelRestarts.Inc()
	}
	c.JSON(http.StatusOK, gin.H{"restarted": restarted})
}

// ShutdownSession terminates the session's remote connection.
func (h *Handlers) ShutdownSession(c *gin.Context) {
	m, ok := h.registry.Get(pathParam(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session for path"})
		return
	}
	if err := m.Shutdown(c.Request.Context()); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"shutdown": true})
}

// ListKernelSpecs returns the cached kernelspec catalog.
func (h *Handlers) ListKernelSpecs(c *gin.Context) {
	catalog := h.specs.Specs()
	if catalog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "kernelspecs not loaded yet"})
		return
	}
	c.JSON(http.StatusOK, catalog)
}

// pathParam extracts the session path. A query parameter keeps slashes in
// paths like "notebooks/a.ipynb" intact without fighting the router.
func pathParam(c *gin.Context) string {
	return strings.TrimPrefix(c.Query("path"), "/")
}

// statusFor maps session errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrDisposed):
		return http.StatusGone
	case errors.Is(err, session.ErrNoKernelToRestart):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
