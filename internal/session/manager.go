// Package session owns the lifecycle of a compute session bound to a stable
// {path, name, type} identity and backed by a restartable remote kernel.
// Clients attach once and observe a single stable event surface while the
// underlying connection is created, replaced, restarted, or torn down.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/SessionOS/backend/internal/logging"
	"github.com/GriffinCanCode/SessionOS/backend/internal/selection"
	"github.com/GriffinCanCode/SessionOS/backend/internal/types"
)

// ReadyState tracks initialization progress. It only ever advances.
type ReadyState int32

const (
	StateUninitialized ReadyState = iota
	StateInitializing
	StateReady
)

// disposeShutdownTimeout bounds the fire-and-forget remote shutdown issued
// by Dispose when the preference requests it.
const disposeShutdownTimeout = 10 * time.Second

// Deps are the external collaborators a manager composes. Directory is
// required; all other collaborators tolerate nil, degrading to declined
// dialogs, dropped reports, an empty catalog and no busy leases.
type Deps struct {
	Directory Directory
	Specs     SpecRegistry
	Prompter  Prompter
	Confirmer Confirmer
	Leases    LeaseProvider
	Reporter  Reporter
	Logger    *logging.Logger
}

// Manager is the session lifecycle state machine. All exported methods are
// safe for concurrent use; concurrent Initialize callers are coalesced onto
// a single shared outcome.
type Manager struct {
	deps Deps
	log  *logging.Logger

	// connMu serializes connection transitions (attach, shutdown detach,
	// dispose detach) so detach-before-attach holds under concurrency.
	connMu sync.Mutex

	mu             sync.Mutex
	path           string
	name           string
	typ            string
	pref           types.KernelPreference
	conn           Connection
	prevKernelName string
	state          ReadyState
	initErr        error
	disposed       bool

	readyCh    chan struct{} // closed when state reaches StateReady
	disposeCtx context.Context
	cancel     context.CancelFunc

	proxy  *eventProxy
	busy   *busyTracker
	events *outwardEvents
}

// Identity is the stable binding a manager is created with.
type Identity struct {
	Path string
	Name string
	Type string
}

// NewManager creates a manager bound to identity with the given preference.
func NewManager(identity Identity, pref types.KernelPreference, deps Deps) *Manager {
	log := deps.Logger
	if log == nil {
		log = logging.NewDefault()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		deps:       deps,
		log:        log.With(zap.String("session_path", identity.Path)),
		path:       identity.Path,
		name:       identity.Name,
		typ:        identity.Type,
		pref:       pref,
		readyCh:    make(chan struct{}),
		disposeCtx: ctx,
		cancel:     cancel,
		busy:       newBusyTracker(deps.Leases),
		events:     newOutwardEvents(),
	}
	m.proxy = newEventProxy(m.handleEvent)
	return m
}

// Identity accessors. Path, name and type change only through rename
// notifications from the remote connection.

func (m *Manager) Path() string { m.mu.Lock(); defer m.mu.Unlock(); return m.path }
func (m *Manager) Name() string { m.mu.Lock(); defer m.mu.Unlock(); return m.name }
func (m *Manager) Type() string { m.mu.Lock(); defer m.mu.Unlock(); return m.typ }

// KernelPreference returns the current preference.
func (m *Manager) KernelPreference() types.KernelPreference {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pref
}

// SetKernelPreference replaces the preference used by later resolutions.
func (m *Manager) SetKernelPreference(pref types.KernelPreference) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pref = pref
}

// IsReady reports whether initialization has settled.
func (m *Manager) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateReady
}

// IsDisposed reports whether Dispose has been called.
func (m *Manager) IsDisposed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disposed
}

// Ready blocks until initialization has settled, however it settled.
func (m *Manager) Ready(ctx context.Context) error {
	select {
	case <-m.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connection returns the live connection, nil when none is attached.
func (m *Manager) Connection() Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

// KernelDisplayName resolves the current kernel to a human-readable name.
func (m *Manager) KernelDisplayName() string {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil || conn.Kernel() == nil {
		return "No Kernel"
	}
	name := conn.Kernel().Name
	if spec, ok := m.specs().Get(name); ok && spec.DisplayName != "" {
		return spec.DisplayName
	}
	return name
}

// KernelDisplayStatus is the transport status while disconnected, the
// execution status otherwise.
func (m *Manager) KernelDisplayStatus() string {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil || conn.Kernel() == nil {
		return string(types.StatusIdle)
	}
	if cs := conn.ConnectionStatus(); cs != types.ConnConnected {
		return string(cs)
	}
	return string(conn.KernelStatus())
}

// Event surface. Channels remain stable across connection replacements and
// are closed at disposal.

func (m *Manager) SessionChanged() <-chan struct{}          { return m.events.sessionChanged }
func (m *Manager) KernelChanged() <-chan types.KernelChange { return m.events.kernelChanged }
func (m *Manager) StatusChanged() <-chan types.KernelStatus { return m.events.statusChanged }
func (m *Manager) ConnectionStatusChanged() <-chan types.ConnectionStatus {
	return m.events.connStatus
}
func (m *Manager) IOPubMessage() <-chan types.Message           { return m.events.iopub }
func (m *Manager) UnhandledMessage() <-chan types.Message       { return m.events.unhandled }
func (m *Manager) PropertyChanged() <-chan types.PropertyChange { return m.events.propertyChanged }
func (m *Manager) Disposed() <-chan struct{}                    { return m.events.disposed }
func (m *Manager) Terminated() <-chan struct{}                  { return m.events.terminated }

// Initialize attaches to an existing remote session at the bound path or
// starts a new one according to the kernel preference. It is idempotent:
// the startup sequence runs once, concurrent callers share its outcome, and
// readiness is reached exactly once even when startup fails.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return ErrDisposed
	}
	switch m.state {
	case StateReady:
		err := m.initErr
		m.mu.Unlock()
		return err
	case StateInitializing:
		m.mu.Unlock()
		select {
		case <-m.readyCh:
			m.mu.Lock()
			err := m.initErr
			m.mu.Unlock()
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.state = StateInitializing
	m.mu.Unlock()

	err := m.runInitialize(ctx)

	m.mu.Lock()
	m.state = StateReady
	m.initErr = err
	m.mu.Unlock()
	close(m.readyCh)

	if err != nil {
		m.log.Warn("session initialization failed", zap.Error(err))
	}
	return err
}

// runInitialize performs the one-shot startup sequence.
func (m *Manager) runInitialize(ctx context.Context) error {
	if err := m.deps.Directory.Ready(ctx); err != nil {
		return err
	}
	if m.IsDisposed() {
		return ErrDisposed
	}

	path := m.Path()
	models, err := m.deps.Directory.ListRunning(ctx)
	if err != nil {
		m.report("Failed to list running sessions", err)
		return err
	}
	for _, model := range models {
		if model.Path != path {
			continue
		}
		conn, err := m.deps.Directory.ConnectTo(ctx, model)
		if err != nil {
			m.report("Failed to connect to session", err)
			return err
		}
		return m.attach(conn)
	}

	pref := m.KernelPreference()
	if !pref.ShouldStart || !pref.CanStart {
		return nil
	}

	identity := types.KernelIdentity{ID: pref.ID}
	if identity.ID == "" {
		identity.Name = selection.ResolveDefault(m.specs(), pref)
	}
	if !identity.IsZero() {
		if err := m.startSession(ctx, identity); err == nil {
			return nil
		}
		// Fall through to interactive selection; the failure has
		// already been reported to the user.
	}
	return m.promptSelection(ctx, false)
}

// ChangeKernel switches the session to the requested kernel. When a live,
// non-dead kernel exists the swap happens in place on the current
// connection; otherwise a new remote session replaces it.
func (m *Manager) ChangeKernel(ctx context.Context, identity types.KernelIdentity) error {
	if err := m.Initialize(ctx); err != nil {
		if err == ErrDisposed || ctx.Err() != nil {
			return err
		}
		// Initialization failures do not poison explicit changes; the
		// session may still recover with a different kernel.
		m.log.Debug("changing kernel after failed initialization", zap.Error(err))
	}
	return m.changeKernel(ctx, identity)
}

func (m *Manager) changeKernel(ctx context.Context, identity types.KernelIdentity) error {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return ErrDisposed
	}
	conn := m.conn
	m.mu.Unlock()

	if conn != nil && conn.Kernel() != nil && !conn.KernelStatus().IsTerminal() {
		if err := conn.ChangeKernel(ctx, identity); err != nil {
			m.report("Failed to change kernel", err)
			return err
		}
		return nil
	}
	return m.startSession(ctx, identity)
}

// SelectKernel presents the ranked kernel selection to the interactive
// collaborator with a cancel option.
func (m *Manager) SelectKernel(ctx context.Context) error {
	if err := m.Initialize(ctx); err != nil {
		if err == ErrDisposed || ctx.Err() != nil {
			return err
		}
	}
	if m.IsDisposed() {
		return ErrDisposed
	}
	return m.promptSelection(ctx, true)
}

// promptSelection runs one interactive selection round trip and applies the
// outcome. A cancel is a no-op; accepting "no kernel" shuts the current
// connection down.
func (m *Manager) promptSelection(ctx context.Context, cancelable bool) error {
	// No UI collaborator wired; treat the selection as canceled.
	if m.deps.Prompter == nil {
		return nil
	}

	running, err := m.deps.Directory.ListRunning(ctx)
	if err != nil {
		m.log.Warn("listing running sessions for selection", zap.Error(err))
	}

	m.mu.Lock()
	pref := m.pref
	if m.conn != nil && m.conn.Kernel() != nil {
		pref.ID = m.conn.Kernel().ID
	}
	m.mu.Unlock()

	list := selection.BuildList(m.specs(), pref, running)

	dctx, cancel := m.dialogContext(ctx)
	defer cancel()
	result, err := m.deps.Prompter.SelectKernel(dctx, list, cancelable)
	if err != nil {
		if m.IsDisposed() {
			return ErrDisposed
		}
		return err
	}
	if m.IsDisposed() {
		return ErrDisposed
	}
	if !result.Accepted {
		return nil
	}
	if result.Identity == nil || result.Identity.IsZero() {
		return m.Shutdown(ctx)
	}
	return m.changeKernel(ctx, *result.Identity)
}

// Restart restarts the current kernel after confirmation. With no live
// kernel it falls back to starting the previously used kernel by name.
// The boolean reports whether a restart actually happened.
func (m *Manager) Restart(ctx context.Context) (bool, error) {
	if err := m.Initialize(ctx); err != nil {
		if err == ErrDisposed || ctx.Err() != nil {
			return false, err
		}
	}

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return false, ErrDisposed
	}
	conn := m.conn
	prev := m.prevKernelName
	m.mu.Unlock()

	if conn != nil && conn.Kernel() != nil && !conn.KernelStatus().IsTerminal() {
		// No UI collaborator wired; treat the restart as declined.
		if m.deps.Confirmer == nil {
			return false, nil
		}
		dctx, cancel := m.dialogContext(ctx)
		defer cancel()
		accepted, err := m.deps.Confirmer.ConfirmRestart(dctx, m.KernelDisplayName())
		if err != nil {
			if m.IsDisposed() {
				return false, ErrDisposed
			}
			return false, err
		}
		if !accepted {
			return false, nil
		}
		if m.IsDisposed() {
			return false, ErrDisposed
		}
		// The kernel may have died while the confirmation was pending.
		if conn.Kernel() == nil || conn.KernelStatus().IsTerminal() {
			return false, nil
		}
		if err := conn.RestartKernel(ctx); err != nil {
			m.report("Failed to restart kernel", err)
			return false, err
		}
		return true, nil
	}

	if prev != "" {
		if err := m.startSession(ctx, types.KernelIdentity{Name: prev}); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, ErrNoKernelToRestart
}

// Shutdown terminates the current remote session, if any. Remote failures
// are surfaced to the caller and leave the connection in place.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return ErrDisposed
	}
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Shutdown(ctx); err != nil {
		return err
	}

	m.connMu.Lock()
	m.mu.Lock()
	current := m.conn == conn
	if current {
		m.conn = nil
	}
	m.mu.Unlock()
	if current {
		m.proxy.Detach()
	}
	m.connMu.Unlock()

	// A concurrent attach may have replaced conn during the remote call;
	// the replacement already disposed it and must keep its own pump.
	if !current {
		return nil
	}
	conn.Dispose()
	m.busy.Release()
	m.events.markTerminated()
	emit(m.events, m.events.kernelChanged, types.KernelChange{})
	return nil
}

// Dispose tears the manager down. Idempotent; the busy lease is released and
// the disposal notification emitted exactly once. When the preference asks
// for it, a best-effort remote shutdown is issued without blocking disposal.
func (m *Manager) Dispose() {
	m.connMu.Lock()
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		m.connMu.Unlock()
		return
	}
	m.disposed = true
	conn := m.conn
	m.conn = nil
	pref := m.pref
	m.mu.Unlock()

	// Cancel outstanding interactive dialogs.
	m.cancel()
	m.proxy.Detach()
	m.connMu.Unlock()

	if conn != nil {
		if pref.ShutdownOnDispose {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), disposeShutdownTimeout)
				defer cancel()
				if err := conn.Shutdown(ctx); err != nil {
					m.log.Warn("shutdown on dispose failed", zap.Error(err))
				}
				conn.Dispose()
			}()
		} else {
			conn.Dispose()
		}
	}

	m.busy.Release()
	m.events.close()
	m.log.Info("session manager disposed")
}

// startSession creates a new remote session with the requested kernel and
// attaches to it, replacing any current connection.
func (m *Manager) startSession(ctx context.Context, identity types.KernelIdentity) error {
	m.mu.Lock()
	req := StartRequest{Path: m.path, Name: m.name, Type: m.typ, Kernel: identity}
	m.mu.Unlock()

	conn, err := m.deps.Directory.StartNew(ctx, req)
	if err != nil {
		serr := &StartError{Path: req.Path, Err: err}
		m.report("Failed to start kernel", serr)
		return serr
	}
	// Disposal during the round trip discards the result.
	if m.IsDisposed() {
		conn.Dispose()
		return ErrDisposed
	}
	return m.attach(conn)
}

// attach installs conn as the current connection. The outgoing connection's
// event pump is stopped before the incoming connection is attached, so no
// stale event is ever delivered.
func (m *Manager) attach(conn Connection) error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	m.proxy.Detach()

	m.mu.Lock()
	old := m.conn
	m.conn = nil
	m.mu.Unlock()
	if old != nil {
		old.Dispose()
	}

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		conn.Dispose()
		return ErrDisposed
	}
	m.conn = conn
	if k := conn.Kernel(); k != nil {
		m.prevKernelName = k.Name
	}
	var props []types.PropertyChange
	if p := conn.Path(); p != "" && p != m.path {
		m.path = p
		props = append(props, types.PropertyChange{Property: types.PropPath, Value: p})
	}
	if n := conn.Name(); n != "" && n != m.name {
		m.name = n
		props = append(props, types.PropertyChange{Property: types.PropName, Value: n})
	}
	if t := conn.Type(); t != "" && t != m.typ {
		m.typ = t
		props = append(props, types.PropertyChange{Property: types.PropType, Value: t})
	}
	kernelName := m.prevKernelName
	m.mu.Unlock()

	m.proxy.Attach(conn)

	emit(m.events, m.events.sessionChanged, struct{}{})
	for _, p := range props {
		emit(m.events, m.events.propertyChanged, p)
	}
	// Old is always nil here: the previous connection was fully detached
	// before this attach.
	emit(m.events, m.events.kernelChanged, types.KernelChange{New: conn.Kernel()})
	m.busy.Update(conn.KernelStatus())

	m.log.Info("session connection attached",
		zap.String("connection_id", conn.ID()),
		zap.String("kernel", kernelName))
	return nil
}

// handleEvent routes one notification from the attached connection.
func (m *Manager) handleEvent(ev types.ConnectionEvent) {
	switch ev.Kind {
	case types.EventProperty:
		m.mu.Lock()
		switch ev.Property.Property {
		case types.PropPath:
			m.path = ev.Property.Value
		case types.PropName:
			m.name = ev.Property.Value
		case types.PropType:
			m.typ = ev.Property.Value
		}
		m.mu.Unlock()
		emit(m.events, m.events.propertyChanged, ev.Property)

	case types.EventKernel:
		if ev.Kernel.New != nil {
			m.mu.Lock()
			m.prevKernelName = ev.Kernel.New.Name
			m.mu.Unlock()
		}
		emit(m.events, m.events.kernelChanged, ev.Kernel)

	case types.EventStatus:
		m.busy.Update(ev.Status)
		emit(m.events, m.events.statusChanged, ev.Status)

	case types.EventConnectionStatus:
		emit(m.events, m.events.connStatus, ev.ConnectionStatus)

	case types.EventIOPub:
		emit(m.events, m.events.iopub, ev.Message)

	case types.EventUnhandled:
		emit(m.events, m.events.unhandled, ev.Message)

	case types.EventDisposed:
		// The remote session went away underneath us. The pump exits on
		// its own once the connection closes its event channel.
		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
		m.busy.Release()
		m.events.markTerminated()
	}
}

// dialogContext derives a context canceled by disposal, so outstanding
// interactive dialogs are torn down with the manager.
func (m *Manager) dialogContext(ctx context.Context) (context.Context, context.CancelFunc) {
	dctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.disposeCtx, cancel)
	return dctx, func() { stop(); cancel() }
}

func (m *Manager) specs() *types.KernelSpecCatalog {
	if m.deps.Specs == nil {
		return nil
	}
	return m.deps.Specs.Specs()
}

func (m *Manager) report(title string, err error) {
	if m.deps.Reporter != nil {
		m.deps.Reporter.ReportError(title, err)
	}
}
