package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/SessionOS/backend/internal/logging"
	"github.com/GriffinCanCode/SessionOS/backend/internal/types"
)

// fakeConn is a scriptable in-memory connection.
type fakeConn struct {
	mu         sync.Mutex
	id         string
	path       string
	name       string
	typ        string
	kernel     *types.KernelInfo
	status     types.KernelStatus
	connStatus types.ConnectionStatus

	events    chan types.ConnectionEvent
	closeOnce sync.Once

	changeErr   error
	restartErr  error
	shutdownErr error

	// When set, Shutdown signals entry on started then blocks until gate
	// is closed.
	shutdownGate    chan struct{}
	shutdownStarted chan struct{}

	changes   []types.KernelIdentity
	restarts  int
	shutdowns int
	disposed  int
}

func newFakeConn(id, path string, kernel *types.KernelInfo) *fakeConn {
	return &fakeConn{
		id:         id,
		path:       path,
		kernel:     kernel,
		status:     types.StatusIdle,
		connStatus: types.ConnConnected,
		events:     make(chan types.ConnectionEvent, 16),
	}
}

func (c *fakeConn) push(ev types.ConnectionEvent) { c.events <- ev }

func (c *fakeConn) ID() string   { return c.id }
func (c *fakeConn) Path() string { c.mu.Lock(); defer c.mu.Unlock(); return c.path }
func (c *fakeConn) Name() string { c.mu.Lock(); defer c.mu.Unlock(); return c.name }
func (c *fakeConn) Type() string { c.mu.Lock(); defer c.mu.Unlock(); return c.typ }

func (c *fakeConn) Kernel() *types.KernelInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kernel
}

func (c *fakeConn) KernelStatus() types.KernelStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *fakeConn) ConnectionStatus() types.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connStatus
}

func (c *fakeConn) Events() <-chan types.ConnectionEvent { return c.events }

func (c *fakeConn) ChangeKernel(ctx context.Context, identity types.KernelIdentity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.changeErr != nil {
		return c.changeErr
	}
	c.changes = append(c.changes, identity)
	c.kernel = &types.KernelInfo{ID: "k-" + identity.Name, Name: identity.Name}
	return nil
}

func (c *fakeConn) RestartKernel(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.restartErr != nil {
		return c.restartErr
	}
	c.restarts++
	return nil
}

func (c *fakeConn) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	gate, started := c.shutdownGate, c.shutdownStarted
	c.mu.Unlock()
	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdownErr != nil {
		return c.shutdownErr
	}
	c.shutdowns++
	return nil
}

func (c *fakeConn) Dispose() {
	c.mu.Lock()
	c.disposed++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.events) })
}

func (c *fakeConn) setStatus(s types.KernelStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
}

func (c *fakeConn) shutdownCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shutdowns
}

// fakeDirectory scripts the gateway session directory.
type fakeDirectory struct {
	mu       sync.Mutex
	running  []types.RunningSession
	readyErr error
	listErr  error
	startErr error

	started   []StartRequest
	connected []types.RunningSession
	makeConn  func(req StartRequest) *fakeConn
	startGate chan struct{} // when non-nil, StartNew blocks until closed
}

func (d *fakeDirectory) Ready(ctx context.Context) error { return d.readyErr }

func (d *fakeDirectory) ListRunning(ctx context.Context) ([]types.RunningSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running, d.listErr
}

func (d *fakeDirectory) ConnectTo(ctx context.Context, model types.RunningSession) (Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = append(d.connected, model)
	kernel := &types.KernelInfo{ID: model.KernelID, Name: model.KernelName}
	return newFakeConn("conn-"+model.ID, model.Path, kernel), nil
}

func (d *fakeDirectory) StartNew(ctx context.Context, req StartRequest) (Connection, error) {
	if d.startGate != nil {
		<-d.startGate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return nil, d.startErr
	}
	d.started = append(d.started, req)
	if d.makeConn != nil {
		return d.makeConn(req), nil
	}
	kernel := &types.KernelInfo{ID: "k1", Name: req.Kernel.Name}
	if req.Kernel.Name == "" {
		kernel = &types.KernelInfo{ID: req.Kernel.ID, Name: "python3"}
	}
	return newFakeConn("conn-new", req.Path, kernel), nil
}

func (d *fakeDirectory) startCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.started)
}

type fakeSpecs struct {
	catalog *types.KernelSpecCatalog
}

func (s *fakeSpecs) Specs() *types.KernelSpecCatalog { return s.catalog }

type fakePrompter struct {
	mu         sync.Mutex
	result     types.SelectionResult
	err        error
	lists      []types.SelectionList
	cancelable []bool
}

func (p *fakePrompter) SelectKernel(ctx context.Context, list types.SelectionList, cancelable bool) (types.SelectionResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lists = append(p.lists, list)
	p.cancelable = append(p.cancelable, cancelable)
	return p.result, p.err
}

func (p *fakePrompter) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lists)
}

type fakeConfirmer struct {
	accepted bool
	err      error
	calls    int32
}

func (c *fakeConfirmer) ConfirmRestart(ctx context.Context, kernelName string) (bool, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.accepted, c.err
}

type fakeReporter struct {
	mu     sync.Mutex
	titles []string
}

func (r *fakeReporter) ReportError(title string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
}

func (r *fakeReporter) reported() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.titles...)
}

func specsCatalog() *types.KernelSpecCatalog {
	return &types.KernelSpecCatalog{
		Default: "python3",
		Specs: map[string]types.KernelSpec{
			"python3": {Name: "python3", DisplayName: "Python 3", Language: "python"},
			"ir":      {Name: "ir", DisplayName: "R", Language: "r"},
		},
	}
}

type fixture struct {
	dir       *fakeDirectory
	prompter  *fakePrompter
	confirmer *fakeConfirmer
	reporter  *fakeReporter
	leases    *countingLeases
}

func newFixture() *fixture {
	return &fixture{
		dir:       &fakeDirectory{},
		prompter:  &fakePrompter{},
		confirmer: &fakeConfirmer{},
		reporter:  &fakeReporter{},
		leases:    &countingLeases{},
	}
}

func (f *fixture) manager(pref types.KernelPreference) *Manager {
	return NewManager(Identity{Path: "work/a.ipynb", Type: "notebook"}, pref, Deps{
		Directory: f.dir,
		Specs:     &fakeSpecs{catalog: specsCatalog()},
		Prompter:  f.prompter,
		Confirmer: f.confirmer,
		Leases:    f.leases,
		Reporter:  f.reporter,
		Logger:    logging.NewNop(),
	})
}

func TestInitializeStartsPreferredKernel(t *testing.T) {
	f := newFixture()
	m := f.manager(types.KernelPreference{Name: "ir", ShouldStart: true, CanStart: true})
	defer m.Dispose()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !m.IsReady() {
		t.Error("manager should be ready")
	}
	if got := f.dir.startCount(); got != 1 {
		t.Fatalf("expected one session start, got %d", got)
	}
	if req := f.dir.started[0]; req.Kernel.Name != "ir" || req.Path != "work/a.ipynb" {
		t.Errorf("unexpected start request: %+v", req)
	}

	select {
	case change := <-m.KernelChanged():
		if change.Old != nil {
			t.Errorf("first kernel change should have nil old kernel, got %+v", change.Old)
		}
		if change.New == nil || change.New.Name != "ir" {
			t.Errorf("unexpected new kernel: %+v", change.New)
		}
	case <-time.After(time.Second):
		t.Fatal("no kernel change emitted")
	}
}

func TestInitializeCoalescesConcurrentCallers(t *testing.T) {
	f := newFixture()
	f.dir.startGate = make(chan struct{})
	m := f.manager(types.KernelPreference{Name: "python3", ShouldStart: true, CanStart: true})
	defer m.Dispose()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < len(errs); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Initialize(context.Background())
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(f.dir.startGate)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if got := f.dir.startCount(); got != 1 {
		t.Errorf("expected a single coalesced start, got %d", got)
	}
}

func TestInitializeAttachesToExistingSession(t *testing.T) {
	f := newFixture()
	f.dir.running = []types.RunningSession{
		{ID: "s1", Path: "other.ipynb", KernelID: "k0", KernelName: "ir"},
		{ID: "s2", Path: "work/a.ipynb", KernelID: "k1", KernelName: "python3"},
	}
	m := f.manager(types.DefaultPreference())
	defer m.Dispose()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if got := f.dir.startCount(); got != 0 {
		t.Errorf("expected no new session, got %d starts", got)
	}
	if len(f.dir.connected) != 1 || f.dir.connected[0].ID != "s2" {
		t.Fatalf("expected to connect to s2, got %+v", f.dir.connected)
	}
	if m.Connection() == nil {
		t.Fatal("no connection attached")
	}
}

func TestInitializeRespectsShouldStart(t *testing.T) {
	f := newFixture()
	m := f.manager(types.KernelPreference{CanStart: true})
	defer m.Dispose()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if got := f.dir.startCount(); got != 0 {
		t.Errorf("expected no start, got %d", got)
	}
	if got := f.prompter.calls(); got != 0 {
		t.Errorf("expected no selection prompt, got %d", got)
	}
	if m.Connection() != nil {
		t.Error("no connection expected")
	}
}

func TestInitializePromptsWhenUnresolvable(t *testing.T) {
	f := newFixture()
	f.prompter.result = types.SelectionResult{
		Accepted: true,
		Identity: &types.KernelIdentity{Name: "ir"},
	}
	// Ambiguity is impossible here; the preference simply resolves to
	// nothing because fallback to the default is off.
	m := f.manager(types.KernelPreference{ShouldStart: true, CanStart: true})
	defer m.Dispose()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if got := f.prompter.calls(); got != 1 {
		t.Fatalf("expected one selection prompt, got %d", got)
	}
	if f.prompter.cancelable[0] {
		t.Error("initialization prompt should not be cancelable")
	}
	if got := f.dir.startCount(); got != 1 || f.dir.started[0].Kernel.Name != "ir" {
		t.Errorf("expected the selected kernel to start, got %+v", f.dir.started)
	}
}

func TestInitializeStartFailureFallsBackToPrompt(t *testing.T) {
	f := newFixture()
	f.dir.startErr = errors.New("gateway down")
	f.prompter.result = types.SelectionResult{Accepted: false}
	m := f.manager(types.DefaultPreference())
	defer m.Dispose()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize should settle despite the failed start: %v", err)
	}
	if got := f.prompter.calls(); got != 1 {
		t.Errorf("expected a fallback prompt, got %d", got)
	}
	titles := f.reporter.reported()
	if len(titles) == 0 || titles[0] != "Failed to start kernel" {
		t.Errorf("start failure should be reported, got %v", titles)
	}

	if m.Connection() != nil {
		t.Error("no connection expected after failed start")
	}
}

func TestChangeKernelInPlace(t *testing.T) {
	f := newFixture()
	m := f.manager(types.DefaultPreference())
	defer m.Dispose()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	conn := m.Connection().(*fakeConn)

	if err := m.ChangeKernel(context.Background(), types.KernelIdentity{Name: "ir"}); err != nil {
		t.Fatalf("change kernel: %v", err)
	}
	conn.mu.Lock()
	changes := len(conn.changes)
	conn.mu.Unlock()
	if changes != 1 {
		t.Errorf("expected in-place change, got %d", changes)
	}
	if got := f.dir.startCount(); got != 1 {
		t.Errorf("no replacement session expected, got %d starts", got)
	}
}

func TestChangeKernelReplacesDeadConnection(t *testing.T) {
	f := newFixture()
	m := f.manager(types.DefaultPreference())
	defer m.Dispose()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	old := m.Connection().(*fakeConn)
	old.setStatus(types.StatusDead)

	// Drain the change emitted by the initial attach.
	select {
	case <-m.KernelChanged():
	case <-time.After(time.Second):
		t.Fatal("no kernel change from initial attach")
	}

	if err := m.ChangeKernel(context.Background(), types.KernelIdentity{Name: "ir"}); err != nil {
		t.Fatalf("change kernel: %v", err)
	}
	select {
	case change := <-m.KernelChanged():
		if change.Old != nil {
			t.Errorf("replacement change should have nil old kernel, got %+v", change.Old)
		}
		if change.New == nil || change.New.Name != "ir" {
			t.Errorf("unexpected new kernel: %+v", change.New)
		}
	case <-time.After(time.Second):
		t.Fatal("no kernel change emitted for the replacement")
	}
	if got := f.dir.startCount(); got != 2 {
		t.Fatalf("expected a replacement session, got %d starts", got)
	}
	old.mu.Lock()
	disposed := old.disposed
	old.mu.Unlock()
	if disposed == 0 {
		t.Error("dead connection should be disposed")
	}
	if m.Connection() == Connection(old) {
		t.Error("connection should have been replaced")
	}
}

func TestRestartConfirmed(t *testing.T) {
	f := newFixture()
	f.confirmer.accepted = true
	m := f.manager(types.DefaultPreference())
	defer m.Dispose()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	conn := m.Connection().(*fakeConn)

	restarted, err := m.Restart(context.Background())
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if !restarted {
		t.Error("restart should report success")
	}
	conn.mu.Lock()
	restarts := conn.restarts
	conn.mu.Unlock()
	if restarts != 1 {
		t.Errorf("expected one restart, got %d", restarts)
	}
}

func TestRestartDeclined(t *testing.T) {
	f := newFixture()
	f.confirmer.accepted = false
	m := f.manager(types.DefaultPreference())
	defer m.Dispose()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	conn := m.Connection().(*fakeConn)

	restarted, err := m.Restart(context.Background())
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if restarted {
		t.Error("declined restart should report false")
	}
	conn.mu.Lock()
	restarts := conn.restarts
	conn.mu.Unlock()
	if restarts != 0 {
		t.Errorf("expected no restart, got %d", restarts)
	}
}

func TestRestartStartsPreviousKernel(t *testing.T) {
	f := newFixture()
	m := f.manager(types.DefaultPreference())
	defer m.Dispose()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	conn := m.Connection().(*fakeConn)

	// The remote session dies underneath the manager.
	conn.push(types.ConnectionEvent{Kind: types.EventDisposed})
	waitFor(t, func() bool { return m.Connection() == nil }, "connection cleared")

	restarted, err := m.Restart(context.Background())
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if !restarted {
		t.Error("restart from remembered kernel should report success")
	}
	if got := f.dir.startCount(); got != 2 {
		t.Fatalf("expected a fresh session, got %d starts", got)
	}
	if name := f.dir.started[1].Kernel.Name; name != "python3" {
		t.Errorf("expected the previous kernel name, got %q", name)
	}
}

func TestRestartWithoutAnyKernel(t *testing.T) {
	f := newFixture()
	m := f.manager(types.KernelPreference{CanStart: true})
	defer m.Dispose()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := m.Restart(context.Background()); !errors.Is(err, ErrNoKernelToRestart) {
		t.Errorf("expected ErrNoKernelToRestart, got %v", err)
	}
}

func TestShutdownTerminatesSession(t *testing.T) {
	f := newFixture()
	m := f.manager(types.DefaultPreference())
	defer m.Dispose()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	conn := m.Connection().(*fakeConn)

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if got := conn.shutdownCount(); got != 1 {
		t.Errorf("expected one remote shutdown, got %d", got)
	}
	if m.Connection() != nil {
		t.Error("connection should be cleared")
	}

	select {
	case <-m.Terminated():
	default:
		t.Error("terminated should be signaled")
	}
}

func TestShutdownFailureKeepsConnection(t *testing.T) {
	f := newFixture()
	m := f.manager(types.DefaultPreference())
	defer m.Dispose()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	conn := m.Connection().(*fakeConn)
	conn.mu.Lock()
	conn.shutdownErr = errors.New("remote refused")
	conn.mu.Unlock()

	if err := m.Shutdown(context.Background()); err == nil {
		t.Fatal("expected shutdown error")
	}
	if m.Connection() == nil {
		t.Error("failed shutdown should leave the connection in place")
	}
}

func TestShutdownRacingReplacementKeepsNewConnection(t *testing.T) {
	f := newFixture()
	m := f.manager(types.DefaultPreference())
	defer m.Dispose()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	old := m.Connection().(*fakeConn)
	gate := make(chan struct{})
	started := make(chan struct{})
	old.mu.Lock()
	old.shutdownGate = gate
	old.shutdownStarted = started
	old.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- m.Shutdown(context.Background()) }()
	<-started

	// While the remote shutdown is in flight a replacement attaches.
	old.setStatus(types.StatusDead)
	if err := m.ChangeKernel(context.Background(), types.KernelIdentity{Name: "ir"}); err != nil {
		t.Fatalf("change kernel: %v", err)
	}
	repl := m.Connection().(*fakeConn)

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if m.Connection() != Connection(repl) {
		t.Fatal("replacement connection should survive the racing shutdown")
	}
	select {
	case <-m.Terminated():
		t.Error("termination must not fire when the connection was replaced")
	default:
	}

	// The replacement's events still pump.
	repl.push(types.ConnectionEvent{Kind: types.EventStatus, Status: types.StatusBusy})
	waitFor(t, func() bool { return f.leases.acquired() == 1 }, "busy lease from replacement")
}

func TestNilCollaboratorsAreTolerated(t *testing.T) {
	dir := &fakeDirectory{}
	pref := types.KernelPreference{ShouldStart: true, CanStart: true}
	m := NewManager(Identity{Path: "a.ipynb", Type: "notebook"}, pref, Deps{
		Directory: dir,
		Logger:    logging.NewNop(),
	})
	defer m.Dispose()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if m.Connection() != nil {
		t.Error("no kernel should start without a catalog or prompter")
	}
	if err := m.SelectKernel(context.Background()); err != nil {
		t.Errorf("select kernel: %v", err)
	}
}

func TestRestartWithoutConfirmerDeclines(t *testing.T) {
	dir := &fakeDirectory{}
	pref := types.KernelPreference{Name: "python3", ShouldStart: true, CanStart: true}
	m := NewManager(Identity{Path: "a.ipynb", Type: "notebook"}, pref, Deps{
		Directory: dir,
		Specs:     &fakeSpecs{catalog: specsCatalog()},
		Logger:    logging.NewNop(),
	})
	defer m.Dispose()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	conn := m.Connection().(*fakeConn)

	restarted, err := m.Restart(context.Background())
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if restarted {
		t.Error("restart without a confirmer should be declined")
	}
	conn.mu.Lock()
	restarts := conn.restarts
	conn.mu.Unlock()
	if restarts != 0 {
		t.Errorf("expected no restart, got %d", restarts)
	}
}

func TestDisposeIdempotent(t *testing.T) {
	f := newFixture()
	m := f.manager(types.DefaultPreference())

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	conn := m.Connection().(*fakeConn)
	conn.push(types.ConnectionEvent{Kind: types.EventStatus, Status: types.StatusBusy})
	waitFor(t, func() bool { return f.leases.acquired() == 1 }, "busy lease")

	m.Dispose()
	m.Dispose()

	if !m.IsDisposed() {
		t.Error("manager should be disposed")
	}
	if got := f.leases.releases(); got != 1 {
		t.Errorf("lease should be released exactly once, got %d", got)
	}

	select {
	case <-m.Disposed():
	default:
		t.Error("disposed should be signaled")
	}

	if err := m.Initialize(context.Background()); !errors.Is(err, ErrDisposed) {
		t.Errorf("initialize after dispose: %v", err)
	}
	if err := m.ChangeKernel(context.Background(), types.KernelIdentity{Name: "ir"}); !errors.Is(err, ErrDisposed) {
		t.Errorf("change kernel after dispose: %v", err)
	}
	if _, err := m.Restart(context.Background()); !errors.Is(err, ErrDisposed) {
		t.Errorf("restart after dispose: %v", err)
	}
	if err := m.Shutdown(context.Background()); !errors.Is(err, ErrDisposed) {
		t.Errorf("shutdown after dispose: %v", err)
	}
}

func TestDisposeShutsDownWhenRequested(t *testing.T) {
	f := newFixture()
	pref := types.DefaultPreference()
	pref.ShutdownOnDispose = true
	m := f.manager(pref)

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	conn := m.Connection().(*fakeConn)

	m.Dispose()
	waitFor(t, func() bool { return conn.shutdownCount() == 1 }, "remote shutdown on dispose")
}

func TestStatusEventsDriveBusyLease(t *testing.T) {
	f := newFixture()
	m := f.manager(types.DefaultPreference())
	defer m.Dispose()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	conn := m.Connection().(*fakeConn)

	conn.push(types.ConnectionEvent{Kind: types.EventStatus, Status: types.StatusBusy})
	conn.push(types.ConnectionEvent{Kind: types.EventStatus, Status: types.StatusBusy})
	conn.push(types.ConnectionEvent{Kind: types.EventStatus, Status: types.StatusIdle})

	waitFor(t, func() bool { return f.leases.releases() == 1 }, "lease released on idle")
	if got := f.leases.acquired(); got != 1 {
		t.Errorf("repeated busy should hold one lease, got %d", got)
	}
}

func TestSelectKernelCancel(t *testing.T) {
	f := newFixture()
	f.prompter.result = types.SelectionResult{Accepted: false}
	m := f.manager(types.DefaultPreference())
	defer m.Dispose()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	conn := m.Connection().(*fakeConn)

	if err := m.SelectKernel(context.Background()); err != nil {
		t.Fatalf("select kernel: %v", err)
	}
	if got := f.prompter.calls(); got != 1 {
		t.Fatalf("expected one prompt, got %d", got)
	}
	if !f.prompter.cancelable[0] {
		t.Error("explicit selection should be cancelable")
	}
	conn.mu.Lock()
	changes := len(conn.changes)
	conn.mu.Unlock()
	if changes != 0 || m.Connection() == nil {
		t.Error("cancel should leave the session untouched")
	}
}

func TestSelectKernelNoKernelShutsDown(t *testing.T) {
	f := newFixture()
	f.prompter.result = types.SelectionResult{Accepted: true, Identity: &types.KernelIdentity{}}
	m := f.manager(types.DefaultPreference())
	defer m.Dispose()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	conn := m.Connection().(*fakeConn)

	if err := m.SelectKernel(context.Background()); err != nil {
		t.Fatalf("select kernel: %v", err)
	}
	if got := conn.shutdownCount(); got != 1 {
		t.Errorf("accepting no-kernel should shut the session down, got %d shutdowns", got)
	}
}

func TestPropertyEventsRenameSession(t *testing.T) {
	f := newFixture()
	m := f.manager(types.DefaultPreference())
	defer m.Dispose()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	conn := m.Connection().(*fakeConn)

	conn.push(types.ConnectionEvent{
		Kind:     types.EventProperty,
		Property: types.PropertyChange{Property: types.PropPath, Value: "work/renamed.ipynb"},
	})

	waitFor(t, func() bool { return m.Path() == "work/renamed.ipynb" }, "path rename")

	select {
	case change := <-m.PropertyChanged():
		if change.Property != types.PropPath || change.Value != "work/renamed.ipynb" {
			t.Errorf("unexpected property change: %+v", change)
		}
	case <-time.After(time.Second):
		t.Fatal("no property change emitted")
	}
}

func TestReadyUnblocksAfterInitialize(t *testing.T) {
	f := newFixture()
	m := f.manager(types.DefaultPreference())
	defer m.Dispose()

	done := make(chan error, 1)
	go func() { done <- m.Ready(context.Background()) }()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ready: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ready did not unblock")
	}
}
