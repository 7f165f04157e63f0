package types

// KernelStatus is the last reported execution state of a kernel.
type KernelStatus string

const (
	StatusUnknown      KernelStatus = "unknown"
	StatusStarting     KernelStatus = "starting"
	StatusIdle         KernelStatus = "idle"
	StatusBusy         KernelStatus = "busy"
	StatusRestarting   KernelStatus = "restarting"
	StatusAutoRestart  KernelStatus = "autorestarting"
	StatusTerminating  KernelStatus = "terminating"
	StatusDead         KernelStatus = "dead"
)

// IsTerminal reports whether the kernel cannot accept further requests.
func (s KernelStatus) IsTerminal() bool {
	return s == StatusDead
}

// ConnectionStatus is the transport-level state of a kernel connection.
type ConnectionStatus string

const (
	ConnConnecting   ConnectionStatus = "connecting"
	ConnConnected    ConnectionStatus = "connected"
	ConnDisconnected ConnectionStatus = "disconnected"
)

// KernelSpec describes a startable kernel advertised by the gateway.
type KernelSpec struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Language    string `json:"language"`
}

// KernelSpecCatalog is a read-only snapshot of the gateway's kernelspecs.
// A nil catalog means the specs have not been loaded yet.
type KernelSpecCatalog struct {
	Default string                `json:"default"`
	Specs   map[string]KernelSpec `json:"kernelspecs"`
}

// Get returns the spec for name, if present.
func (c *KernelSpecCatalog) Get(name string) (KernelSpec, bool) {
	if c == nil {
		return KernelSpec{}, false
	}
	spec, ok := c.Specs[name]
	return spec, ok
}

// KernelPreference describes how a session would like its kernel chosen.
// Resolution precedence is ID > Name > Language > gateway default.
type KernelPreference struct {
	Name     string `json:"name,omitempty"`
	Language string `json:"language,omitempty"`
	ID       string `json:"id,omitempty"`

	// ShouldStart gates automatic kernel startup during initialization.
	ShouldStart bool `json:"should_start"`
	// CanStart gates any kernel startup at all; when false the selection
	// list collapses to a single disabled no-kernel entry.
	CanStart bool `json:"can_start"`
	// ShutdownOnDispose requests a remote shutdown when the owning
	// manager is disposed.
	ShutdownOnDispose bool `json:"shutdown_on_dispose"`
	// AutoStartDefault allows falling back to the catalog default when
	// name/language resolution yields nothing usable.
	AutoStartDefault bool `json:"auto_start_default"`
}

// DefaultPreference returns the preference applied to new sessions.
func DefaultPreference() KernelPreference {
	return KernelPreference{
		ShouldStart:      true,
		CanStart:         true,
		AutoStartDefault: true,
	}
}

// KernelIdentity names a concrete kernel choice: an existing kernel by ID,
// a startable kernel by spec name, or (zero value) no kernel at all.
type KernelIdentity struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// IsZero reports whether the identity names no kernel.
func (k KernelIdentity) IsZero() bool {
	return k.ID == "" && k.Name == ""
}

// KernelInfo identifies the kernel behind a live connection.
type KernelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RunningSession is a session already active on the gateway.
type RunningSession struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	KernelID   string `json:"kernel_id"`
	KernelName string `json:"kernel_name"`
}
