package session

import (
	"context"

	"github.com/GriffinCanCode/SessionOS/backend/internal/types"
)

// Connection is a live attachment to a remote kernel session. Exactly one
// connection is owned by a manager at a time; the previous one is fully
// disposed before a replacement is attached.
type Connection interface {
	ID() string
	Path() string
	Name() string
	Type() string

	// Kernel returns the kernel behind this connection, nil if none.
	Kernel() *types.KernelInfo
	KernelStatus() types.KernelStatus
	ConnectionStatus() types.ConnectionStatus

	// Events yields notifications until the connection is disposed, at
	// which point the channel is closed.
	Events() <-chan types.ConnectionEvent

	// ChangeKernel swaps the kernel in place, keeping session identity.
	ChangeKernel(ctx context.Context, identity types.KernelIdentity) error
	RestartKernel(ctx context.Context) error
	// Shutdown requests remote termination of the session.
	Shutdown(ctx context.Context) error
	// Dispose releases local resources; it never fails.
	Dispose()
}

// StartRequest describes a new remote session to create.
type StartRequest struct {
	Path   string
	Name   string
	Type   string
	Kernel types.KernelIdentity
}

// Directory is the gateway-facing session directory service.
type Directory interface {
	// Ready blocks until the directory has completed its first refresh.
	Ready(ctx context.Context) error
	ListRunning(ctx context.Context) ([]types.RunningSession, error)
	ConnectTo(ctx context.Context, model types.RunningSession) (Connection, error)
	StartNew(ctx context.Context, req StartRequest) (Connection, error)
}

// SpecRegistry exposes the current kernelspec catalog snapshot.
// Specs returns nil before the first successful load.
type SpecRegistry interface {
	Specs() *types.KernelSpecCatalog
}

// Prompter presents an interactive kernel selection to a UI collaborator.
type Prompter interface {
	SelectKernel(ctx context.Context, list types.SelectionList, cancelable bool) (types.SelectionResult, error)
}

// Confirmer asks a UI collaborator to approve a kernel restart.
type Confirmer interface {
	ConfirmRestart(ctx context.Context, kernelName string) (bool, error)
}

// Reporter surfaces operation failures to the user, fire-and-forget.
type Reporter interface {
	ReportError(title string, err error)
}

// Lease is a held busy token; Release is idempotent.
type Lease interface {
	Release()
}

// LeaseProvider hands out busy leases driving a global activity indicator.
// Acquire may return nil when no indicator is wired.
type LeaseProvider interface {
	Acquire() Lease
}
