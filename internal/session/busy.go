package session

import (
	"sync"

	"github.com/GriffinCanCode/SessionOS/backend/internal/types"
)

// busyTracker maps kernel execution status onto at most one outstanding
// busy lease. Transitions are idempotent: repeated "busy" statuses keep the
// same lease, repeated non-busy statuses are no-ops.
type busyTracker struct {
	mu       sync.Mutex
	provider LeaseProvider
	lease    Lease
}

func newBusyTracker(provider LeaseProvider) *busyTracker {
	return &busyTracker{provider: provider}
}

// Update adjusts the lease to match the reported status.
func (b *busyTracker) Update(status types.KernelStatus) {
	if status == types.StatusBusy {
		b.acquire()
		return
	}
	b.Release()
}

func (b *busyTracker) acquire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lease != nil || b.provider == nil {
		return
	}
	b.lease = b.provider.Acquire()
}

// Release drops the held lease, if any. Safe to call any number of times.
func (b *busyTracker) Release() {
	b.mu.Lock()
	lease := b.lease
	b.lease = nil
	b.mu.Unlock()

	if lease != nil {
		lease.Release()
	}
}
