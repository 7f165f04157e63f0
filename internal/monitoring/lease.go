package monitoring

import (
	"sync"

	"github.com/GriffinCanCode/SessionOS/backend/internal/session"
)

// LeaseProvider hands out busy leases backed by the activity gauge. Each
// held lease is one executing kernel; UI clients watch the gauge to drive a
// global activity indicator.
type LeaseProvider struct {
	metrics *Metrics
}

// NewLeaseProvider creates a provider over the given metrics.
func NewLeaseProvider(metrics *Metrics) *LeaseProvider {
	return &LeaseProvider{metrics: metrics}
}

// Acquire takes one lease. Never returns nil.
func (p *LeaseProvider) Acquire() session.Lease {
	p.metrics.BusyLeases.Inc()
	return &gaugeLease{metrics: p.metrics}
}

// gaugeLease decrements the gauge exactly once on release.
type gaugeLease struct {
	metrics *Metrics
	once    sync.Once
}

func (l *gaugeLease) Release() {
	l.once.Do(func() { l.metrics.BusyLeases.Dec() })
}
