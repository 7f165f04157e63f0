package gateway

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/SessionOS/backend/internal/logging"
	"github.com/GriffinCanCode/SessionOS/backend/internal/types"
)

// SpecRegistry caches the gateway's kernelspec catalog. Specs returns nil
// until the first successful fetch; consumers treat that as "not loaded yet".
type SpecRegistry struct {
	client  *Client
	refresh time.Duration
	log     *logging.Logger

	mu      sync.RWMutex
	catalog *types.KernelSpecCatalog

	stopOnce sync.Once
	stop     chan struct{}
}

// NewSpecRegistry creates a registry refreshing every refresh interval.
func NewSpecRegistry(client *Client, refresh time.Duration, log *logging.Logger) *SpecRegistry {
	if log == nil {
		log = logging.NewDefault()
	}
	return &SpecRegistry{
		client:  client,
		refresh: refresh,
		log:     log.Named("kernelspecs"),
		stop:    make(chan struct{}),
	}
}

// Specs returns the current snapshot, nil before the first load.
func (r *SpecRegistry) Specs() *types.KernelSpecCatalog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.catalog
}

// Refresh fetches a fresh catalog from the gateway.
func (r *SpecRegistry) Refresh(ctx context.Context) error {
	catalog, err := r.client.KernelSpecs(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.catalog = catalog
	r.mu.Unlock()
	r.log.Debug("kernelspec catalog refreshed",
		zap.String("default", catalog.Default),
		zap.Int("specs", len(catalog.Specs)))
	return nil
}

// Start runs the background refresh loop until Close or ctx cancellation.
func (r *SpecRegistry) Start(ctx context.Context) {
	go func() {
		if err := r.Refresh(ctx); err != nil {
			r.log.Warn("initial kernelspec fetch failed", zap.Error(err))
		}
		ticker := time.NewTicker(r.refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-ticker.C:
				if err := r.Refresh(ctx); err != nil {
					r.log.Warn("kernelspec refresh failed", zap.Error(err))
				}
			}
		}
	}()
}

// Close stops the refresh loop.
func (r *SpecRegistry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}
