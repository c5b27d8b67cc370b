package lifecycle

import (
	"context"
	"time"

	"github.com/distml/distsage"
	"github.com/distml/distsage/runstore"
)

// MonitorConfig holds configuration for the stale-worker Monitor.
type MonitorConfig struct {
	// Store is the run store to scan (required).
	Store runstore.Store

	// RunID is the run whose workers are monitored (required).
	RunID string

	// StaleTimeout is the duration after which a worker without a
	// heartbeat is considered dead (default: 30s).
	StaleTimeout time.Duration

	// Interval is how often the scan runs (default: 10s).
	Interval time.Duration

	// Logger is for observability (optional).
	Logger distsage.Logger
}

// Monitor marks workers that stopped heartbeating as failed. A stalled
// worker cannot be recovered mid-run; marking it failed makes the hang
// visible to operators watching the run store while its peers time out in
// their next collective.
type Monitor struct {
	config MonitorConfig
}

// NewMonitor creates a Monitor with the given configuration.
// Applies default values for StaleTimeout and Interval if not set.
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.StaleTimeout == 0 {
		cfg.StaleTimeout = 30 * time.Second
	}
	if cfg.Interval == 0 {
		cfg.Interval = 10 * time.Second
	}

	return &Monitor{config: cfg}
}

// Run scans for stale workers until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := m.Sweep(ctx); err != nil {
				return err
			}
		}
	}
}

// Sweep marks every active worker whose last heartbeat is older than the
// stale timeout as failed.
func (m *Monitor) Sweep(ctx context.Context) error {
	workers, err := m.config.Store.GetWorkers(ctx, m.config.RunID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, w := range workers {
		if w.State == distsage.WorkerStateDone || w.State == distsage.WorkerStateFailed {
			continue
		}
		if now.Sub(w.LastHeartbeat) > m.config.StaleTimeout {
			if err := m.config.Store.MarkWorkerFailed(ctx, w.ID); err != nil {
				return err
			}

			if m.config.Logger != nil {
				m.config.Logger.Info(ctx, "marked stale worker as failed",
					"workerID", w.ID,
					"rank", w.Rank,
					"lastHeartbeat", w.LastHeartbeat,
					"staleDuration", now.Sub(w.LastHeartbeat))
			}
		}
	}

	return nil
}
