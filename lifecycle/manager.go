// Package lifecycle manages a worker's registration, heartbeating, and
// state transitions against the run store.
package lifecycle

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/distml/distsage"
	"github.com/distml/distsage/runstore"
)

// DefaultHeartbeatInterval is used when Config.HeartbeatInterval is zero.
const DefaultHeartbeatInterval = 5 * time.Second

// Config holds configuration for the lifecycle Manager.
type Config struct {
	// Store is the run store for worker coordination (required).
	Store runstore.Store

	// HeartbeatInterval is the interval between heartbeats
	// (default: DefaultHeartbeatInterval).
	HeartbeatInterval time.Duration

	// Logger is for observability (optional).
	Logger distsage.Logger
}

// Manager drives one worker's lifecycle: it registers the worker under a
// run, keeps its heartbeat fresh, and records state transitions. A Manager
// belongs to exactly one worker.
type Manager struct {
	config   Config
	workerID string
	rank     int
}

// New creates a lifecycle Manager, filling in the default heartbeat
// interval if none is set.
func New(cfg Config) *Manager {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	return &Manager{config: cfg}
}

// Register creates the worker record for this rank under runID. The worker
// starts in the joining state; the assigned worker ID is retained for all
// later calls and returned.
func (m *Manager) Register(ctx context.Context, runID string, rank int) (string, error) {
	worker, err := m.config.Store.RegisterWorker(ctx, runID, rank)
	if err != nil {
		return "", errors.WithMessage(err, "registering worker")
	}

	m.workerID = worker.ID
	m.rank = rank
	return worker.ID, nil
}

// StartHeartbeat blocks, refreshing the worker's heartbeat at the
// configured interval until the context is cancelled (returns nil) or a
// heartbeat fails (returns that error). Run it in its own goroutine; a
// worker whose loop has stopped will eventually be marked failed by the
// stale-worker Monitor.
func (m *Manager) StartHeartbeat(ctx context.Context) error {
	ticker := time.NewTicker(m.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := m.beat(ctx); err != nil {
				return err
			}
		}
	}
}

func (m *Manager) beat(ctx context.Context) error {
	if err := m.config.Store.Heartbeat(ctx, m.workerID); err != nil {
		if m.config.Logger != nil {
			m.config.Logger.Error(ctx, "heartbeat failed", "workerID", m.workerID, "rank", m.rank, "error", err)
		}
		return err
	}
	if m.config.Logger != nil {
		m.config.Logger.Debug(ctx, "heartbeat sent", "workerID", m.workerID)
	}
	return nil
}

// UpdateState records a state transition for the worker.
func (m *Manager) UpdateState(ctx context.Context, state distsage.WorkerState) error {
	if err := m.config.Store.UpdateWorkerState(ctx, m.workerID, state); err != nil {
		return err
	}
	if m.config.Logger != nil {
		m.config.Logger.Info(ctx, "worker state updated", "workerID", m.workerID, "state", state)
	}
	return nil
}

// GetWorker fetches the worker's current record from the store.
func (m *Manager) GetWorker(ctx context.Context) (distsage.Worker, error) {
	return m.config.Store.GetWorker(ctx, m.workerID)
}

// WorkerID returns the ID assigned at registration, or "" before Register.
func (m *Manager) WorkerID() string {
	return m.workerID
}
