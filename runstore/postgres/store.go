// Package postgres provides a PostgreSQL-backed run store. The lib/pq
// driver is expected to be registered by the caller opening the database.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/distml/distsage"
	"github.com/distml/distsage/runstore"
)

// Store is a PostgreSQL implementation of runstore.Store.
// It provides persistent storage for run, worker, and epoch metadata.
type Store struct {
	db           *sql.DB
	runsTable    string
	workersTable string
	epochsTable  string
}

// Compile-time check that Store implements runstore.Store.
var _ runstore.Store = (*Store)(nil)

// New creates a new PostgreSQL store with default table names.
func New(db *sql.DB) *Store {
	return NewWithConfig(db, DefaultTableConfig())
}

// NewWithConfig creates a new PostgreSQL store with custom table names.
func NewWithConfig(db *sql.DB, config TableConfig) *Store {
	return &Store{
		db:           db,
		runsTable:    config.RunsTable,
		workersTable: config.WorkersTable,
		epochsTable:  config.EpochsTable,
	}
}

// CreateRun creates a new run with the given name and world size.
func (s *Store) CreateRun(ctx context.Context, name string, worldSize int) (distsage.Run, error) {
	runID := uuid.New().String()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, world_size, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING created_at
	`, s.runsTable)

	run := distsage.Run{
		ID:        runID,
		Name:      name,
		WorldSize: worldSize,
	}
	err := s.db.QueryRowContext(ctx, query, runID, name, worldSize).Scan(&run.CreatedAt)
	if err != nil {
		return distsage.Run{}, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// GetRun returns a run by ID.
// Returns distsage.ErrRunNotFound if the run does not exist.
func (s *Store) GetRun(ctx context.Context, runID string) (distsage.Run, error) {
	query := fmt.Sprintf(`
		SELECT id, name, world_size, created_at
		FROM %s
		WHERE id = $1
	`, s.runsTable)

	var run distsage.Run
	err := s.db.QueryRowContext(ctx, query, runID).Scan(
		&run.ID,
		&run.Name,
		&run.WorldSize,
		&run.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return distsage.Run{}, distsage.ErrRunNotFound
	}
	if err != nil {
		return distsage.Run{}, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// RegisterWorker registers a worker with the given rank under a run.
// Returns distsage.ErrRunNotFound if the run does not exist.
func (s *Store) RegisterWorker(ctx context.Context, runID string, rank int) (distsage.Worker, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return distsage.Worker{}, err
	}

	workerID := uuid.New().String()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, run_id, rank, state, last_heartbeat, started_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING last_heartbeat, started_at
	`, s.workersTable)

	worker := distsage.Worker{
		ID:    workerID,
		RunID: runID,
		Rank:  rank,
		State: distsage.WorkerStateJoining,
	}
	err := s.db.QueryRowContext(ctx, query, workerID, runID, rank, string(distsage.WorkerStateJoining)).Scan(
		&worker.LastHeartbeat,
		&worker.StartedAt,
	)
	if err != nil {
		return distsage.Worker{}, fmt.Errorf("failed to register worker: %w", err)
	}

	return worker, nil
}

// Heartbeat updates the last heartbeat time for a worker.
// Returns distsage.ErrWorkerNotFound if the worker does not exist.
func (s *Store) Heartbeat(ctx context.Context, workerID string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET last_heartbeat = NOW()
		WHERE id = $1
	`, s.workersTable)

	return s.execOnWorker(ctx, query, workerID)
}

// UpdateWorkerState updates the state of a worker.
// Returns distsage.ErrWorkerNotFound if the worker does not exist.
func (s *Store) UpdateWorkerState(ctx context.Context, workerID string, state distsage.WorkerState) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET state = $2
		WHERE id = $1
	`, s.workersTable)

	result, err := s.db.ExecContext(ctx, query, workerID, string(state))
	if err != nil {
		return fmt.Errorf("failed to update worker state: %w", err)
	}
	return checkAffected(result)
}

// GetWorker returns a worker by ID.
// Returns distsage.ErrWorkerNotFound if the worker does not exist.
func (s *Store) GetWorker(ctx context.Context, workerID string) (distsage.Worker, error) {
	query := fmt.Sprintf(`
		SELECT id, run_id, rank, state, last_heartbeat, started_at
		FROM %s
		WHERE id = $1
	`, s.workersTable)

	var worker distsage.Worker
	err := s.db.QueryRowContext(ctx, query, workerID).Scan(
		&worker.ID,
		&worker.RunID,
		&worker.Rank,
		&worker.State,
		&worker.LastHeartbeat,
		&worker.StartedAt,
	)

	if err == sql.ErrNoRows {
		return distsage.Worker{}, distsage.ErrWorkerNotFound
	}
	if err != nil {
		return distsage.Worker{}, fmt.Errorf("failed to get worker: %w", err)
	}

	return worker, nil
}

// GetWorkers returns all workers registered under a run, ordered by rank.
func (s *Store) GetWorkers(ctx context.Context, runID string) ([]distsage.Worker, error) {
	query := fmt.Sprintf(`
		SELECT id, run_id, rank, state, last_heartbeat, started_at
		FROM %s
		WHERE run_id = $1
		ORDER BY rank
	`, s.workersTable)

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workers: %w", err)
	}
	defer rows.Close()

	workers := []distsage.Worker{}
	for rows.Next() {
		var worker distsage.Worker
		err := rows.Scan(
			&worker.ID,
			&worker.RunID,
			&worker.Rank,
			&worker.State,
			&worker.LastHeartbeat,
			&worker.StartedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}
		workers = append(workers, worker)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workers: %w", err)
	}

	return workers, nil
}

// MarkWorkerFailed marks a worker as failed.
// Returns distsage.ErrWorkerNotFound if the worker does not exist.
func (s *Store) MarkWorkerFailed(ctx context.Context, workerID string) error {
	return s.UpdateWorkerState(ctx, workerID, distsage.WorkerStateFailed)
}

// RecordEpoch appends one worker's epoch result to the run history.
// NaN accuracies (evaluation skipped) round-trip through PostgreSQL's
// 'NaN' double precision value.
// Returns distsage.ErrRunNotFound if the run does not exist.
func (s *Store) RecordEpoch(ctx context.Context, record distsage.EpochRecord) error {
	if _, err := s.GetRun(ctx, record.RunID); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (run_id, rank, epoch, loss, train_acc, val_acc, test_acc, duration_ns, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`, s.epochsTable)

	_, err := s.db.ExecContext(ctx, query,
		record.RunID,
		record.Rank,
		record.Epoch,
		record.Loss,
		record.TrainAcc,
		record.ValAcc,
		record.TestAcc,
		record.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record epoch: %w", err)
	}

	return nil
}

// ListEpochs returns a run's epoch history ordered by epoch then rank.
func (s *Store) ListEpochs(ctx context.Context, runID string) ([]distsage.EpochRecord, error) {
	query := fmt.Sprintf(`
		SELECT run_id, rank, epoch, loss, train_acc, val_acc, test_acc, duration_ns, recorded_at
		FROM %s
		WHERE run_id = $1
		ORDER BY epoch, rank
	`, s.epochsTable)

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list epochs: %w", err)
	}
	defer rows.Close()

	records := []distsage.EpochRecord{}
	for rows.Next() {
		var (
			record     distsage.EpochRecord
			durationNS int64
		)
		err := rows.Scan(
			&record.RunID,
			&record.Rank,
			&record.Epoch,
			&record.Loss,
			&record.TrainAcc,
			&record.ValAcc,
			&record.TestAcc,
			&durationNS,
			&record.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan epoch: %w", err)
		}
		record.Duration = time.Duration(durationNS)
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate epochs: %w", err)
	}

	return records, nil
}

func (s *Store) execOnWorker(ctx context.Context, query, workerID string) error {
	result, err := s.db.ExecContext(ctx, query, workerID)
	if err != nil {
		return fmt.Errorf("failed to update worker: %w", err)
	}
	return checkAffected(result)
}

func checkAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return distsage.ErrWorkerNotFound
	}
	return nil
}
