package postgres

import "fmt"

// TableConfig configures the table names used by the run store.
type TableConfig struct {
	// RunsTable is the name of the table storing run metadata.
	RunsTable string

	// WorkersTable is the name of the table storing worker metadata.
	WorkersTable string

	// EpochsTable is the name of the table storing per-epoch results.
	EpochsTable string
}

// DefaultTableConfig returns the default table configuration.
func DefaultTableConfig() TableConfig {
	return TableConfig{
		RunsTable:    "distsage_runs",
		WorkersTable: "distsage_workers",
		EpochsTable:  "distsage_epochs",
	}
}

// MigrationUp returns the SQL to create the run store tables.
// It creates the runs table, the workers table with indexes on run_id and
// state, and the epochs table with an index on run_id.
func MigrationUp(config TableConfig) string {
	return fmt.Sprintf(`-- Create runs table
CREATE TABLE %s (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL,
    world_size INTEGER NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Create workers table
CREATE TABLE %s (
    id UUID PRIMARY KEY,
    run_id UUID NOT NULL REFERENCES %s(id),
    rank INTEGER NOT NULL,
    state TEXT NOT NULL DEFAULT 'joining',
    last_heartbeat TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    started_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Index for finding workers by run
CREATE INDEX idx_workers_run ON %s(run_id);

-- Index for finding workers by state
CREATE INDEX idx_workers_state ON %s(state);

-- Create epochs table
CREATE TABLE %s (
    run_id UUID NOT NULL REFERENCES %s(id),
    rank INTEGER NOT NULL,
    epoch INTEGER NOT NULL,
    loss DOUBLE PRECISION NOT NULL,
    train_acc DOUBLE PRECISION NOT NULL,
    val_acc DOUBLE PRECISION NOT NULL,
    test_acc DOUBLE PRECISION NOT NULL,
    duration_ns BIGINT NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Index for listing a run's epoch history
CREATE INDEX idx_epochs_run ON %s(run_id, epoch, rank);
`, config.RunsTable,
		config.WorkersTable, config.RunsTable, config.WorkersTable, config.WorkersTable,
		config.EpochsTable, config.RunsTable, config.EpochsTable)
}

// MigrationDown returns the SQL to drop the run store tables.
// It drops the epochs and workers tables first due to the foreign key
// constraints.
func MigrationDown(config TableConfig) string {
	return fmt.Sprintf(`DROP TABLE IF EXISTS %s;
DROP TABLE IF EXISTS %s;
DROP TABLE IF EXISTS %s;
`, config.EpochsTable, config.WorkersTable, config.RunsTable)
}
