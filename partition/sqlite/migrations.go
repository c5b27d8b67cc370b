package sqlite

import "fmt"

// TableConfig configures the table names used for a graph shard.
type TableConfig struct {
	// MetaTable is the name of the single-row table storing shard metadata.
	MetaTable string

	// NodesTable is the name of the table storing node features and labels.
	NodesTable string

	// EdgesTable is the name of the table storing the directed edge list.
	EdgesTable string
}

// DefaultTableConfig returns the default table configuration.
func DefaultTableConfig() TableConfig {
	return TableConfig{
		MetaTable:  "graph_meta",
		NodesTable: "graph_nodes",
		EdgesTable: "graph_edges",
	}
}

// MigrationUp returns the SQL to create the shard tables.
// Features are stored as a little-endian float64 blob, one row per node.
// Role splits are materialized per shard, so the nodes table carries the
// worker-local split assignment directly.
func MigrationUp(config TableConfig) string {
	return fmt.Sprintf(`-- Create shard metadata table
CREATE TABLE %s (
    num_nodes INTEGER NOT NULL,
    feature_dim INTEGER NOT NULL,
    num_classes INTEGER NOT NULL,
    rank INTEGER NOT NULL,
    world_size INTEGER NOT NULL
);

-- Create node table
CREATE TABLE %s (
    id INTEGER PRIMARY KEY,
    label INTEGER NOT NULL,
    split TEXT NOT NULL DEFAULT '',
    features BLOB NOT NULL
);

-- Create edge table; an edge (src, dst) means dst aggregates from src
CREATE TABLE %s (
    src INTEGER NOT NULL,
    dst INTEGER NOT NULL
);

-- Index for neighbor lookups by destination
CREATE INDEX idx_edges_dst ON %s(dst);
`, config.MetaTable, config.NodesTable, config.EdgesTable, config.EdgesTable)
}

// MigrationDown returns the SQL to drop the shard tables.
func MigrationDown(config TableConfig) string {
	return fmt.Sprintf(`DROP TABLE IF EXISTS %s;
DROP TABLE IF EXISTS %s;
DROP TABLE IF EXISTS %s;
`, config.EdgesTable, config.NodesTable, config.MetaTable)
}
