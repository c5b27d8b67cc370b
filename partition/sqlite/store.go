// Package sqlite provides a partition.Store backed by a per-worker SQLite
// shard file. Shards are written once by the partition generator and read
// back at training startup; Open loads the whole shard into memory so that
// neighbor sampling never touches the database on the hot path.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/distml/distsage"
	"github.com/distml/distsage/partition"
)

// Node is one row of a shard's node table.
type Node struct {
	ID       distsage.NodeID
	Label    int
	Split    distsage.Split
	Features []float64
}

// Shard is the full content of one worker's shard file.
type Shard struct {
	Meta  partition.Meta
	Nodes []Node
	Edges [][2]distsage.NodeID
}

// Store is a SQLite-backed implementation of partition.Store. All data is
// resident in memory after Open; the database handle is kept only so Close
// can release it.
type Store struct {
	db        *sql.DB
	meta      partition.Meta
	neighbors map[distsage.NodeID][]distsage.NodeID
	features  map[distsage.NodeID][]float64
	labels    map[distsage.NodeID]int
	splits    map[distsage.Split][]distsage.NodeID
}

// Compile-time check that Store implements partition.Store.
var _ partition.Store = (*Store)(nil)

// Open opens the shard file at path with default table names and loads it
// into memory.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open shard file")
	}
	s, err := OpenDB(ctx, db, DefaultTableConfig())
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenDB loads a shard from an already open database handle. The store takes
// ownership of the handle and closes it on Close.
func OpenDB(ctx context.Context, db *sql.DB, config TableConfig) (*Store, error) {
	s := &Store{
		db:        db,
		neighbors: make(map[distsage.NodeID][]distsage.NodeID),
		features:  make(map[distsage.NodeID][]float64),
		labels:    make(map[distsage.NodeID]int),
		splits:    make(map[distsage.Split][]distsage.NodeID),
	}

	row := db.QueryRowContext(ctx, "SELECT num_nodes, feature_dim, num_classes, rank, world_size FROM "+config.MetaTable)
	err := row.Scan(&s.meta.NumNodes, &s.meta.FeatureDim, &s.meta.NumClasses, &s.meta.Rank, &s.meta.WorldSize)
	if err == sql.ErrNoRows {
		return nil, errors.New("shard has no metadata row")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read shard metadata")
	}

	if err := s.loadNodes(ctx, config); err != nil {
		return nil, err
	}
	if err := s.loadEdges(ctx, config); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadNodes(ctx context.Context, config TableConfig) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, label, split, features FROM "+config.NodesTable+" ORDER BY id")
	if err != nil {
		return errors.Wrap(err, "failed to read shard nodes")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    distsage.NodeID
			label int
			split string
			blob  []byte
		)
		if err := rows.Scan(&id, &label, &split, &blob); err != nil {
			return errors.Wrap(err, "failed to scan node row")
		}
		features, err := decodeFeatures(blob, s.meta.FeatureDim)
		if err != nil {
			return errors.Wrapf(err, "node %d", id)
		}
		s.features[id] = features
		s.labels[id] = label
		if split != "" {
			sp := distsage.Split(split)
			s.splits[sp] = append(s.splits[sp], id)
		}
	}
	return errors.Wrap(rows.Err(), "failed to read shard nodes")
}

func (s *Store) loadEdges(ctx context.Context, config TableConfig) error {
	rows, err := s.db.QueryContext(ctx, "SELECT src, dst FROM "+config.EdgesTable)
	if err != nil {
		return errors.Wrap(err, "failed to read shard edges")
	}
	defer rows.Close()

	for rows.Next() {
		var src, dst distsage.NodeID
		if err := rows.Scan(&src, &dst); err != nil {
			return errors.Wrap(err, "failed to scan edge row")
		}
		s.neighbors[dst] = append(s.neighbors[dst], src)
	}
	return errors.Wrap(rows.Err(), "failed to read shard edges")
}

// Meta returns the shard's graph metadata.
func (s *Store) Meta() partition.Meta { return s.meta }

// Neighbors returns the in-neighbors to aggregate from for a node.
func (s *Store) Neighbors(id distsage.NodeID) ([]distsage.NodeID, error) {
	if _, ok := s.features[id]; !ok {
		return nil, distsage.ErrNodeNotFound
	}
	return s.neighbors[id], nil
}

// Features returns a node's feature vector.
func (s *Store) Features(id distsage.NodeID) ([]float64, error) {
	f, ok := s.features[id]
	if !ok {
		return nil, distsage.ErrNodeNotFound
	}
	return f, nil
}

// Label returns a node's class label.
func (s *Store) Label(id distsage.NodeID) (int, error) {
	l, ok := s.labels[id]
	if !ok {
		return 0, distsage.ErrNodeNotFound
	}
	return l, nil
}

// Split returns this shard's nodes assigned to the given role split.
func (s *Store) Split(split distsage.Split) []distsage.NodeID {
	return s.splits[split]
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// WriteShard creates the shard tables on db and writes the given shard
// content. It is used by the partition generator.
func WriteShard(ctx context.Context, db *sql.DB, config TableConfig, shard Shard) error {
	if _, err := db.ExecContext(ctx, MigrationUp(config)); err != nil {
		return errors.Wrap(err, "failed to create shard tables")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin shard write")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO "+config.MetaTable+" (num_nodes, feature_dim, num_classes, rank, world_size) VALUES (?, ?, ?, ?, ?)",
		shard.Meta.NumNodes, shard.Meta.FeatureDim, shard.Meta.NumClasses, shard.Meta.Rank, shard.Meta.WorldSize)
	if err != nil {
		return errors.Wrap(err, "failed to write shard metadata")
	}

	nodeStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO "+config.NodesTable+" (id, label, split, features) VALUES (?, ?, ?, ?)")
	if err != nil {
		return errors.Wrap(err, "failed to prepare node insert")
	}
	defer nodeStmt.Close()
	for _, n := range shard.Nodes {
		if len(n.Features) != shard.Meta.FeatureDim {
			return errors.Errorf("node %d has %d features, expected %d", n.ID, len(n.Features), shard.Meta.FeatureDim)
		}
		if _, err := nodeStmt.ExecContext(ctx, n.ID, n.Label, string(n.Split), encodeFeatures(n.Features)); err != nil {
			return errors.Wrapf(err, "failed to write node %d", n.ID)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO "+config.EdgesTable+" (src, dst) VALUES (?, ?)")
	if err != nil {
		return errors.Wrap(err, "failed to prepare edge insert")
	}
	defer edgeStmt.Close()
	for _, e := range shard.Edges {
		if _, err := edgeStmt.ExecContext(ctx, e[0], e[1]); err != nil {
			return errors.Wrapf(err, "failed to write edge (%d, %d)", e[0], e[1])
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit shard write")
}

func encodeFeatures(features []float64) []byte {
	blob := make([]byte, 8*len(features))
	for i, f := range features {
		binary.LittleEndian.PutUint64(blob[8*i:], math.Float64bits(f))
	}
	return blob
}

func decodeFeatures(blob []byte, dim int) ([]float64, error) {
	if len(blob) != 8*dim {
		return nil, errors.Errorf("feature blob is %d bytes, expected %d", len(blob), 8*dim)
	}
	features := make([]float64, dim)
	for i := range features {
		features[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[8*i:]))
	}
	return features, nil
}
