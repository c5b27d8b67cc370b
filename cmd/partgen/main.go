// Command partgen generates a synthetic partitioned graph as per-rank
// SQLite shard files ready for the distsage worker. Node features are drawn
// around per-class centroids so the generated task is learnable, and every
// shard carries the full edge and feature set: whatever halo a sampling
// configuration needs is always present. Role splits are divided evenly
// across ranks and materialized into each shard.
//
//	partgen -out data -parts 2 -nodes 10000 -feature-dim 32 -classes 4
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	_ "github.com/mattn/go-sqlite3"
	"k8s.io/klog/v2"

	"github.com/distml/distsage"
	"github.com/distml/distsage/partition"
	"github.com/distml/distsage/partition/sqlite"
)

func main() {
	var (
		outDir     = flag.String("out", "data", "Output directory for shard files")
		parts      = flag.Int("parts", 2, "Number of shards (one per worker rank)")
		nodes      = flag.Int("nodes", 10000, "Number of nodes in the graph")
		featureDim = flag.Int("feature-dim", 32, "Feature vector width")
		classes    = flag.Int("classes", 4, "Number of label classes")
		avgDegree  = flag.Int("avg-degree", 10, "Average in-degree per node")
		trainFrac  = flag.Float64("train-frac", 0.6, "Fraction of nodes in the training split")
		valFrac    = flag.Float64("val-frac", 0.2, "Fraction of nodes in the validation split")
		seed       = flag.Int64("seed", 1, "Random seed")
	)
	klog.InitFlags(nil)
	flag.Parse()

	if err := generate(*outDir, *parts, *nodes, *featureDim, *classes, *avgDegree, *trainFrac, *valFrac, *seed); err != nil {
		klog.ErrorS(err, "shard generation failed")
		os.Exit(1)
	}
}

func generate(outDir string, parts, nodes, featureDim, classes, avgDegree int, trainFrac, valFrac float64, seed int64) error {
	if parts < 1 || nodes < 1 || featureDim < 1 || classes < 2 {
		return fmt.Errorf("need at least 1 part, 1 node, 1 feature, and 2 classes")
	}
	if trainFrac+valFrac >= 1 {
		return fmt.Errorf("train and validation fractions leave no test nodes")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(seed))
	graph := synthesize(rng, nodes, featureDim, classes, avgDegree)

	// Role membership is global; each shard stores its own rank's share.
	trainEnd := int(float64(nodes) * trainFrac)
	valEnd := trainEnd + int(float64(nodes)*valFrac)
	order := rng.Perm(nodes)

	globalSplit := make(map[distsage.Split][]distsage.NodeID)
	for i, n := range order {
		id := distsage.NodeID(n)
		switch {
		case i < trainEnd:
			globalSplit[distsage.SplitTrain] = append(globalSplit[distsage.SplitTrain], id)
		case i < valEnd:
			globalSplit[distsage.SplitVal] = append(globalSplit[distsage.SplitVal], id)
		default:
			globalSplit[distsage.SplitTest] = append(globalSplit[distsage.SplitTest], id)
		}
	}

	ctx := context.Background()
	for rank := 0; rank < parts; rank++ {
		path := filepath.Join(outDir, fmt.Sprintf("part%d.db", rank))
		if err := writeShard(ctx, path, graph, globalSplit, rank, parts, featureDim, classes); err != nil {
			return fmt.Errorf("shard %d: %w", rank, err)
		}

		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		klog.InfoS("shard written", "path", path, "size", humanize.Bytes(uint64(info.Size())))
	}

	klog.InfoS("graph generated",
		"nodes", nodes, "edges", len(graph.edges), "classes", classes,
		"train", len(globalSplit[distsage.SplitTrain]),
		"val", len(globalSplit[distsage.SplitVal]),
		"test", len(globalSplit[distsage.SplitTest]))
	return nil
}

type graph struct {
	features [][]float64
	labels   []int
	edges    [][2]distsage.NodeID
}

// synthesize draws features around one centroid per class and wires nodes
// mostly to peers of their own class, so neighbor aggregation helps.
func synthesize(rng *rand.Rand, nodes, featureDim, classes, avgDegree int) graph {
	centroids := make([][]float64, classes)
	for c := range centroids {
		centroids[c] = make([]float64, featureDim)
		for k := range centroids[c] {
			centroids[c][k] = rng.NormFloat64() * 2
		}
	}

	g := graph{
		features: make([][]float64, nodes),
		labels:   make([]int, nodes),
	}
	byClass := make([][]distsage.NodeID, classes)
	for i := 0; i < nodes; i++ {
		class := rng.Intn(classes)
		g.labels[i] = class
		byClass[class] = append(byClass[class], distsage.NodeID(i))

		f := make([]float64, featureDim)
		for k := range f {
			f[k] = centroids[class][k] + rng.NormFloat64()
		}
		g.features[i] = f
	}

	for i := 0; i < nodes; i++ {
		dst := distsage.NodeID(i)
		class := g.labels[i]
		for d := 0; d < avgDegree; d++ {
			var src distsage.NodeID
			if rng.Float64() < 0.8 && len(byClass[class]) > 1 {
				src = byClass[class][rng.Intn(len(byClass[class]))]
			} else {
				src = distsage.NodeID(rng.Intn(nodes))
			}
			if src == dst {
				continue
			}
			g.edges = append(g.edges, [2]distsage.NodeID{src, dst})
		}
	}
	return g
}

func writeShard(ctx context.Context, path string, g graph, globalSplit map[distsage.Split][]distsage.NodeID, rank, parts, featureDim, classes int) error {
	if err := os.RemoveAll(path); err != nil {
		return err
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer db.Close()

	splitOf := make(map[distsage.NodeID]distsage.Split)
	for _, role := range []distsage.Split{distsage.SplitTrain, distsage.SplitVal, distsage.SplitTest} {
		for _, id := range partition.SplitEven(globalSplit[role], rank, parts) {
			splitOf[id] = role
		}
	}

	shard := sqlite.Shard{
		Meta: partition.Meta{
			NumNodes:   int64(len(g.features)),
			FeatureDim: featureDim,
			NumClasses: classes,
			Rank:       rank,
			WorldSize:  parts,
		},
		Edges: g.edges,
	}
	for i, f := range g.features {
		id := distsage.NodeID(i)
		shard.Nodes = append(shard.Nodes, sqlite.Node{
			ID:       id,
			Label:    g.labels[i],
			Split:    splitOf[id],
			Features: f,
		})
	}

	return sqlite.WriteShard(ctx, db, sqlite.DefaultTableConfig(), shard)
}
