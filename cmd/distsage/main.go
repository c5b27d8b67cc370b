// Command distsage is the distributed GraphSAGE training worker. Every
// worker of a run starts with the same training flags, its own rank, its
// own graph shard, and the full peer list; the workers form a full-mesh
// communication group and train in lockstep.
//
// A two-worker run on one machine:
//
//	distsage -graph data/part0.db -rank 0 -peers localhost:7000,localhost:7001
//	distsage -graph data/part1.db -rank 1 -peers localhost:7000,localhost:7001
//
// Single-process runs skip the network entirely:
//
//	distsage -graph data/part0.db -standalone
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"k8s.io/klog/v2"

	"github.com/distml/distsage"
	"github.com/distml/distsage/comm"
	"github.com/distml/distsage/comm/local"
	"github.com/distml/distsage/comm/tcp"
	"github.com/distml/distsage/metrics"
	"github.com/distml/distsage/partition/sqlite"
	"github.com/distml/distsage/runstore"
	"github.com/distml/distsage/runstore/postgres"
	"github.com/distml/distsage/trainer"
)

func main() {
	var (
		graphPath     = flag.String("graph", "", "Path to this worker's SQLite graph shard (required)")
		rank          = flag.Int("rank", 0, "This worker's rank")
		peers         = flag.String("peers", "", "Comma-separated host:port list, one per rank, ordered by rank")
		standalone    = flag.Bool("standalone", false, "Run as a single worker without networking")
		epochs        = flag.Int("epochs", 10, "Number of training epochs")
		batchSize     = flag.Int("batch-size", 1000, "Seed nodes per training batch")
		evalBatchSize = flag.Int("eval-batch-size", 10000, "Seed nodes per evaluation batch")
		lr            = flag.Float64("lr", 0.003, "Adam learning rate")
		dropout       = flag.Float64("dropout", 0.5, "Dropout probability between hidden layers")
		hidden        = flag.Int("hidden", 16, "Hidden layer width")
		fanout        = flag.String("fanout", "10,25", "Neighbors sampled per layer, input layer first")
		logEvery      = flag.Int("log-every", 20, "Steps between training log lines")
		evalEvery     = flag.Int("eval-every", 5, "Epochs between distributed evaluations")
		seed          = flag.Int64("seed", 1, "Base random seed, shared by all workers")
		dialRetry     = flag.Duration("dial-retry", 500*time.Millisecond, "Retry interval while forming the mesh")
		metricsAddr   = flag.String("metrics-addr", "", "Address for the Prometheus /metrics endpoint (disabled if empty)")
		postgresDSN   = flag.String("postgres", "", "PostgreSQL DSN for the run store (disabled if empty)")
		runID         = flag.String("run-id", "", "Run to register under; created by rank 0 when empty")
		runName       = flag.String("run-name", "distsage", "Run name used when rank 0 creates the run")
		progress      = flag.Bool("progress", false, "Draw a progress bar during evaluation")
	)
	klog.InitFlags(nil)
	flag.Parse()

	if err := run(config{
		graphPath:     *graphPath,
		rank:          *rank,
		peers:         *peers,
		standalone:    *standalone,
		epochs:        *epochs,
		batchSize:     *batchSize,
		evalBatchSize: *evalBatchSize,
		lr:            *lr,
		dropout:       *dropout,
		hidden:        *hidden,
		fanout:        *fanout,
		logEvery:      *logEvery,
		evalEvery:     *evalEvery,
		seed:          *seed,
		dialRetry:     *dialRetry,
		metricsAddr:   *metricsAddr,
		postgresDSN:   *postgresDSN,
		runID:         *runID,
		runName:       *runName,
		progress:      *progress,
	}); err != nil {
		klog.ErrorS(err, "training run failed")
		klog.FlushAndExit(time.Second, 1)
	}
}

type config struct {
	graphPath     string
	rank          int
	peers         string
	standalone    bool
	epochs        int
	batchSize     int
	evalBatchSize int
	lr            float64
	dropout       float64
	hidden        int
	fanout        string
	logEvery      int
	evalEvery     int
	seed          int64
	dialRetry     time.Duration
	metricsAddr   string
	postgresDSN   string
	runID         string
	runName       string
	progress      bool
}

func run(cfg config) error {
	if cfg.graphPath == "" {
		return fmt.Errorf("-graph is required")
	}
	fanouts, err := parseFanouts(cfg.fanout)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		klog.InfoS("received shutdown signal, stopping worker")
		cancel()
	}()

	logger := &distsage.KlogLogger{Rank: cfg.rank}

	store, err := sqlite.Open(ctx, cfg.graphPath)
	if err != nil {
		return err
	}
	defer store.Close()
	meta := store.Meta()
	klog.InfoS("graph shard loaded",
		"path", cfg.graphPath, "nodes", meta.NumNodes,
		"featureDim", meta.FeatureDim, "classes", meta.NumClasses)

	group, err := openGroup(cfg, logger)
	if err != nil {
		return err
	}
	defer group.Close()
	klog.InfoS("communication group formed", "rank", group.Rank(), "size", group.Size())

	var metricsServer *metrics.Server
	if cfg.metricsAddr != "" {
		metricsServer = metrics.NewServer(cfg.metricsAddr)
		metricsServer.Start()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	runStore, runID, err := openRunStore(ctx, cfg, group)
	if err != nil {
		return err
	}

	var collector *metrics.Collector
	if cfg.metricsAddr != "" {
		collector = metrics.NewCollector(runID, group.Rank())
	}

	t, err := trainer.New(trainer.Config{
		Store:         store,
		Group:         group,
		Fanouts:       fanouts,
		Epochs:        cfg.epochs,
		BatchSize:     cfg.batchSize,
		EvalBatchSize: cfg.evalBatchSize,
		LearningRate:  cfg.lr,
		Dropout:       cfg.dropout,
		HiddenDim:     cfg.hidden,
		LogEvery:      cfg.logEvery,
		EvalEvery:     cfg.evalEvery,
		Seed:          cfg.seed,
		Logger:        logger,
		RunStore:      runStore,
		RunID:         runID,
		Collector:     collector,
		ShowProgress:  cfg.progress,
	})
	if err != nil {
		return err
	}

	if err := t.Run(ctx); err != nil {
		return err
	}
	klog.InfoS("training run finished", "rank", group.Rank())
	return nil
}

func openGroup(cfg config, logger distsage.Logger) (comm.Group, error) {
	if cfg.standalone {
		return local.NewCluster(1).Group(0), nil
	}
	if cfg.peers == "" {
		return nil, fmt.Errorf("-peers is required unless -standalone is set")
	}
	return tcp.Dial(context.Background(), tcp.Config{
		Rank:          cfg.rank,
		Peers:         strings.Split(cfg.peers, ","),
		RetryInterval: cfg.dialRetry,
		Logger:        logger,
	})
}

// openRunStore connects the optional PostgreSQL run store. When no run ID
// is given, rank 0 creates the run and the others must be pointed at it.
func openRunStore(ctx context.Context, cfg config, group comm.Group) (runstore.Store, string, error) {
	if cfg.postgresDSN == "" {
		return nil, "", nil
	}

	db, err := sql.Open("postgres", cfg.postgresDSN)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open run store: %w", err)
	}
	store := postgres.New(db)

	if cfg.runID != "" {
		return store, cfg.runID, nil
	}
	if group.Rank() != 0 {
		return nil, "", fmt.Errorf("-run-id is required on ranks other than 0")
	}

	run, err := store.CreateRun(ctx, cfg.runName, group.Size())
	if err != nil {
		return nil, "", err
	}
	klog.InfoS("run created", "runID", run.ID, "name", run.Name, "worldSize", run.WorldSize)
	return store, run.ID, nil
}

func parseFanouts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	fanouts := make([]int, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid fanout %q: %w", p, err)
		}
		fanouts = append(fanouts, f)
	}
	return fanouts, nil
}
