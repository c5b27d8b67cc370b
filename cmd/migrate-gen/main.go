// Command migrate-gen generates SQL migration files for the run store
// coordination tables.
//
// Usage:
//
//	go run github.com/distml/distsage/cmd/migrate-gen -output migrations
//
// Or with go generate:
//
//	//go:generate go run github.com/distml/distsage/cmd/migrate-gen -output migrations
//
// Customize table names:
//
//	go run github.com/distml/distsage/cmd/migrate-gen -runs-table training_runs -output migrations
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/distml/distsage/runstore/postgres"
)

func main() {
	var (
		outputFolder   = flag.String("output", "migrations", "Output folder for migration files")
		outputFilename = flag.String("filename", "", "Output filename stem (default: timestamp-based)")
		runsTable      = flag.String("runs-table", "distsage_runs", "Name of runs table")
		workersTable   = flag.String("workers-table", "distsage_workers", "Name of workers table")
		epochsTable    = flag.String("epochs-table", "distsage_epochs", "Name of epochs table")
	)

	flag.Parse()

	config := postgres.TableConfig{
		RunsTable:    *runsTable,
		WorkersTable: *workersTable,
		EpochsTable:  *epochsTable,
	}

	stem := *outputFilename
	if stem == "" {
		stem = time.Now().UTC().Format("20060102150405") + "_distsage"
	}

	if err := write(*outputFolder, stem, config); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating migrations: %v\n", err)
		os.Exit(1)
	}
}

func write(folder, stem string, config postgres.TableConfig) error {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return err
	}

	files := map[string]string{
		stem + ".up.sql":   postgres.MigrationUp(config),
		stem + ".down.sql": postgres.MigrationDown(config),
	}
	for name, content := range files {
		path := filepath.Join(folder, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
		fmt.Printf("Generated %s\n", path)
	}
	return nil
}
