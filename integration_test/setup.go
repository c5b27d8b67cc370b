//go:build integration

package integration_test

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"

	pgstore "github.com/distml/distsage/runstore/postgres"
)

// getTestDB opens the database named by DATABASE_URL, skipping the test
// when the variable is unset so these tests stay out of plain `go test`.
func getTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	return db
}

// setupTables creates the run store tables using the default configuration.
func setupTables(t *testing.T, db *sql.DB) {
	t.Helper()

	config := pgstore.DefaultTableConfig()
	migrationSQL := pgstore.MigrationUp(config)

	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}
}

// teardownTables drops the run store tables. Failures are logged only;
// cleanup is best-effort.
func teardownTables(t *testing.T, db *sql.DB) {
	t.Helper()

	config := pgstore.DefaultTableConfig()
	migrationSQL := pgstore.MigrationDown(config)

	if _, err := db.Exec(migrationSQL); err != nil {
		t.Logf("warning: failed to drop tables: %v", err)
	}
}
