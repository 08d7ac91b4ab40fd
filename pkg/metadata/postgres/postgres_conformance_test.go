//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/niooii/ocloud/pkg/metadata"
	"github.com/niooii/ocloud/pkg/metadata/postgres"
	"github.com/niooii/ocloud/pkg/metadatatest"
)

// connStr points at the shared PostgreSQL container started by TestMain.
var connStr string

// TestMain starts one shared PostgreSQL container for every test in
// this file. Set OCLOUD_TEST_DSN to run against an externally managed
// database instead (e.g. a CI service container).
func TestMain(m *testing.M) {
	ctx := context.Background()

	if dsn := os.Getenv("OCLOUD_TEST_DSN"); dsn != "" {
		connStr = dsn
		os.Exit(m.Run())
	}

	// Wait for two "ready" lines: PostgreSQL prints the first during
	// bootstrap and the second once it is actually accepting
	// connections. The generous deadline covers a cold image pull.
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ocloud_test"),
		tcpostgres.WithUsername("ocloud_test"),
		tcpostgres.WithPassword("ocloud_test"),
		testcontainers.WithWaitStrategyAndDeadline(5*time.Minute,
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container port: %v\n", err)
		os.Exit(1)
	}

	connStr = fmt.Sprintf("postgres://ocloud_test:ocloud_test@%s:%s/ocloud_test?sslmode=disable",
		host, port.Port())

	exitCode := m.Run()

	if err := container.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate container: %v\n", err)
	}

	os.Exit(exitCode)
}

// newStore opens a Store against the shared container and resets the
// schema through Nuke (drop, recreate, re-migrate) so every subtest
// starts from a clean slate holding only the synthetic root sfile.
func newStore(t *testing.T) metadata.Store {
	t.Helper()
	ctx := context.Background()

	store, err := postgres.Open(ctx, postgres.Config{DSN: connStr}, nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(store.Close)

	if err := store.Nuke(ctx); err != nil {
		t.Fatalf("failed to reset schema: %v", err)
	}
	return store
}

// TestPostgresConformance runs the real backend through the same
// assertions pkg/metadatatest's in-memory store satisfies.
func TestPostgresConformance(t *testing.T) {
	metadatatest.RunConformanceSuite(t, newStore)
}
