package database

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go"

	"github.com/nfrund/courier/internal/config"
)

// TestMain loads test-specific environment variables from `.env.test` so the
// integration tests can reach a local SurrealDB instance.
func TestMain(m *testing.M) {
	if err := godotenv.Load("../../.env.test"); err != nil {
		log.Println("Warning: .env.test file not found, relying on environment variables.")
	}
	os.Exit(m.Run())
}

// setupTestDB creates a test database connection and returns a cleanup
// function. Shared by all integration tests in this package; tests are
// skipped when no SurrealDB endpoint is configured.
func setupTestDB(t *testing.T) (*surrealdb.DB, func()) {
	t.Helper()

	cfg, err := config.New()
	if err != nil {
		t.Skipf("no test database configured: %v", err)
	}

	ctx := context.Background()
	db, err := NewDB(ctx, cfg)
	require.NoError(t, err, "failed to connect to test database")

	return db, func() {
		// Leave a clean slate for the next run.
		_, _ = surrealdb.Query[any](context.Background(), db, "DELETE messages; DELETE subscriptions; DELETE consumptions", nil)
		db.Close(context.Background())
	}
}
