package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/surrealdb/surrealdb.go"
)

//go:embed schema.surql
var schemaScript string

type dbInfo struct {
	Tables map[string]any `json:"tables"`
}

// Bootstrap runs the embedded schema script when the messages table is
// missing. It is idempotent: an already-bootstrapped database is left
// untouched.
func Bootstrap(ctx context.Context, db *surrealdb.DB) error {
	results, err := surrealdb.Query[dbInfo](ctx, db, "INFO FOR DB", nil)
	if err != nil {
		return fmt.Errorf("inspect database info: %w", err)
	}
	if len(*results) > 0 {
		if _, ok := (*results)[0].Result.Tables["messages"]; ok {
			return nil
		}
	}

	slog.Info("Messages table missing, running schema bootstrap")
	if err := Execute(ctx, db, schemaScript, nil); err != nil {
		return fmt.Errorf("run schema script: %w", err)
	}
	slog.Info("Schema bootstrap complete")
	return nil
}
