// Package database provides the SurrealDB-backed durable store for the
// broker, plus an in-memory implementation with the same semantics for
// development and tests.
package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nfrund/courier/internal/config"
	"github.com/surrealdb/surrealdb.go"
)

// NewDB creates and configures a new SurrealDB connection, then runs the
// schema bootstrap so the broker never serves traffic against a database
// missing its tables.
func NewDB(ctx context.Context, cfg *config.Config) (*surrealdb.DB, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, cfg.DBUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to surrealdb: %w", err)
	}

	if cfg.DBUser != "" {
		authData := &surrealdb.Auth{
			Username: cfg.DBUser,
			Password: cfg.DBPass,
		}
		if _, err = db.SignIn(ctx, authData); err != nil {
			db.Close(ctx)
			return nil, fmt.Errorf("failed to sign in: %w", err)
		}
	}

	if err = db.Use(ctx, cfg.DBNs, cfg.DBDb); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to use namespace/db: %w", err)
	}

	if err = Bootstrap(ctx, db); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("schema bootstrap failed: %w", err)
	}

	slog.Info("Connected to SurrealDB", "ns", cfg.DBNs, "db", cfg.DBDb)
	return db, nil
}
