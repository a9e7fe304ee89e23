package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jonathan/resume-analysis/internal/db"
	"github.com/jonathan/resume-analysis/internal/sqlite"
	"github.com/jonathan/resume-analysis/internal/store"
)

// migrator is implemented by stores with a schema
type migrator interface {
	Migrate(ctx context.Context) error
}

// openStore picks the store implementation from the scheme of databaseURL.
// An empty URL keeps workflows in memory.
func openStore(ctx context.Context, databaseURL string) (store.Store, error) {
	switch {
	case databaseURL == "":
		log.Println("[store] DATABASE_URL not set, workflows are kept in memory")
		return store.NewMemory(), nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return db.Connect(ctx, databaseURL)
	case strings.HasPrefix(databaseURL, "sqlite://"), strings.HasPrefix(databaseURL, "file:"):
		return sqlite.Open(ctx, databaseURL)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL scheme: %s", redact(databaseURL))
	}
}

// migrate applies the schema of st when it has one
func migrate(ctx context.Context, st store.Store) error {
	m, ok := st.(migrator)
	if !ok {
		return nil
	}
	return m.Migrate(ctx)
}

// redact drops everything after the scheme so credentials never reach the log
func redact(databaseURL string) string {
	if i := strings.Index(databaseURL, "://"); i >= 0 {
		return databaseURL[:i+3] + "..."
	}
	if len(databaseURL) > 8 {
		return databaseURL[:8] + "..."
	}
	return databaseURL
}
