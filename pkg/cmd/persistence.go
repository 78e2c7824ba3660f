package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/admitflow/admitflow/pkg/persistence"
	"github.com/admitflow/admitflow/pkg/persistence/file"
	"github.com/admitflow/admitflow/pkg/persistence/postgresql"
)

// NewPersistence creates a persistence implementation from the database URL
// scheme: postgres for production, a file tree for everything else.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to initialize postgres persistence: %w", err))
		}

		return store
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"))
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
