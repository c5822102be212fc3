// Package cmd provides shared construction helpers for the certflow
// binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mbarrin/certflow/pkg/persistence"
	"github.com/mbarrin/certflow/pkg/persistence/memory"
	"github.com/mbarrin/certflow/pkg/persistence/postgresql"
	"github.com/mbarrin/certflow/pkg/persistence/redis"
)

// NewRepository builds a workflow repository from a database URL. The URL
// scheme selects the backend: postgres://, redis://, or memory:// (the
// default when the scheme is unrecognized).
func NewRepository(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Repository {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		repo, err := postgresql.NewRepository(ctx, logger, databaseURL)
		if err != nil {
			panic("failed to initialize PostgreSQL repository: " + err.Error())
		}

		return repo
	case "redis", "rediss":
		repo, err := redis.NewRepository(ctx, logger, databaseURL)
		if err != nil {
			panic("failed to initialize Redis repository: " + err.Error())
		}

		return repo
	default:
		return memory.NewRepository()
	}
}

func parseProvider(databaseURL string) string {
	parts := strings.SplitN(databaseURL, "://", 2)

	return parts[0]
}
