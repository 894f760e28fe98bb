package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/credenflow/credenflow/pkg/persistence"
	"github.com/credenflow/credenflow/pkg/persistence/file"
	"github.com/credenflow/credenflow/pkg/persistence/postgresql"
)

// NewPersistence picks a store from the database URL scheme: postgres URLs
// get the PostgreSQL store, anything else is treated as a directory path
// for the file store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}

		return p, nil
	}

	p, err := file.NewPersistence(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open file store at %s: %w", databaseURL, err)
	}

	return p, nil
}
