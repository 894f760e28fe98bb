package cmd

import (
	"fmt"
	"log/slog"

	"github.com/credenflow/credenflow/pkg/collaborators"
	"github.com/credenflow/credenflow/pkg/notify"
	"github.com/credenflow/credenflow/pkg/persistence"
	"github.com/credenflow/credenflow/pkg/persistence/postgresql"
	"github.com/credenflow/credenflow/pkg/protocol"
)

// CollaboratorConfig selects the external collaborators node handlers
// talk to. Empty values fall back to in-process stand-ins.
type CollaboratorConfig struct {
	MailerEndpoint string
	MailerAPIKey   string
	RedisURL       string
}

// NewDependencies wires node handler collaborators. The database node
// shares the PostgreSQL connection when the store is PostgreSQL backed,
// otherwise it writes to an in-memory row store.
func NewDependencies(logger *slog.Logger, store persistence.Persistence, cfg CollaboratorConfig) (protocol.Dependencies, error) {
	deps := protocol.Dependencies{Logger: logger}

	if cfg.MailerEndpoint != "" {
		deps.Mailer = collaborators.NewHTTPMailer(cfg.MailerEndpoint, cfg.MailerAPIKey)
	} else {
		deps.Mailer = collaborators.NewLogMailer(logger)
	}

	if cfg.RedisURL != "" {
		notifier, err := notify.NewRedisNotifier(cfg.RedisURL, logger)
		if err != nil {
			return protocol.Dependencies{}, fmt.Errorf("failed to connect to redis: %w", err)
		}

		deps.Notifier = notifier
	} else {
		deps.Notifier = collaborators.NewLogNotifier(logger)
	}

	if pg, ok := store.(*postgresql.Persistence); ok {
		deps.Rows = collaborators.NewSQLRowStore(pg.DB())
	} else {
		deps.Rows = collaborators.NewMemoryRowStore()
	}

	return deps, nil
}
