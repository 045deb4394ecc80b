package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/voicetask/internal/config"
	"github.com/phrazzld/voicetask/internal/platform/filestore"
	"github.com/phrazzld/voicetask/internal/platform/postgres"
	"github.com/phrazzld/voicetask/internal/redact"
	"github.com/phrazzld/voicetask/internal/store"
)

// storage bundles the record stores selected by configuration together with
// the resource that backs them.
type storage struct {
	tasks store.TaskStore
	users store.UserStore
	close func() error
}

// openStorage opens the configured record stores. The postgres driver
// migrates the schema to the latest version before returning.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverFile:
		lockTimeout := time.Duration(cfg.Storage.LockTimeoutSeconds) * time.Second
		files, err := filestore.Open(ctx, cfg.Storage.DataDir, lockTimeout,
			logger.With(slog.String("component", "filestore")))
		if err != nil {
			return nil, fmt.Errorf("failed to open data directory: %w", err)
		}
		return &storage{tasks: files.Tasks(), users: files.Users(), close: files.Close}, nil

	case config.DriverPostgres:
		db, err := openDatabase(ctx, cfg.Database.URL, logger)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db, "up", logger); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &storage{
			tasks: postgres.NewPostgresTaskStore(db),
			users: postgres.NewPostgresUserStore(db),
			close: db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// openDatabase connects to PostgreSQL. The connection string never reaches
// the logs unredacted.
func openDatabase(ctx context.Context, url string, logger *slog.Logger) (*sql.DB, error) {
	if url == "" {
		return nil, errors.New("database.url is required for the postgres driver")
	}
	db, err := postgres.Open(ctx, url)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", redact.Error(err)))
		return nil, err
	}
	logger.Info("database connection established")
	return db, nil
}
