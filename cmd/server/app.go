package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/phrazzld/voicetask/internal/config"
	"github.com/phrazzld/voicetask/internal/platform/blobstore"
	"github.com/phrazzld/voicetask/internal/redact"
	"github.com/phrazzld/voicetask/internal/service"
	"github.com/phrazzld/voicetask/internal/service/auth"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	storage *storage
	blobs   *blobstore.Store

	jwtService  auth.JWTService
	hasher      auth.PasswordHasher
	userService service.UserService
	taskService service.TaskService
}

// newApplication creates a new application instance with all dependencies
// initialized from cfg.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		slog.Int("token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes))

	app.hasher = auth.NewBcryptHasher(bcrypt.DefaultCost)

	if err := os.MkdirAll(cfg.Storage.AttachmentDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create attachment directory: %w", err)
	}
	guard, err := blobstore.NewGuard(cfg.Storage.AttachmentDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize attachment root: %w", err)
	}
	app.blobs = blobstore.New(guard, cfg.Storage.MaxUploadBytes)

	app.storage, err = openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	app.userService, err = service.NewUserService(app.storage.users, app.hasher, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create user service: %w", err)
	}

	app.taskService, err = service.NewTaskService(app.storage.tasks, app.blobs, service.TaskServiceConfig{
		HideForbidden:     cfg.Tasks.HideForbidden,
		UploadConcurrency: cfg.Storage.UploadConcurrency,
	}, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	logger.Info("application initialized",
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.Int64("max_upload_bytes", cfg.Storage.MaxUploadBytes))
	return app, nil
}

// Run sweeps orphaned attachments, then serves HTTP until ctx is canceled
// or a shutdown signal arrives.
func (app *application) Run(ctx context.Context) error {
	app.sweepOrphans(ctx)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	if minutes := app.config.Storage.OrphanSweepMinutes; minutes > 0 {
		go app.runSweeper(sweepCtx, time.Duration(minutes)*time.Minute)
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// runSweeper removes orphaned attachments every interval until ctx ends.
func (app *application) runSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.sweepOrphans(ctx)
		}
	}
}

func (app *application) sweepOrphans(ctx context.Context) {
	removed, err := app.taskService.SweepOrphans(ctx)
	if err != nil {
		app.logger.Warn("orphan attachment sweep failed", slog.String("error", redact.Error(err)))
		return
	}
	if removed > 0 {
		app.logger.Info("orphan attachments removed", slog.Int("count", removed))
	}
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.storage != nil && app.storage.close != nil {
		if err := app.storage.close(); err != nil {
			app.logger.Error("error closing storage", slog.String("error", redact.Error(err)))
		}
		app.storage = nil
	}
	app.logger.Info("application shutdown completed")
}
