package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/phrazzld/voicetask/internal/config"
	"github.com/phrazzld/voicetask/internal/domain"
	"github.com/phrazzld/voicetask/internal/platform/postgres"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			app, err := newApplication(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|reset|status|version]",
		Short:     "Run PostgreSQL schema migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "reset", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate requires storage.driver=%s, configured %q",
					config.DriverPostgres, cfg.Storage.Driver)
			}

			db, err := openDatabase(cmd.Context(), cfg.Database.URL, logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			return postgres.Migrate(cmd.Context(), db, args[0], logger)
		},
	}
}

func newUserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var admin bool
	var password string
	add := &cobra.Command{
		Use:   "add USERNAME",
		Short: "Create an account",
		Long: `Create an account directly in the configured storage.

The password is read from --password or, when omitted, from the
VOICETASK_NEW_USER_PASSWORD environment variable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("VOICETASK_NEW_USER_PASSWORD")
			}
			role := domain.RoleUser
			if admin {
				role = domain.RoleAdmin
			}

			cfg, logger, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			app, err := newApplication(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer app.cleanup()

			user, err := app.userService.CreateUser(cmd.Context(), args[0], password, role)
			if err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n",
				strings.ToLower(string(user.Role)), user.Username, user.ID)
			return err
		},
	}
	add.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	add.Flags().StringVar(&password, "password", "", "account password")

	userCmd.AddCommand(add)
	return userCmd
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
