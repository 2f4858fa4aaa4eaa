package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"medical-book/internal/api"
	"medical-book/internal/auth"
	"medical-book/internal/config"
	"medical-book/internal/storage"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "medbook_service",
		Short:        "Personal medical record API server",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(seedCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, os.Stdout)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, logger)
		},
	}
}

// newApp opens the store and wires the HTTP server over it. The caller owns
// the returned store.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*echo.Echo, *storage.Store, error) {
	rule, err := cfg.Rule()
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.Open(ctx, cfg.DatabasePath,
		storage.WithLogger(logger),
		storage.WithBcryptCost(cfg.BcryptCost),
		storage.WithRule(rule),
		storage.WithDemoSeed(cfg.SeedDemo),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	svc, err := auth.NewService(store, cfg.AuthOptions())
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return api.NewServer(cfg, store, svc, logger), store, nil
}

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	e, store, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start")
		return err
	}
	defer store.Close()
	logger.Info().Str("path", cfg.DatabasePath).Str("rule", cfg.AbnormalRule).Msg("database ready")

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server error")
			return err
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := storage.Connect(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()

			count, err := storage.Migrate(cmd.Context(), db)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) to %s.\n", count, cfg.DatabasePath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := storage.Connect(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()

			states, err := storage.MigrationStatus(cmd.Context(), db)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-30s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range states {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-30s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo account if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := storage.NewSQLite(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()

			seeded, err := storage.SeedDemo(cmd.Context(), db, cfg.BcryptCost)
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}
			if seeded {
				fmt.Fprintf(cmd.OutOrStdout(), "Demo account %s created.\n", storage.DemoEmail)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Demo account %s already exists.\n", storage.DemoEmail)
			}
			return nil
		},
	}
}
