package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"library-client/config"
	"library-client/devserver"
	"library-client/logging"
)

func main() {
	var (
		configPath    string
		envFile       string
		seed          bool
		adminUser     string
		adminPassword string
	)

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local library REST API backed by SQLite",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, envFile)
			if err != nil {
				return err
			}
			slog.SetDefault(logging.New(cfg.LogLevel, os.Stderr))
			return run(cmd.Context(), cfg, seed, adminUser, adminPassword)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to YAML config")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "path to dotenv file")
	cmd.Flags().BoolVar(&seed, "seed", true, "load the starter catalog and admin account")
	cmd.Flags().StringVar(&adminUser, "admin-user", "admin", "admin account created when seeding")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "admin123", "password for the seeded admin")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, seed bool, adminUser, adminPassword string) error {
	db, err := devserver.NewDatabase(cfg.DevServer.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if seed {
		res, err := devserver.Seed(db, adminUser, adminPassword)
		if err != nil {
			return err
		}
		slog.Info("seeded database",
			slog.Int("books", res.Books),
			slog.Int("skipped", res.Skipped),
			slog.Bool("admin_created", res.Admin))
	}

	auth := devserver.NewAuth(cfg.DevServer.JWTSecret, cfg.DevServer.TokenTTL)
	srv := &http.Server{
		Addr:              cfg.DevServer.Addr,
		Handler:           devserver.New(db, auth, slog.Default()).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("dev server listening", slog.String("addr", cfg.DevServer.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
