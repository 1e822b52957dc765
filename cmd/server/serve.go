package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/diewo77/medcrm/internal/db"
	"github.com/diewo77/medcrm/internal/repository"
	"github.com/diewo77/medcrm/internal/server"
	"github.com/diewo77/medcrm/internal/services"
)

func newServeCmd(c *cli) *cobra.Command {
	var memory bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, ping, err := openStore(cmd.Context(), c, memory)
			if err != nil {
				return err
			}
			opts, err := services.OptionsFromConfig(c.cfg.Pipeline)
			if err != nil {
				return err
			}
			handler := server.New(services.New(store, opts, c.log), ping, c.log)
			return serve(c, handler)
		},
	}
	cmd.Flags().BoolVar(&memory, "memory", false, "keep data in memory instead of the database (seeded on start)")
	return cmd
}

// openStore returns the store the API runs on. The memory store is always
// seeded; the database store is migrated and seeded when enabled.
func openStore(ctx context.Context, c *cli, memory bool) (repository.Store, server.Pinger, error) {
	if memory {
		store := repository.NewMemoryStore()
		if _, err := db.Seed(ctx, store, c.log); err != nil {
			return repository.Store{}, nil, err
		}
		c.log.Info("using in-memory store")
		return store, nil, nil
	}

	dbConn, err := db.Open(c.cfg.Database, c.log)
	if err != nil {
		return repository.Store{}, nil, err
	}
	// Run migrations on startup if enabled
	if c.cfg.App.Migrations {
		if err := db.Migrate(dbConn); err != nil {
			return repository.Store{}, nil, err
		}
		c.log.Info("migrations completed")
	}
	store := repository.NewGormStore(dbConn)
	if c.cfg.App.Seed {
		if _, err := db.Seed(ctx, store, c.log); err != nil {
			return repository.Store{}, nil, err
		}
	}
	return store, server.GormPinger(dbConn), nil
}

func serve(c *cli, handler http.Handler) error {
	// Create server with config timeouts
	srv := &http.Server{
		Addr:         ":" + c.cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  time.Duration(c.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(c.cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(c.cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.log.Info("server starting", zap.String("port", c.cfg.Server.Port), zap.Bool("dev", c.cfg.App.Dev))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-quit:
		c.log.Info("shutdown signal received")
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		c.log.Error("error during shutdown", zap.Error(err))
		return err
	}
	c.log.Info("server stopped gracefully")
	return nil
}
