package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ravenmoor/worldserver/internal/acceptor"
	"github.com/ravenmoor/worldserver/internal/config"
	"github.com/ravenmoor/worldserver/internal/db"
	"github.com/ravenmoor/worldserver/internal/server"
	"github.com/ravenmoor/worldserver/internal/world"
)

const ConfigPath = "config/worldserver.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Configure slog
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	slog.Info("world server starting")

	// Load config
	cfgPath := ConfigPath
	if p := os.Getenv("WORLDSERVER_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadWorldServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.Info("config loaded", "bind", cfg.BindAddress, "port", cfg.Port, "save_prefix", cfg.SavePrefix)

	// Connect to database
	database, err := db.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()
	slog.Info("database connected")

	// Run migrations
	if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// Load the world from the last binary snapshot. A missing snapshot
	// means a fresh world.
	wm := world.NewWorldMap(world.OverwriteOnOverlap)
	if err := wm.LoadFromDisk(cfg.SavePrefix); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading world: %w", err)
		}
		slog.Warn("no world snapshot found, starting empty", "prefix", cfg.SavePrefix)
	}

	// Connection acceptor (handshakes off the cycle path)
	acc := acceptor.NewServer(cfg, database)

	// Cycle loop server
	srv := server.New(cfg, wm, acc.Endpoints())

	// SIGHUP triggers a plain-text world export
	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	go func() {
		for range hupCh {
			slog.Info("export requested")
			srv.RequestExport()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := acc.Run(gctx); err != nil {
			return fmt.Errorf("acceptor: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("world cycle: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
