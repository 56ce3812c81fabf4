package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	corecfg "github.com/aevon-lab/listenstats/internal/core/config"
	coreerr "github.com/aevon-lab/listenstats/internal/core/errors"
	"github.com/aevon-lab/listenstats/internal/core/storage"
	"github.com/aevon-lab/listenstats/internal/core/storage/postgres"
	"github.com/aevon-lab/listenstats/internal/migrations"
	"github.com/aevon-lab/listenstats/internal/projection"
	"github.com/aevon-lab/listenstats/internal/rollup"
	"github.com/aevon-lab/listenstats/internal/server"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run wires and starts the service and returns the process exit code.
// Deferred cleanup runs before main exits.
func run(args []string) int {
	flags := flag.NewFlagSet("listenstats", flag.ContinueOnError)
	configPath := flags.String("config", "listenstats.yaml", "Path to configuration file")
	runOnce := flags.Bool("once", false, "Run the analytics task once and exit")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	// 0. Initialize Logger (level is raised/lowered once config is known)
	logLevel := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		return 1
	}
	logLevel.Set(cfg.Log.SlogLevel())
	slog.Info("Loaded config",
		"level_source", cfg.Analytics.LevelSource,
		"cron_interval", cfg.Analytics.Interval(),
		"window_days", cfg.Analytics.WindowDays,
		"query_workers", cfg.Analytics.QueryWorkers,
	)

	// 2. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		return 1
	}
	defer dbAdapter.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		return 1
	}

	if err := dbAdapter.Prepare(context.Background()); err != nil {
		slog.Error("Failed to prepare database adapter", "error", err)
		return 1
	}

	analyticsStore := postgres.NewAnalyticsAdapter(dbAdapter.DB())

	// 3. Initialize the analytics task
	var settings storage.Settings = dbAdapter
	if cfg.Analytics.LevelSource == corecfg.LevelSourceConfig {
		settings = storage.StaticSettings{Level: cfg.Analytics.Level}
	}

	task := rollup.NewTask(rollup.TaskDeps{
		Settings:  settings,
		Stations:  dbAdapter,
		Listeners: dbAdapter,
		Store:     analyticsStore,
		Stats:     dbAdapter,
		Uniques:   dbAdapter,
	}, rollup.EngineOptions{
		WindowDays:   cfg.Analytics.WindowDays,
		QueryWorkers: cfg.Analytics.QueryWorkers,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handler -> triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	if *runOnce {
		summary, err := task.Run(ctx)
		if err != nil {
			return exitCode(err)
		}
		slog.Info("Analytics run finished", "records", summary.Records, "days", summary.Days)
		return 0
	}

	var wg sync.WaitGroup

	// 4. Start the scheduler in background if enabled
	if cfg.Analytics.Enabled {
		scheduler := rollup.NewScheduler(cfg.Analytics.Interval(), task, cfg.Analytics.RunOnStart)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Analytics scheduler disabled by config")
	}

	// 5. Initialize Server (query API + manual trigger)
	if cfg.Server.Enabled {
		srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter, cfg.Server.Mode)
		projection.NewService(analyticsStore).RegisterRoutes(srv.Engine)
		task.RegisterRoutes(srv.Engine)

		// HTTP server blocks until ctx is cancelled.
		if err := srv.Run(ctx); err != nil {
			slog.Error("Server stopped with error", "error", err)
			cancel()
		}
	} else {
		<-ctx.Done()
	}

	wg.Wait()
	slog.Info("Shutdown complete")
	return 0
}

func exitCode(err error) int {
	var cfgErr *coreerr.ConfigurationError
	if errors.As(err, &cfgErr) {
		return 2
	}
	return 1
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
