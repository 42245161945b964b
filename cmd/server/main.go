package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/me/taskpilot/internal/config"
	"github.com/me/taskpilot/internal/logging"
	"github.com/me/taskpilot/internal/scheduler"
	"github.com/me/taskpilot/internal/scoring"
	"github.com/me/taskpilot/internal/server"
	"github.com/me/taskpilot/internal/store"
)

func main() {
	cfg := config.DefaultServerConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Database path (default ~/.taskpilot/taskpilot.db)")
	flag.StringVar(&cfg.EngineConfig, "engine-config", cfg.EngineConfig, "Path to YAML engine config (weights, multipliers, rules)")
	flag.DurationVar(&cfg.CycleInterval, "cycle-interval", cfg.CycleInterval, "Interval between scheduling cycles")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	// Resolve database path.
	dbPath := cfg.DBPath
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot determine home directory: %v\n", err)
			os.Exit(1)
		}
		dir := filepath.Join(home, ".taskpilot")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "cannot create %s: %v\n", dir, err)
			os.Exit(1)
		}
		dbPath = filepath.Join(dir, "taskpilot.db")
	}

	// Open store and run migrations.
	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "path", dbPath)

	// Load the optional engine config and build the scorer.
	var engineCfg *config.EngineConfig
	if cfg.EngineConfig != "" {
		engineCfg, err = config.LoadEngineConfig(cfg.EngineConfig)
		if err != nil {
			fmt.Fprintf(os.Stderr, "engine config: %v\n", err)
			os.Exit(1)
		}
		logger.Info("engine config loaded", "path", cfg.EngineConfig)
	}

	scorer, err := scoring.NewScorer(engineCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scorer: %v\n", err)
		os.Exit(1)
	}

	engCfg := scheduler.DefaultConfig()
	engCfg.Interval = cfg.CycleInterval
	if engineCfg != nil && engineCfg.HorizonDays > 0 {
		engCfg.HorizonDays = engineCfg.HorizonDays
	}
	engine := scheduler.NewEngine(st, scorer, engCfg, logger)

	srv := server.New(cfg, st, engine, logger)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the cycle loop in background (runs one cycle immediately).
	srv.StartEngine(ctx)

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
