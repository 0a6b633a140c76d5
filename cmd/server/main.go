package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/ppsched/internal/config"
	"github.com/me/ppsched/internal/hw"
	"github.com/me/ppsched/internal/logging"
	"github.com/me/ppsched/internal/scheduler"
	"github.com/me/ppsched/internal/server"
	"github.com/me/ppsched/internal/session"
	"github.com/me/ppsched/internal/sink"
	"github.com/me/ppsched/internal/store"
)

func main() {
	defaults := config.Default()

	configFile := flag.String("config", "", "Path to YAML config file")
	addr := flag.String("addr", defaults.Server.Addr, "Listen address")
	logLevel := flag.String("log-level", defaults.Server.LogLevel, "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", defaults.Server.LogFormat, "Log format (text, json)")
	dbPath := flag.String("db", defaults.Server.DBPath, "Result database path (empty disables the store)")
	statsInterval := flag.Duration("stats-interval", defaults.Server.StatsInterval, "Stats log interval (0 disables)")
	noOverlap := flag.Bool("no-overlap", false, "Only start work when every slot is idle")
	alignedStarts := flag.Bool("aligned-starts", false, "Hold a job back until it can start all its sub-jobs at once")
	maxQueued := flag.Int("max-queued", 0, "Maximum queued jobs (0 for unlimited)")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")

	flag.Parse()

	cfg := defaults
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = *loaded
	}

	// Flags given on the command line win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Server.Addr = *addr
		case "log-level":
			cfg.Server.LogLevel = *logLevel
		case "log-format":
			cfg.Server.LogFormat = *logFormat
		case "db":
			cfg.Server.DBPath = *dbPath
		case "stats-interval":
			cfg.Server.StatsInterval = *statsInterval
		case "no-overlap":
			cfg.Scheduler.NoOverlap = *noOverlap
		case "aligned-starts":
			cfg.Scheduler.AlignedStarts = *alignedStarts
		case "max-queued":
			cfg.Scheduler.MaxQueuedJobs = *maxQueued
		}
	})
	if *debug {
		cfg.Server.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.FromStrings(cfg.Server.LogLevel, cfg.Server.LogFormat)

	topo, err := hw.BuildSimTopology(cfg.Hardware.Clusters, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build hardware: %v\n", err)
		os.Exit(1)
	}
	logger.Info("hardware ready", "clusters", len(topo.Clusters), "units", len(topo.Units()))

	sessions := session.NewManager(cfg.Sessions.MailboxDepth, logger)

	// Persist before notifying the session, so a caller that has seen a
	// result can always find it in the store.
	var sinks sink.Multi
	var serverOpts []server.Option
	if cfg.Server.DBPath != "" {
		st, err := store.NewSQLiteStore(cfg.Server.DBPath, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open database: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		if err := st.Migrate(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
			os.Exit(1)
		}
		logger.Info("database ready", "path", cfg.Server.DBPath, "run_id", st.RunID())
		sinks = append(sinks, st)
		serverOpts = append(serverOpts, server.WithStore(st))
	}
	sinks = append(sinks, sessions)

	sched, err := scheduler.New(topo.Units(), sinks, cfg.SchedulerPolicy(), logger,
		scheduler.WithSessionValidator(sessions))
	if err != nil {
		fmt.Fprintf(os.Stderr, "create scheduler: %v\n", err)
		os.Exit(1)
	}

	srv := server.New(cfg.Server, sched, sessions, logger, serverOpts...)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reporter *scheduler.Reporter
	if cfg.Server.StatsInterval > 0 {
		reporter = scheduler.NewReporter(sched, scheduler.ReporterConfig{Interval: cfg.Server.StatsInterval}, logger)
		go func() {
			if err := reporter.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("reporter stopped", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr)
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

	// Let running sub-jobs finish so their results reach the store.
	if err := sched.Suspend(shutdownCtx); err != nil {
		logger.Warn("sub-jobs still running at exit", "error", err)
	}
	logger.Info("server stopped", "stats", sched.Stats())
}
