// Command prodzilla runs the synthetic-monitoring daemon: it loads a
// YAML file of probes and stories, schedules each on its own
// interval, and serves an HTTP control API over the bounded result
// history.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prodzilla/prodzilla/internal/alerts"
	appconfig "github.com/prodzilla/prodzilla/internal/config"
	"github.com/prodzilla/prodzilla/internal/httpcaller"
	"github.com/prodzilla/prodzilla/internal/monitor"
	"github.com/prodzilla/prodzilla/internal/observability"
	"github.com/prodzilla/prodzilla/internal/runner"
	"github.com/prodzilla/prodzilla/internal/scheduler"
	"github.com/prodzilla/prodzilla/internal/server"
	"github.com/prodzilla/prodzilla/internal/store"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code: 0 on clean shutdown, nonzero on
// a startup failure such as an unreadable or malformed monitor file.
func run() int {
	configFile := flag.String("file", "", "path to the monitor config file (overrides PRODZILLA_CONFIG_FILE)")
	flag.Parse()

	appCfg := appconfig.Load()
	if *configFile != "" {
		appCfg.ConfigFile = *configFile
	}

	obs, err := observability.NewObservability(observability.DefaultConfig(appCfg.ServiceName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize observability: %v\n", err)
		return 1
	}
	logger := obs.Logger

	traces := observability.NewTraceManager(appCfg.ServiceName)
	metrics, err := observability.NewMetricsManager(obs.Meter)
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err)
		return 1
	}

	monitors, err := appconfig.LoadMonitors(logger, appCfg.ConfigFile, appCfg.StrictConfig)
	if err != nil {
		logger.Error("failed to load monitor config", "file", appCfg.ConfigFile, "error", err)
		return 1
	}

	probePointers := toProbePointers(monitors.Probes)
	storyPointers := toStoryPointers(monitors.Stories)

	caller := httpcaller.New(traces)
	dispatcher := alerts.New(logger)
	resultStore := store.New()
	r := runner.New(caller, dispatcher, resultStore, traces, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(r, logger)
	sched.Start(ctx, probePointers, storyPointers)

	controlServer := server.New(probePointers, storyPointers, resultStore, r, logger)
	go func() {
		logger.Info("control API listening", "address", appCfg.ListenAddress())
		if err := controlServer.Start(appCfg.ListenAddress()); err != nil && err != http.ErrServerClosed {
			logger.Error("control API server failed", "error", err)
		}
	}()

	healthServer := observability.NewHealthServer(appCfg.HealthPort, appCfg.ServiceName, appCfg.ServiceVersion)
	go func() {
		logger.Info("health/metrics server listening", "port", appCfg.HealthPort)
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(appCfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := controlServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("control API shutdown error", "error", err)
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", "error", err)
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		logger.Error("observability shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return 0
}

// toProbePointers and toStoryPointers give the scheduler and server
// stable addresses to close over per-monitor, rather than sharing
// loop variables or re-indexing the decoded config slice.
func toProbePointers(probes []monitor.Probe) []*monitor.Probe {
	out := make([]*monitor.Probe, len(probes))
	for i := range probes {
		out[i] = &probes[i]
	}
	return out
}

func toStoryPointers(stories []monitor.Story) []*monitor.Story {
	out := make([]*monitor.Story, len(stories))
	for i := range stories {
		out[i] = &stories[i]
	}
	return out
}
