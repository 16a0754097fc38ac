// pipelined is the long-running server process: it wires together the
// orchestrator, the event fan-out pipeline, and the HTTP API, then blocks on
// SIGINT/SIGTERM for graceful shutdown (spec.md §2, §6).
//
// Grounded on the teacher's cmd/tarsy/main.go: flag.String + getEnv for
// configuration, godotenv.Load for an optional .env file, log.Fatalf on
// fatal startup errors.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/api"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/config"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/events"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/orchestrator"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/pathfs"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config", getEnv("PO_CONFIG", "./pipelined.yaml"), "Path to the server configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := slog.Default()
	logger.Info("starting pipelined", "dataRoot", cfg.DataRoot, "port", cfg.HTTPPort)

	resolver := pathfs.NewResolver(cfg.DataRoot)
	hub := events.NewHub(cfg.Heartbeat(), logger)
	enhancer := events.NewEnhancer(resolver, hub, cfg.Debounce(), logger)
	detector := events.NewDetector(resolver, enhancer, hub, logger)

	workerBin, err := resolveWorkerBinary()
	if err != nil {
		log.Fatalf("failed to locate pipeline-worker binary: %v", err)
	}

	var workers sync.WaitGroup
	spawner := func(ctx context.Context, jobID string, onExit func(error)) error {
		cmd := exec.CommandContext(ctx, workerBin, jobID)
		cmd.Env = append(os.Environ(), "PO_ROOT="+cfg.DataRoot, "PO_DEFAULT_MAX_REFINEMENTS="+strconv.Itoa(cfg.DefaultMaxRefinements))
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		// On cancellation the worker gets SIGTERM; one still running after the
		// shutdown grace window is killed.
		cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
		cmd.WaitDelay = cfg.ShutdownGrace()
		if err := cmd.Start(); err != nil {
			return err
		}
		workers.Add(1)
		go func() {
			defer workers.Done()
			onExit(cmd.Wait())
		}()
		return nil
	}

	orch := orchestrator.New(resolver, spawner, orchestrator.Config{
		ResumeOnStart:     cfg.ResumeOnStart,
		WatcherBackoffMin: cfg.WatcherBackoffMin(),
		WatcherBackoffMax: cfg.WatcherBackoffMax(),
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	detectorCtx, cancelDetector := context.WithCancel(ctx)
	go func() {
		if err := detector.Start(detectorCtx); err != nil {
			logger.Error("change detector stopped", "err", err)
		}
	}()

	if err := orch.Start(ctx); err != nil {
		log.Fatalf("failed to start orchestrator: %v", err)
	}

	server := api.NewServer(resolver, hub, cfg.ResumeOnStart, logger)
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Start(":" + strconv.Itoa(cfg.HTTPPort))
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErrCh:
		if err != nil {
			logger.Error("http server stopped unexpectedly", "err", err)
		}
	}

	orch.Stop()
	workers.Wait()
	cancelDetector()
	enhancer.Cleanup()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownGrace())
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}

	logger.Info("pipelined stopped")
}

// resolveWorkerBinary locates the pipeline-worker binary: first beside this
// executable, then on PATH.
func resolveWorkerBinary() (string, error) {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "pipeline-worker")
		if _, statErr := os.Stat(candidate); statErr == nil {
			return candidate, nil
		}
	}
	return exec.LookPath("pipeline-worker")
}
