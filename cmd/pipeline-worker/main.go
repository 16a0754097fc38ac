// pipeline-worker is the isolated child process spawned once per job by the
// orchestrator (spec.md §2, §4.1): it runs one job's pipeline to completion
// or terminal failure, then exits.
//
// Grounded on the teacher's cmd/tarsy/main.go startup shape (getEnv helper,
// log.Fatalf on fatal startup errors) but re-architected per SPEC_FULL.md
// §2's note: the teacher's pkg/queue.Worker goroutine becomes a real OS
// process here, one per job, matching the spec's "isolated child worker"
// requirement.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/pathfs"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/runner"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/stage"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: pipeline-worker <jobId>")
	}
	jobID := os.Args[1]

	dataRoot := os.Getenv("PO_ROOT")
	if dataRoot == "" {
		log.Fatalf("PO_ROOT is required")
	}
	defaultMaxRefinements := getEnvInt("PO_DEFAULT_MAX_REFINEMENTS", 3)

	logger := slog.Default().With("jobId", jobID)
	resolver := pathfs.NewResolver(dataRoot)

	registry := stage.NewRegistry()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := runner.New(resolver, jobID, registry, nil, defaultMaxRefinements, logger)

	if err := r.Run(ctx); err != nil {
		logger.Error("job failed", "err", err)
		os.Exit(1)
	}

	logger.Info("job completed")
}
