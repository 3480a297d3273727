// Command hypoengine runs one hypothesis-tree pipeline request from the
// command line: problem statement in, project id and tree/report/matrix
// summary out. Grounded on the teacher's cmd/server/main.go for flag
// parsing, config loading, logger setup, and signal-driven shutdown,
// narrowed from an HTTP server to a single synchronous run since the API
// surface is explicitly out of scope.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	hypoengine "github.com/kestrelhq/hypoengine"
	"github.com/kestrelhq/hypoengine/internal/infrastructure/config"
	"github.com/kestrelhq/hypoengine/internal/infrastructure/logging"
)

func main() {
	var (
		problem       = flag.String("problem", "", "business problem statement to analyze (required)")
		frameworkHint = flag.String("framework", "", "explicit framework name, overriding trigger-phrase detection")
		projectID     = flag.String("project", "", "project id to persist under (generated if empty)")
	)
	flag.Parse()

	cfg := config.Load()
	log := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if *problem == "" {
		log.Error().Msg("missing required -problem flag")
		os.Exit(2)
	}

	engine, err := hypoengine.New(hypoengine.Config{
		OpenAIAPIKey:            cfg.OpenAIAPIKey,
		OpenAIModel:             cfg.OpenAIModel,
		OpenAIBaseURL:           cfg.OpenAIBaseURL,
		SearchAPIKey:            cfg.SearchAPIKey,
		SearchBaseURL:           cfg.SearchBaseURL,
		StoreRootDir:            cfg.StoreRootDir,
		RefinementMaxIterations: cfg.RefinementMaxIterations,
		ResearchStageTimeout:    cfg.ResearchStageTimeout,
		LLMCallTimeout:          cfg.LLMCallTimeout,
		ResearchConcurrency:     cfg.ResearchConcurrency,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to construct engine")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	result, events, err := engine.Run(ctx, *problem, *frameworkHint, *projectID)

	for event := range events {
		log.Info().
			Str("stage", event.Stage).
			Str("status", event.Status).
			Int("iteration", event.Iteration).
			Str("message", event.Message).
			Msg("pipeline progress")
	}

	if err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("pipeline run failed")
		os.Exit(1)
	}

	log.Info().
		Str("project_id", result.ProjectID).
		Bool("is_mece", result.Report.IsMECE).
		Int("hard_issues", result.Report.HardIssueCount()).
		Dur("elapsed", time.Since(start)).
		Msg("pipeline run completed")

	fmt.Printf("project_id: %s\n", result.ProjectID)
	fmt.Printf("framework: %s\n", result.Tree.FrameworkUsed)
	fmt.Printf("is_mece: %v (hard issues: %d)\n", result.Report.IsMECE, result.Report.HardIssueCount())
	fmt.Printf("l1 categories: %d\n", len(result.Tree.L1Order))
	for _, rec := range result.Matrix.Recommendations {
		fmt.Printf("- %s\n", rec)
	}
}
