// Package orchestrator implements the Orchestrator (OR): the single
// top-level pipeline that drives Framework Selector -> Research Stage ->
// Refinement Loop -> Matrix Generator -> Project Store for one request,
// emitting progress events along the way. Grounded on the teacher's
// WorkflowEngine (internal/application/executor/engine.go), narrowed from
// its generic Plan/Execute/Finalize node graph down to this system's
// fixed five-stage sequence.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kestrelhq/hypoengine/internal/domain"
	"github.com/kestrelhq/hypoengine/internal/domain/errs"
	"github.com/kestrelhq/hypoengine/internal/matrixgen"
	"github.com/kestrelhq/hypoengine/internal/refine"
	"github.com/kestrelhq/hypoengine/internal/research"
	"github.com/kestrelhq/hypoengine/internal/selector"
	"github.com/kestrelhq/hypoengine/internal/store"
)

// Stage names, fixed per the progress-event schema.
const (
	StageResearch       = "research"
	StageAnalysis       = "analysis"
	StagePrioritization = "prioritization"
	StagePersist        = "persist"
)

// Status values a ProgressEvent carries.
const (
	StatusStarted   = "started"
	StatusProgress  = "progress"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ProgressEvent is one entry in the pull-style progress stream consumed
// by whatever boundary (CLI, future API) drives the Orchestrator.
type ProgressEvent struct {
	Stage     string
	Status    string
	Iteration int
	Message   string
	Timestamp time.Time
}

// progressBufferSize comfortably covers one run's worth of events (four
// stage start/completed pairs plus up to five refinement iterations)
// without ever blocking the emitting goroutine.
const progressBufferSize = 32

// RunResult is the Orchestrator's top-level contract output.
type RunResult struct {
	ProjectID string
	Tree      domain.HypothesisTree
	Report    domain.ValidationReport
	Matrix    domain.Matrix
}

// Orchestrator wires together one instance of every upstream stage.
type Orchestrator struct {
	selector  *selector.Selector
	research  *research.Stage
	loop      *refine.Loop
	matrixgen *matrixgen.Generator
	store     *store.Store
}

// New constructs an Orchestrator from its fully-configured stage
// dependencies.
func New(sel *selector.Selector, researchStage *research.Stage, loop *refine.Loop, matrixGen *matrixgen.Generator, st *store.Store) *Orchestrator {
	return &Orchestrator{selector: sel, research: researchStage, loop: loop, matrixgen: matrixGen, store: st}
}

// Run drives the full pipeline for one problem statement to completion.
// The returned channel is buffered and already fully populated (and
// closed) by the time Run returns: Run's own sequencing — RS must finish
// before RL begins, RL before MG, MG before persistence — means the
// pipeline itself is never concurrent with its caller, so a true
// real-time stream isn't observable through this call signature. A
// caller that wants to watch events as they occur would need to run Run
// in its own goroutine and read the channel from another; the channel
// itself never blocks the pipeline regardless (send is best-effort).
//
// projectID, if empty, is generated. frameworkHint, if empty, falls
// through to trigger-phrase detection then the default framework.
func (o *Orchestrator) Run(ctx context.Context, problem, frameworkHint, projectID string) (RunResult, <-chan ProgressEvent, error) {
	events := make(chan ProgressEvent, progressBufferSize)
	emit := func(stage, status string, iteration int, message string) {
		select {
		case events <- ProgressEvent{Stage: stage, Status: status, Iteration: iteration, Message: message, Timestamp: time.Now().UTC()}:
		default:
			log.Warn().Str("stage", stage).Str("status", status).Msg("orchestrator: progress event dropped, channel full")
		}
	}
	defer close(events)

	if projectID == "" {
		projectID = uuid.NewString()
	}

	framework, err := o.selector.Select(problem, frameworkHint)
	if err != nil {
		return RunResult{}, events, err
	}

	emit(StageResearch, StatusStarted, 0, "")
	researchCtx := o.research.Gather(ctx, problem)
	emit(StageResearch, StatusCompleted, 0, "")

	if err := ctx.Err(); err != nil {
		return RunResult{}, events, errs.NewCancelled("orchestrator", err)
	}

	emit(StageAnalysis, StatusStarted, 0, "")
	onIteration := func(iteration int, report domain.ValidationReport) {
		emit(StageAnalysis, StatusProgress, iteration, fmt.Sprintf("%d hard issue(s) remaining", report.HardIssueCount()))
	}
	result, err := o.loop.BuildValidated(ctx, problem, framework, researchCtx, nil, onIteration)
	if err != nil {
		emit(StageAnalysis, StatusFailed, 0, err.Error())
		return RunResult{}, events, err
	}
	if result.Status == refine.StatusCapped {
		emit(StageAnalysis, StatusCompleted, result.Tree.Metadata.Iteration,
			fmt.Sprintf("iteration cap reached with %d unresolved hard issue(s)", result.Report.HardIssueCount()))
	} else {
		emit(StageAnalysis, StatusCompleted, result.Tree.Metadata.Iteration, "")
	}

	if err := ctx.Err(); err != nil {
		return RunResult{}, events, errs.NewCancelled("orchestrator", err)
	}

	emit(StagePrioritization, StatusStarted, 0, "")
	matrix, err := o.matrixgen.Generate(ctx, domain.MatrixHypothesisPrioritization, problem, result.Tree)
	if err != nil {
		// Per spec, MG failure for the base matrix still lets the tree be
		// saved; surface the error but keep the run's tree/report intact.
		emit(StagePrioritization, StatusFailed, 0, err.Error())
		if saveErr := o.persistTree(emit, projectID, result.Tree); saveErr != nil {
			return RunResult{}, events, saveErr
		}
		return RunResult{ProjectID: projectID, Tree: result.Tree, Report: result.Report}, events, err
	}
	emit(StagePrioritization, StatusCompleted, 0, "")

	emit(StagePersist, StatusStarted, 0, "")
	if _, err := o.store.SaveTree(projectID, result.Tree, ""); err != nil {
		emit(StagePersist, StatusFailed, 0, err.Error())
		return RunResult{}, events, err
	}
	if _, err := o.store.SaveMatrix(projectID, domain.MatrixHypothesisPrioritization, matrix, ""); err != nil {
		emit(StagePersist, StatusFailed, 0, err.Error())
		return RunResult{}, events, err
	}
	emit(StagePersist, StatusCompleted, 0, "")

	return RunResult{ProjectID: projectID, Tree: result.Tree, Report: result.Report, Matrix: matrix}, events, nil
}

// persistTree saves only the tree, used on the MG-failure path where the
// spec requires the tree to remain saved even though no matrix exists.
func (o *Orchestrator) persistTree(emit func(stage, status string, iteration int, message string), projectID string, tree domain.HypothesisTree) error {
	emit(StagePersist, StatusStarted, 0, "")
	if _, err := o.store.SaveTree(projectID, tree, ""); err != nil {
		emit(StagePersist, StatusFailed, 0, err.Error())
		return err
	}
	emit(StagePersist, StatusCompleted, 0, "")
	return nil
}
