// Package refine implements the Refinement Loop (RL): bounded iteration
// feeding MECE Validator feedback back into the Tree Builder until the
// tree is MECE-acceptable or the iteration cap is reached.
package refine

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/kestrelhq/hypoengine/internal/domain"
	"github.com/kestrelhq/hypoengine/internal/domain/errs"
	"github.com/kestrelhq/hypoengine/internal/treebuilder"
)

// state mirrors the loop's BUILDING/VALIDATING/DONE_OK/DONE_CAPPED
// state machine, kept as an explicit field the way the teacher's
// execution_state.go tracks phase transitions.
type state string

const (
	stateBuilding  state = "BUILDING"
	stateValidating state = "VALIDATING"
	stateDoneOK    state = "DONE_OK"
	stateDoneCapped state = "DONE_CAPPED"
)

// Status is the loop's terminal outcome, returned alongside the tree and
// report so callers can decide whether to surface a capped-iteration
// warning.
type Status string

const (
	StatusOK     Status = "done_ok"
	StatusCapped Status = "done_capped"
)

// Validator is the subset of mece.Validator the loop depends on.
type Validator interface {
	Validate(tree domain.HypothesisTree) (domain.ValidationReport, error)
}

// Loop is the Refinement Loop.
type Loop struct {
	builder   *treebuilder.Builder
	validator Validator
	maxIter   int
}

// New constructs a Loop. maxIter is clamped to [1,5]; the spec's default
// is 3.
func New(builder *treebuilder.Builder, validator Validator, maxIter int) *Loop {
	if maxIter < 1 {
		maxIter = 1
	}
	if maxIter > 5 {
		maxIter = 5
	}
	return &Loop{builder: builder, validator: validator, maxIter: maxIter}
}

// IterationReporter observes one iteration's outcome. A Loop is shared
// across concurrently running requests, so the reporter is passed per
// call to BuildValidated rather than stored on the Loop itself.
type IterationReporter func(iteration int, report domain.ValidationReport)

// Result is the loop's return value: the last tree built, paired with
// its validation report and how the loop terminated.
type Result struct {
	Tree   domain.HypothesisTree
	Report domain.ValidationReport
	Status Status
}

// BuildValidated runs the bounded build-then-validate iteration. It
// always returns the last tree built paired with its validation report,
// even when the iteration cap is hit — DONE_CAPPED is a successful,
// best-effort outcome from the pipeline's perspective.
func (l *Loop) BuildValidated(ctx context.Context, problem string, framework domain.Framework, research treebuilder.ResearchContext, custom *treebuilder.CustomSpec, onIteration IterationReporter) (Result, error) {
	s := stateBuilding
	var feedback *treebuilder.Feedback
	var lastTree domain.HypothesisTree
	var lastReport domain.ValidationReport

	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			if iteration == 1 {
				return Result{}, errs.NewCancelled("refinement_loop", err)
			}
			log.Warn().Int("last_iteration", iteration-1).Msg("refinement loop cancelled between iterations, returning capped")
			return Result{Tree: lastTree, Report: lastReport, Status: StatusCapped}, nil
		}

		s = stateBuilding
		tree, err := l.builder.Build(ctx, problem, framework, research, feedback, custom)
		if err != nil {
			return Result{}, err
		}
		tree.Metadata.Iteration = iteration
		lastTree = tree

		s = stateValidating
		report, err := l.validator.Validate(tree)
		if err != nil {
			return Result{}, err
		}
		lastReport = report

		if onIteration != nil {
			onIteration(iteration, report)
		}

		if report.IsMECE {
			s = stateDoneOK
			log.Info().Int("iteration", iteration).Str("state", string(s)).Msg("refinement loop converged")
			return Result{Tree: lastTree, Report: lastReport, Status: StatusOK}, nil
		}

		if iteration >= l.maxIter {
			s = stateDoneCapped
			log.Warn().Int("iteration", iteration).Int("hard_issues", report.HardIssueCount()).
				Str("state", string(s)).Msg("refinement loop hit iteration cap")
			return Result{Tree: lastTree, Report: lastReport, Status: StatusCapped}, nil
		}

		log.Info().Int("iteration", iteration).Int("hard_issues", report.HardIssueCount()).
			Msg("refinement loop iterating on validator feedback")

		feedback = &treebuilder.Feedback{Suggestions: report.Suggestions}
	}
}
