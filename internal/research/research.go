// Package research implements the Research Stage (RS): two concurrent
// research subtasks (market, competitor), each combining one LLM Gateway
// call and one Search Gateway call, joined with a stage timeout. Grounded
// on the teacher's executeWave semaphore-plus-WaitGroup fan-out, narrowed
// to the fixed two-subtask shape this stage needs.
package research

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kestrelhq/hypoengine/internal/llmgateway"
	"github.com/kestrelhq/hypoengine/internal/prompt"
	"github.com/kestrelhq/hypoengine/internal/searchgateway"
	"github.com/kestrelhq/hypoengine/internal/treebuilder"
)

var researchTmpl = prompt.MustLoad("research.tmpl")

type digestSchema struct {
	Summary string `json:"summary"`
}

// Stage is the Research Stage.
type Stage struct {
	gateway *llmgateway.Gateway
	search  searchgateway.Gateway
	timeout time.Duration
	// concurrency bounds simultaneous LLM Gateway calls across the two
	// subtasks, per the spec's <=2 concurrent LG calls constraint.
	concurrency int
}

// Option configures a Stage at construction.
type Option func(*Stage)

// WithTimeout overrides the stage's total wall-clock budget (default 60s).
func WithTimeout(d time.Duration) Option { return func(s *Stage) { s.timeout = d } }

// WithConcurrency overrides the max simultaneous LG calls (default 2).
func WithConcurrency(n int) Option { return func(s *Stage) { s.concurrency = n } }

// New constructs a Stage. search may be searchgateway.Noop{} when no
// search API is configured.
func New(gateway *llmgateway.Gateway, search searchgateway.Gateway, opts ...Option) *Stage {
	s := &Stage{gateway: gateway, search: search, timeout: 60 * time.Second, concurrency: 2}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Context is the pair of research digests the stage produces.
type Context = treebuilder.ResearchContext

// Gather runs the market and competitor subtasks concurrently, bounded
// by the stage timeout. A subtask's failure degrades rather than failing
// the stage: when its LLM call fails it contributes the raw search digest,
// which is empty when the search also failed. RS always returns both
// slots, regardless of individual subtask success.
func (s *Stage) Gather(ctx context.Context, problem string) Context {
	stageCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	semaphore := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	var market, competitor string

	wg.Add(2)
	go func() {
		defer wg.Done()
		semaphore <- struct{}{}
		defer func() { <-semaphore }()
		market = s.runSubtask(stageCtx, problem, "market conditions and customer demand")
	}()
	go func() {
		defer wg.Done()
		semaphore <- struct{}{}
		defer func() { <-semaphore }()
		competitor = s.runSubtask(stageCtx, problem, "competitive landscape and comparable offerings")
	}()
	wg.Wait()

	return Context{MarketResearch: market, CompetitorResearch: competitor}
}

func (s *Stage) runSubtask(ctx context.Context, problem, angle string) string {
	digest, err := s.search.Search(ctx, problem+" "+angle)
	if err != nil {
		log.Warn().Err(err).Str("angle", angle).Msg("research stage: search gateway failed, continuing without it")
		digest = ""
	}

	renderedPrompt := researchTmpl.Render(map[string]string{
		"problem": problem,
		"angle":   angle,
		"digest":  orEmpty(digest),
	})

	result, err := llmgateway.CompleteJSON(ctx, s.gateway, renderedPrompt, llmgateway.StructSchema[digestSchema]())
	if err != nil {
		log.Warn().Err(err).Str("angle", angle).Msg("research stage: llm gateway failed, returning partial research")
		return digest
	}
	return result.Summary
}

func orEmpty(s string) string {
	if s == "" {
		return "(no search results available)"
	}
	return s
}
