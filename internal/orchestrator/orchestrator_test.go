package orchestrator

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/hypoengine/internal/domain"
	"github.com/kestrelhq/hypoengine/internal/llmgateway"
	"github.com/kestrelhq/hypoengine/internal/matrixgen"
	"github.com/kestrelhq/hypoengine/internal/mece"
	"github.com/kestrelhq/hypoengine/internal/refine"
	"github.com/kestrelhq/hypoengine/internal/research"
	"github.com/kestrelhq/hypoengine/internal/searchgateway"
	"github.com/kestrelhq/hypoengine/internal/selector"
	"github.com/kestrelhq/hypoengine/internal/store"
	"github.com/kestrelhq/hypoengine/internal/treebuilder"
)

type fakeCatalog struct{ byName map[string]domain.Framework }

func (f fakeCatalog) Get(name string) (domain.Framework, bool) {
	fw, ok := f.byName[name]
	return fw, ok
}

func (f fakeCatalog) FindByTrigger(string) (domain.Framework, bool) { return domain.Framework{}, false }

func testCatalog() fakeCatalog {
	scale := domain.Framework{
		Name: "scale_decision",
		L1Categories: []domain.L1Template{
			{Key: "demand", Label: "Market Demand", Question: "q"},
			{Key: "ops", Label: "Operational Readiness", Question: "q"},
		},
	}
	// custom carries no L1 categories of its own; the Orchestrator never
	// supplies a CustomSpec, so selecting it always fails in the builder —
	// used to exercise the analysis-stage failure path deterministically.
	custom := domain.Framework{Name: "custom"}
	return fakeCatalog{byName: map[string]domain.Framework{scale.Name: scale, custom.Name: custom}}
}

type fakeLLMClient struct{}

func (f fakeLLMClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	content := req.Messages[0].Content
	var body string
	switch {
	case strings.Contains(content, "leaf hypotheses"):
		body = `[
			{"label":"Repeat Purchase Rate","question":"q?","metric_type":"quantitative","target":"t","data_source":"d","assessment_criteria":"c"},
			{"label":"Survey Intent Score","question":"q?","metric_type":"qualitative","target":"t","data_source":"d","assessment_criteria":"c"},
			{"label":"Waitlist Conversion","question":"q?","metric_type":"quantitative","target":"t","data_source":"d","assessment_criteria":"c"}
		]`
	case strings.Contains(content, "second-level branches"):
		body = `[{"key":"a","label":"Customer Demand","question":"q?"},{"key":"b","label":"Channel Fit","question":"q?"}]`
	case strings.Contains(content, "research brief"):
		body = `{"summary":"a concise research brief"}`
	case strings.Contains(content, "prioritization matrix"):
		body = `[{"label":"Some Risk","x_score":4,"y_score":4,"rationale":"r"}]`
	default:
		body = `{"summary":"ok"}`
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: body}}},
	}, nil
}

func noRetryGateway(client llmgateway.Client) *llmgateway.Gateway {
	return llmgateway.New(client, "test-model",
		llmgateway.WithRetryPolicy(llmgateway.RetryPolicy{MaxAttempts: 0}),
		llmgateway.WithCircuitBreaker(llmgateway.CircuitBreakerConfig{FailureThreshold: 1000, SuccessThreshold: 1}))
}

func newTestOrchestrator(t *testing.T, client llmgateway.Client) (*Orchestrator, *store.Store) {
	t.Helper()
	gateway := noRetryGateway(client)
	sel := selector.New(testCatalog())
	builder := treebuilder.New(gateway)
	validator := mece.New()
	loop := refine.New(builder, validator, 2)
	researchStage := research.New(gateway, searchgateway.Noop{})
	matrixGen := matrixgen.New(gateway)
	st, err := store.New(filepath.Join(t.TempDir(), "projects"))
	require.NoError(t, err)
	return New(sel, researchStage, loop, matrixGen, st), st
}

func drain(events <-chan ProgressEvent) []ProgressEvent {
	var out []ProgressEvent
	for e := range events {
		out = append(out, e)
	}
	return out
}

func TestRun_FullPipelineSucceedsAndPersists(t *testing.T) {
	orch, st := newTestOrchestrator(t, fakeLLMClient{})

	result, events, err := orch.Run(context.Background(), "should we launch a new product", "", "")
	require.NoError(t, err)
	evs := drain(events)

	assert.NotEmpty(t, result.ProjectID)
	assert.NotEmpty(t, result.Tree.L1Order)
	assert.NotEmpty(t, result.Matrix.Items)

	var stages []string
	for _, e := range evs {
		stages = append(stages, e.Stage+":"+e.Status)
	}
	assert.Contains(t, stages, StageResearch+":"+StatusStarted)
	assert.Contains(t, stages, StageResearch+":"+StatusCompleted)
	assert.Contains(t, stages, StagePrioritization+":"+StatusCompleted)
	assert.Contains(t, stages, StagePersist+":"+StatusCompleted)

	loaded, err := st.LoadTree(result.ProjectID, nil)
	require.NoError(t, err)
	assert.Equal(t, result.Tree.Problem, loaded.Content.Problem)

	loadedMatrix, err := st.LoadMatrix(result.ProjectID, domain.MatrixHypothesisPrioritization, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.MatrixHypothesisPrioritization, loadedMatrix.Content.MatrixType)
}

func TestRun_GeneratesProjectIDWhenEmpty(t *testing.T) {
	orch, _ := newTestOrchestrator(t, fakeLLMClient{})
	result, events, err := orch.Run(context.Background(), "problem", "", "")
	require.NoError(t, err)
	drain(events)
	assert.NotEmpty(t, result.ProjectID)
}

func TestRun_UsesSuppliedProjectID(t *testing.T) {
	orch, _ := newTestOrchestrator(t, fakeLLMClient{})
	result, events, err := orch.Run(context.Background(), "problem", "", "my-project")
	require.NoError(t, err)
	drain(events)
	assert.Equal(t, "my-project", result.ProjectID)
}

func TestRun_UnknownFrameworkHintFails(t *testing.T) {
	orch, _ := newTestOrchestrator(t, fakeLLMClient{})
	_, events, err := orch.Run(context.Background(), "problem", "not_a_real_framework", "")
	assert.Error(t, err)
	drain(events)
}

func TestRun_AnalysisStageFailurePropagatesAndEmitsFailedEvent(t *testing.T) {
	orch, _ := newTestOrchestrator(t, fakeLLMClient{})
	_, events, err := orch.Run(context.Background(), "problem", "custom", "")
	assert.Error(t, err)

	evs := drain(events)
	var sawFailed bool
	for _, e := range evs {
		if e.Stage == StageAnalysis && e.Status == StatusFailed {
			sawFailed = true
		}
	}
	assert.True(t, sawFailed)
}
