package treebuilder

import (
	"context"
	"fmt"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/hypoengine/internal/domain"
	"github.com/kestrelhq/hypoengine/internal/llmgateway"
)

// fakeClient stands in for the OpenAI SDK client the Gateway talks to.
// respond inspects the rendered prompt and returns either a JSON payload
// or an error, letting each test drive a specific branch of Build without
// a network call.
type fakeClient struct {
	respond func(prompt string) (string, error)
}

func (f fakeClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	content, err := f.respond(req.Messages[0].Content)
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}},
	}, nil
}

func noRetryGateway(client llmgateway.Client) *llmgateway.Gateway {
	return llmgateway.New(client, "test-model",
		llmgateway.WithRetryPolicy(llmgateway.RetryPolicy{MaxAttempts: 0}),
		llmgateway.WithCircuitBreaker(llmgateway.CircuitBreakerConfig{FailureThreshold: 1000, SuccessThreshold: 1}))
}

func isL2Prompt(prompt string) bool { return strings.Contains(prompt, "second-level branches") }

func twoFramework() domain.Framework {
	return domain.Framework{
		Name: "scale_decision",
		L1Categories: []domain.L1Template{
			{Key: "demand", Label: "Market Demand", Question: "is there demand?", L2Seeds: []domain.L2Seed{
				{Key: "demand_default", Label: "Customer Demand", Question: "q", SuggestedL3Labels: []string{"Repeat Purchase Rate", "Survey Intent Score"}},
			}},
			{Key: "ops", Label: "Operational Readiness", Question: "can we deliver?", L2Seeds: []domain.L2Seed{
				{Key: "ops_default", Label: "Fulfillment Capacity", Question: "q"},
			}},
		},
	}
}

func TestBuild_FromFrameworkLLMSuccess(t *testing.T) {
	client := fakeClient{respond: func(prompt string) (string, error) {
		if isL2Prompt(prompt) {
			return `[{"key":"branch_a","label":"Customer Demand","question":"q?"},{"key":"branch_b","label":"Channel Fit","question":"q?"}]`, nil
		}
		return `[
			{"label":"Repeat Purchase Rate","question":"do customers return?","metric_type":"quantitative","target":"30% repeat within 90 days","data_source":"order history","assessment_criteria":"meets target"},
			{"label":"Survey Intent Score","question":"do surveyed users intend to buy?","metric_type":"qualitative","target":"net positive intent","data_source":"customer survey","assessment_criteria":"majority positive"},
			{"label":"Waitlist Conversion","question":"do waitlist signups convert?","metric_type":"quantitative","target":"20% conversion","data_source":"signup funnel","assessment_criteria":"meets target"}
		]`, nil
	}}
	b := New(noRetryGateway(client))

	tree, err := b.Build(context.Background(), "should we launch this product", twoFramework(), ResearchContext{}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.GenerationLLM, tree.GenerationMode)
	assert.Equal(t, []string{"demand", "ops"}, tree.L1Order)
	assert.Empty(t, tree.Metadata.Fallbacks)
	for _, l1 := range tree.OrderedL1() {
		assert.Len(t, l1.L2Order, 2)
		for _, l2 := range l1.OrderedL2() {
			assert.GreaterOrEqual(t, len(l2.L3), 3)
			for _, leaf := range l2.L3 {
				assert.True(t, leaf.Complete())
			}
		}
	}
}

func TestBuild_ResearchModeWhenResearchProvided(t *testing.T) {
	client := fakeClient{respond: func(prompt string) (string, error) {
		if isL2Prompt(prompt) {
			return `[{"key":"branch_a","label":"Customer Demand","question":"q?"},{"key":"branch_b","label":"Channel Fit","question":"q?"}]`, nil
		}
		return `[
			{"label":"Repeat Purchase Rate","question":"do customers return?","metric_type":"quantitative","target":"30%","data_source":"orders","assessment_criteria":"meets target"},
			{"label":"Survey Intent Score","question":"do users intend to buy?","metric_type":"qualitative","target":"positive","data_source":"survey","assessment_criteria":"majority positive"},
			{"label":"Waitlist Conversion","question":"do signups convert?","metric_type":"quantitative","target":"20%","data_source":"funnel","assessment_criteria":"meets target"}
		]`, nil
	}}
	b := New(noRetryGateway(client))

	research := ResearchContext{MarketResearch: "growing market", CompetitorResearch: "fragmented competitors"}
	tree, err := b.Build(context.Background(), "should we launch this product", twoFramework(), research, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.GenerationLLMResearch, tree.GenerationMode)
}

func TestBuild_CustomFrameworkRequiresSpec(t *testing.T) {
	client := fakeClient{respond: func(string) (string, error) { return "", fmt.Errorf("should not be called") }}
	b := New(noRetryGateway(client))

	_, err := b.Build(context.Background(), "problem", domain.Framework{Name: "custom"}, ResearchContext{}, nil, nil)
	assert.Error(t, err)
}

func TestBuild_CustomFrameworkUsesSuppliedL1(t *testing.T) {
	client := fakeClient{respond: func(prompt string) (string, error) {
		if isL2Prompt(prompt) {
			return `[{"key":"branch_a","label":"Custom Branch One","question":"q?"},{"key":"branch_b","label":"Custom Branch Two","question":"q?"}]`, nil
		}
		return `[
			{"label":"Metric One Here","question":"does it hold?","metric_type":"binary","target":"yes","data_source":"ops log","assessment_criteria":"binary pass"},
			{"label":"Metric Two Here","question":"does it hold?","metric_type":"binary","target":"yes","data_source":"ops log","assessment_criteria":"binary pass"},
			{"label":"Metric Three Here","question":"does it hold?","metric_type":"binary","target":"yes","data_source":"ops log","assessment_criteria":"binary pass"}
		]`, nil
	}}
	b := New(noRetryGateway(client))
	custom := &CustomSpec{L1: []domain.L1Template{
		{Key: "custom_a", Label: "Custom Category", Question: "q", L2Seeds: []domain.L2Seed{{Key: "seed_a", Label: "Seed", Question: "q"}}},
	}}

	tree, err := b.Build(context.Background(), "problem", domain.Framework{Name: "custom"}, ResearchContext{}, nil, custom)
	require.NoError(t, err)
	assert.Equal(t, []string{"custom_a"}, tree.L1Order)
}

func TestBuild_FallsBackToSeedOnL2Failure(t *testing.T) {
	client := fakeClient{respond: func(prompt string) (string, error) {
		if isL2Prompt(prompt) {
			return "", fmt.Errorf("provider unavailable")
		}
		return `[]`, fmt.Errorf("unreachable for this test")
	}}
	b := New(noRetryGateway(client))

	tree, err := b.Build(context.Background(), "problem", twoFramework(), ResearchContext{}, nil, nil)
	require.NoError(t, err)

	demand := tree.L1["demand"]
	require.Len(t, demand.L2Order, 1)
	assert.Equal(t, "demand_default", demand.L2Order[0])

	var l2Fallbacks int
	for _, fb := range tree.Metadata.Fallbacks {
		if fb.Slot == "l2" {
			l2Fallbacks++
		}
	}
	assert.Equal(t, 2, l2Fallbacks, "one l2 fallback per l1 category")

	seedLeaves := demand.L2["demand_default"].L3
	require.Len(t, seedLeaves, 3, "a two-label seed must be padded to the minimum of 3 leaves")
	assert.Equal(t, "Repeat Purchase Rate", seedLeaves[0].Label)
	assert.True(t, seedLeaves[0].Complete())
	assert.True(t, seedLeaves[2].Complete(), "padded leaves must still be complete")
}

func TestBuild_FallsBackToSeedOnL3Failure(t *testing.T) {
	client := fakeClient{respond: func(prompt string) (string, error) {
		if isL2Prompt(prompt) {
			return `[{"key":"branch_a","label":"Customer Demand","question":"q?"},{"key":"branch_b","label":"Channel Fit","question":"q?"}]`, nil
		}
		return "", fmt.Errorf("provider unavailable")
	}}
	b := New(noRetryGateway(client))

	tree, err := b.Build(context.Background(), "problem", twoFramework(), ResearchContext{}, nil, nil)
	require.NoError(t, err)

	var l3Fallbacks int
	for _, fb := range tree.Metadata.Fallbacks {
		if fb.Slot == "l3" {
			l3Fallbacks++
		}
	}
	assert.Equal(t, 4, l3Fallbacks, "one l3 fallback per l2 branch (2 L1 x 2 L2)")

	demand := tree.L1["demand"]
	leaves := demand.L2["branch_a"].L3
	require.NotEmpty(t, leaves)
	for _, leaf := range leaves {
		assert.True(t, leaf.Complete())
	}
}

func TestBuild_L1WithNoSeedsAndL2FailureProducesNoBranches(t *testing.T) {
	framework := domain.Framework{
		Name: "scale_decision",
		L1Categories: []domain.L1Template{
			{Key: "demand", Label: "Market Demand", Question: "q"},
		},
	}
	client := fakeClient{respond: func(string) (string, error) { return "", fmt.Errorf("provider unavailable") }}
	b := New(noRetryGateway(client))

	tree, err := b.Build(context.Background(), "problem", framework, ResearchContext{}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, tree.L1["demand"].L2Order)
	require.Len(t, tree.Metadata.Fallbacks, 1)
	assert.Equal(t, "l2", tree.Metadata.Fallbacks[0].Slot)
}

func TestValidateL2Candidates(t *testing.T) {
	_, err := validateL2Candidates([]byte(`[{"key":"a","label":"One Two","question":"q"}]`))
	assert.Error(t, err, "fewer than 2 candidates")

	_, err = validateL2Candidates([]byte(`[
		{"key":"a","label":"One Two","question":"q"},
		{"key":"a","label":"Three Four","question":"q"}
	]`))
	assert.Error(t, err, "duplicate key")

	_, err = validateL2Candidates([]byte(`[
		{"key":"a","label":"One","question":"q"},
		{"key":"b","label":"Three Four","question":"q"}
	]`))
	assert.Error(t, err, "label word count below 2")

	_, err = validateL2Candidates([]byte(`[
		{"key":"a","label":"Growth In 2024","question":"q"},
		{"key":"b","label":"Three Four","question":"q"}
	]`))
	assert.Error(t, err, "label contains digit")

	ok, err := validateL2Candidates([]byte(`[
		{"key":"a","label":"Customer Demand","question":"q"},
		{"key":"b","label":"Channel Fit","question":"q"}
	]`))
	require.NoError(t, err)
	assert.Len(t, ok, 2)
}

func TestValidateL3Candidates(t *testing.T) {
	good := `{"label":"Repeat Purchase Rate","question":"do customers return?","metric_type":"quantitative","target":"30%","data_source":"orders","assessment_criteria":"meets target"}`

	_, err := validateL3Candidates([]byte(`[` + good + `,` + good + `]`))
	assert.Error(t, err, "fewer than 3 candidates")

	bad := `{"label":"Has A Digit 2","question":"q?","metric_type":"quantitative","target":"t","data_source":"d","assessment_criteria":"c"}`
	_, err = validateL3Candidates([]byte(`[` + good + `,` + good + `,` + bad + `]`))
	assert.Error(t, err, "only 2 pass content rules once the digit label is dropped")

	ok, err := validateL3Candidates([]byte(`[` + good + `,` + good + `,` + good + `]`))
	require.NoError(t, err)
	assert.Len(t, ok, 3)
}
