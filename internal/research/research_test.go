package research

import (
	"context"
	"fmt"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/hypoengine/internal/llmgateway"
)

type fakeLLMClient struct {
	respond func(prompt string) (string, error)
}

func (f fakeLLMClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
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

type fakeSearch struct {
	digest string
	err    error
}

func (f fakeSearch) Search(context.Context, string) (string, error) { return f.digest, f.err }

func TestGather_BothSubtasksSucceed(t *testing.T) {
	client := fakeLLMClient{respond: func(string) (string, error) {
		return `{"summary":"a concise brief"}`, nil
	}}
	s := New(noRetryGateway(client), fakeSearch{digest: "some search results"})

	ctx := s.Gather(context.Background(), "should we enter a new market")
	assert.Equal(t, "a concise brief", ctx.MarketResearch)
	assert.Equal(t, "a concise brief", ctx.CompetitorResearch)
}

func TestGather_SearchFailureDegradesToEmptyDigestButLLMStillRuns(t *testing.T) {
	var sawDigest string
	client := fakeLLMClient{respond: func(prompt string) (string, error) {
		sawDigest = prompt
		return `{"summary":"brief without search context"}`, nil
	}}
	s := New(noRetryGateway(client), fakeSearch{err: fmt.Errorf("search api down")})

	ctx := s.Gather(context.Background(), "problem")
	assert.Equal(t, "brief without search context", ctx.MarketResearch)
	assert.Contains(t, sawDigest, "no search results available")
}

func TestGather_LLMFailureDegradesToRawDigest(t *testing.T) {
	client := fakeLLMClient{respond: func(string) (string, error) { return "", fmt.Errorf("provider unavailable") }}
	s := New(noRetryGateway(client), fakeSearch{digest: "raw search snippets"})

	ctx := s.Gather(context.Background(), "problem")
	assert.Equal(t, "raw search snippets", ctx.MarketResearch)
	assert.Equal(t, "raw search snippets", ctx.CompetitorResearch)
}

func TestGather_BothFail_ReturnsEmptyStrings(t *testing.T) {
	client := fakeLLMClient{respond: func(string) (string, error) { return "", fmt.Errorf("provider unavailable") }}
	s := New(noRetryGateway(client), fakeSearch{err: fmt.Errorf("search api down")})

	ctx := s.Gather(context.Background(), "problem")
	assert.Empty(t, ctx.MarketResearch)
	assert.Empty(t, ctx.CompetitorResearch)
}

func TestGather_RespectsConcurrencyLimit(t *testing.T) {
	inFlight := make(chan struct{}, 2)
	maxSeen := 0
	client := fakeLLMClient{respond: func(string) (string, error) {
		inFlight <- struct{}{}
		if len(inFlight) > maxSeen {
			maxSeen = len(inFlight)
		}
		<-inFlight
		return `{"summary":"ok"}`, nil
	}}
	s := New(noRetryGateway(client), fakeSearch{digest: "x"}, WithConcurrency(1))

	s.Gather(context.Background(), "problem")
	assert.LessOrEqual(t, maxSeen, 1)
}

// slowCtxClient answers after delay unless its context ends first.
type slowCtxClient struct{ delay time.Duration }

func (c slowCtxClient) CreateChatCompletion(ctx context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	select {
	case <-time.After(c.delay):
		return openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: `{"summary":"ok"}`}}},
		}, nil
	case <-ctx.Done():
		return openai.ChatCompletionResponse{}, ctx.Err()
	}
}

func TestGather_HonorsStageTimeout(t *testing.T) {
	search := fakeSearch{digest: "x"}
	s := New(noRetryGateway(slowCtxClient{delay: 2 * time.Second}), search, WithTimeout(10*time.Millisecond))

	start := time.Now()
	ctx := s.Gather(context.Background(), "problem")
	elapsed := time.Since(start)

	require.Less(t, elapsed, 200*time.Millisecond)
	// The stage timeout cuts off the slow LLM calls, so each subtask
	// degrades to its raw search digest.
	assert.Equal(t, "x", ctx.MarketResearch)
	assert.Equal(t, "x", ctx.CompetitorResearch)
}
