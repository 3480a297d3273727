// Package llmgateway implements the LLM Gateway (LG): a single narrow
// capability that turns a prompt into validated JSON, with bounded
// retries, circuit breaking, and a typed error surface. No other
// component in this module talks to the model provider directly.
package llmgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/kestrelhq/hypoengine/internal/domain/errs"
)

// Schema validates and decodes a raw JSON payload. TB and MG never pass
// raw untyped maps past the Gateway; they always supply a Schema that
// unmarshals into a concrete type.
type Schema[T any] func(raw json.RawMessage) (T, error)

// StructSchema returns a Schema that JSON-decodes into T directly, the
// typed-variant path the design notes call for ("never pass raw untyped
// maps past LG").
func StructSchema[T any]() Schema[T] {
	return func(raw json.RawMessage) (T, error) {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			var zero T
			return zero, err
		}
		return v, nil
	}
}

// Client is the provider-facing subset of the OpenAI SDK the Gateway uses.
// Narrowed to an interface so tests can substitute a fake without a real
// network call.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Gateway is the LLM Gateway.
type Gateway struct {
	client  Client
	model   string
	retry   RetryPolicy
	breaker *circuitBreaker
	timeout time.Duration
}

// Option configures a Gateway at construction.
type Option func(*Gateway)

// WithRetryPolicy overrides the default retry schedule.
func WithRetryPolicy(p RetryPolicy) Option { return func(g *Gateway) { g.retry = p } }

// WithCircuitBreaker overrides the default circuit breaker configuration.
func WithCircuitBreaker(cfg CircuitBreakerConfig) Option {
	return func(g *Gateway) { g.breaker = newCircuitBreaker(cfg) }
}

// WithCallTimeout overrides the per-call timeout (default 30s).
func WithCallTimeout(d time.Duration) Option { return func(g *Gateway) { g.timeout = d } }

// New constructs a Gateway backed by the OpenAI API.
func New(client Client, model string, opts ...Option) *Gateway {
	g := &Gateway{
		client:  client,
		model:   model,
		retry:   DefaultRetryPolicy(),
		breaker: newCircuitBreaker(DefaultCircuitBreakerConfig()),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// rateLimitError marks a provider rate-limit response (HTTP 429). The
// retry loop passes its retryAfter to RetryPolicy.Delay as a backoff hint,
// but classifyProviderError leaves retryAfter at zero: a server-suggested
// backoff is not read, and rate-limited attempts wait on the exponential
// schedule.
type rateLimitError struct {
	retryAfter time.Duration
	cause      error
}

func (e *rateLimitError) Error() string { return fmt.Sprintf("rate limited: %v", e.cause) }
func (e *rateLimitError) Unwrap() error { return e.cause }

// quotaError marks a non-retryable provider signal (billing/quota).
type quotaError struct{ cause error }

func (e *quotaError) Error() string { return fmt.Sprintf("quota: %v", e.cause) }
func (e *quotaError) Unwrap() error { return e.cause }

// classifyProviderError inspects an OpenAI API error and returns the
// typed signal the Gateway's retry loop needs. go-openai surfaces HTTP
// status via *openai.APIError.
func classifyProviderError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429:
			return &rateLimitError{cause: err}
		case 402:
			return &quotaError{cause: err}
		}
		if apiErr.Code == "insufficient_quota" {
			return &quotaError{cause: err}
		}
	}
	return err
}

// CompleteJSON sends prompt to the model and returns the schema-validated
// result, retrying on network errors, rate limits, and schema failures up
// to the configured retry budget. QuotaExceeded is never retried; it
// propagates immediately.
func CompleteJSON[T any](ctx context.Context, g *Gateway, prompt string, schema Schema[T]) (T, error) {
	var zero T

	if !g.breaker.allow() {
		return zero, errs.NewLLMUnavailable(0, fmt.Errorf("circuit breaker open"))
	}

	var lastErr error
	attempts := g.retry.MaxAttempts + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, errs.NewCancelled("llm_gateway", err)
		}

		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		start := time.Now()
		resp, err := g.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: g.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeText},
		})
		cancel()
		latency := time.Since(start)

		if err != nil {
			classified := classifyProviderError(err)

			var quota *quotaError
			if errors.As(classified, &quota) {
				g.breaker.recordFailure()
				return zero, errs.NewQuotaExceeded("provider reported quota exceeded", err)
			}

			g.breaker.recordFailure()
			lastErr = classified

			log.Warn().Int("attempt", attempt).Err(err).Msg("llm gateway call failed")

			if attempt == attempts {
				break
			}

			var rl *rateLimitError
			hint := time.Duration(0)
			if errors.As(classified, &rl) {
				hint = rl.retryAfter
			}
			select {
			case <-ctx.Done():
				return zero, errs.NewCancelled("llm_gateway", ctx.Err())
			case <-time.After(g.retry.Delay(attempt, hint)):
			}
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("provider returned no choices")
			g.breaker.recordFailure()
			if attempt == attempts {
				break
			}
			continue
		}

		content := resp.Choices[0].Message.Content
		raw, extractErr := extractJSON(content)
		if extractErr != nil {
			lastErr = extractErr
			g.breaker.recordFailure()
			log.Warn().Int("attempt", attempt).Err(extractErr).Msg("llm gateway response was not JSON")
			if attempt == attempts {
				return zero, errs.NewSchemaValidation(fmt.Sprintf("%T", zero), lastErr)
			}
			continue
		}

		value, validateErr := schema(raw)
		if validateErr != nil {
			lastErr = validateErr
			g.breaker.recordFailure()
			log.Warn().Int("attempt", attempt).Err(validateErr).Msg("llm gateway response failed schema validation")
			if attempt == attempts {
				return zero, errs.NewSchemaValidation(fmt.Sprintf("%T", zero), lastErr)
			}
			continue
		}

		g.breaker.recordSuccess()
		log.Debug().Dur("latency", latency).Int("prompt_tokens", resp.Usage.PromptTokens).
			Int("completion_tokens", resp.Usage.CompletionTokens).Msg("llm gateway call succeeded")
		return value, nil
	}

	return zero, errs.NewLLMUnavailable(attempts, lastErr)
}

// extractJSON tolerates markdown code fences and leading/trailing prose
// around a JSON payload, the idiom used by gohypo's GeneratorAdapter for
// cleaning OpenAI responses before unmarshaling.
func extractJSON(content string) (json.RawMessage, error) {
	s := strings.TrimSpace(content)

	if strings.Contains(s, "```") {
		first := strings.Index(s, "```")
		rest := s[first+3:]
		rest = strings.TrimPrefix(rest, "json")
		rest = strings.TrimPrefix(rest, "\n")
		if end := strings.Index(rest, "```"); end >= 0 {
			s = rest[:end]
		} else {
			s = rest
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return nil, fmt.Errorf("no JSON payload found in response")
	}
	end := strings.LastIndexAny(s, "]}")
	if end < start {
		return nil, fmt.Errorf("unterminated JSON payload in response")
	}
	candidate := s[start : end+1]

	if !json.Valid([]byte(candidate)) {
		return nil, fmt.Errorf("extracted payload is not valid JSON")
	}
	return json.RawMessage(candidate), nil
}
