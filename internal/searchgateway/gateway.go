// Package searchgateway implements the Search Gateway (SG): a narrow
// capability that turns a query into a short text digest of market/
// competitor information for the Research Stage to pass to the LLM
// Gateway as context. Shaped after the teacher's HTTPRequestNode client
// abstraction, stripped of the node-graph machinery it doesn't need here.
package searchgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Gateway turns a free-text query into a short research digest.
type Gateway interface {
	Search(ctx context.Context, query string) (string, error)
}

// HTTPClient is the subset of *http.Client the gateway needs, narrowed so
// tests can substitute a fake transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebSearchGateway calls a search API (SerpAPI-shaped: GET with an api_key
// and q parameter, JSON response) and condenses the results into a short
// digest string.
type WebSearchGateway struct {
	client     HTTPClient
	baseURL    string
	apiKey     string
	maxResults int
}

// Option configures a WebSearchGateway.
type Option func(*WebSearchGateway)

// WithMaxResults bounds how many organic results feed the digest (default 5).
func WithMaxResults(n int) Option { return func(g *WebSearchGateway) { g.maxResults = n } }

// WithHTTPClient overrides the default timeout-bound http.Client.
func WithHTTPClient(c HTTPClient) Option { return func(g *WebSearchGateway) { g.client = c } }

// New constructs a WebSearchGateway.
func New(baseURL, apiKey string, opts ...Option) *WebSearchGateway {
	g := &WebSearchGateway{
		client:     &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxResults: 5,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type searchResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"organic_results"`
}

// Search issues the query and returns a newline-joined digest of title +
// snippet for the top results. A non-2xx response or malformed payload is
// returned as an error; callers (the Research Stage) treat SG failures as
// degrade-not-fail and proceed without this leg of context.
func (g *WebSearchGateway) Search(ctx context.Context, query string) (string, error) {
	u, err := url.Parse(g.baseURL)
	if err != nil {
		return "", fmt.Errorf("search gateway: invalid base url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("api_key", g.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("search gateway: building request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search gateway: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := make([]byte, 512)
		n, _ := io.ReadFull(resp.Body, snippet)
		return "", fmt.Errorf("search gateway: unexpected status %s: %s", resp.Status, snippet[:n])
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("search gateway: decoding response: %w", err)
	}

	var b strings.Builder
	for i, r := range parsed.OrganicResults {
		if i >= g.maxResults {
			break
		}
		fmt.Fprintf(&b, "- %s: %s\n", r.Title, r.Snippet)
	}

	if b.Len() == 0 {
		log.Debug().Str("query", query).Msg("search gateway returned no organic results")
		return "", nil
	}
	return b.String(), nil
}

// Noop is the zero-configuration default used when no search API key is
// configured. It returns an empty digest rather than an error so the
// Research Stage's degrade-not-fail semantics apply uniformly whether or
// not search is wired up.
type Noop struct{}

// Search always returns an empty digest.
func (Noop) Search(ctx context.Context, query string) (string, error) { return "", nil }
