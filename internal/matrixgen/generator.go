// Package matrixgen implements the Matrix Generator (MG): derives one of
// four 2x2 prioritization matrices from a validated tree, placing items
// into quadrants with rule-based recommendations.
package matrixgen

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kestrelhq/hypoengine/internal/domain"
	"github.com/kestrelhq/hypoengine/internal/domain/errs"
	"github.com/kestrelhq/hypoengine/internal/llmgateway"
	"github.com/kestrelhq/hypoengine/internal/prompt"
)

var matrixItemsTmpl = prompt.MustLoad("matrix_items.tmpl")

type itemCandidate struct {
	Label     string `json:"label"`
	XScore    int    `json:"x_score"`
	YScore    int    `json:"y_score"`
	Rationale string `json:"rationale"`
}

// Generator is the Matrix Generator.
type Generator struct {
	gateway *llmgateway.Gateway
	rules   []RecommendationRule
	engine  *ruleEngine
}

// Option configures a Generator at construction.
type Option func(*Generator)

// WithRecommendationRules overrides the bundled rule-based recommendation
// table.
func WithRecommendationRules(rules []RecommendationRule) Option {
	return func(g *Generator) { g.rules = rules }
}

// New constructs a Generator backed by the given LLM Gateway, used for
// the three LLM-enumerated matrix kinds.
func New(gateway *llmgateway.Gateway, opts ...Option) *Generator {
	g := &Generator{gateway: gateway, rules: defaultRecommendationRules, engine: newRuleEngine()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// treeSummary renders a short DFS-order digest of a tree's L1/L2 labels,
// used as prompt context for the LLM-enumerated matrix kinds.
func treeSummary(tree domain.HypothesisTree) string {
	summary := ""
	for _, l1 := range tree.OrderedL1() {
		summary += fmt.Sprintf("- %s\n", l1.Label)
		for _, l2 := range l1.OrderedL2() {
			summary += fmt.Sprintf("  - %s\n", l2.Label)
		}
	}
	return summary
}

// Generate derives the matrix of the given kind from tree. For
// hypothesis_prioritization, items are the tree's L3 labels taken
// directly (no LLM call); the other three kinds call the LLM Gateway to
// enumerate items with scores.
func (g *Generator) Generate(ctx context.Context, kind domain.MatrixType, problem string, tree domain.HypothesisTree) (domain.Matrix, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return domain.Matrix{}, errs.NewConfigError("matrixgen", fmt.Sprintf("unknown matrix kind %q", kind), nil)
	}

	var candidates []itemCandidate
	if kind == domain.MatrixHypothesisPrioritization {
		labels := tree.AllL3Labels()
		candidates = make([]itemCandidate, len(labels))
		for i, label := range labels {
			// Intrinsic items have no LLM-assigned score; default to the
			// scale midpoint (3, 3), which places them in Q2 until a caller
			// edits them.
			candidates[i] = itemCandidate{Label: label, XScore: 3, YScore: 3, Rationale: "derived directly from the hypothesis tree"}
		}
	} else {
		renderedPrompt := matrixItemsTmpl.Render(map[string]string{
			"problem":      problem,
			"tree_summary": treeSummary(tree),
			"item_kind":    spec.ItemKind,
			"x_axis_label": spec.XAxisLabel,
			"y_axis_label": spec.YAxisLabel,
		})
		result, err := llmgateway.CompleteJSON(ctx, g.gateway, renderedPrompt, validateItemCandidates)
		if err != nil {
			return domain.Matrix{}, err
		}
		candidates = result
	}

	return g.build(kind, spec, candidates)
}

// RegenerateItem re-derives a single item's scores and rationale via the
// LLM Gateway, for callers that want to refresh one item without
// regenerating the whole matrix. Satisfies hypotree.ItemRegenerator.
func (g *Generator) RegenerateItem(ctx context.Context, problem string, tree domain.HypothesisTree, matrix domain.Matrix, itemID string) (domain.MatrixItem, error) {
	existing, ok := matrix.Items[itemID]
	if !ok {
		return domain.MatrixItem{}, errs.NewNotFound("matrix_item", itemID)
	}
	spec, ok := kindSpecs[matrix.MatrixType]
	if !ok {
		return domain.MatrixItem{}, errs.NewConfigError("matrixgen", fmt.Sprintf("unknown matrix kind %q", matrix.MatrixType), nil)
	}

	renderedPrompt := matrixItemsTmpl.Render(map[string]string{
		"problem":      fmt.Sprintf("%s (re-score only: %q)", problem, existing.Label),
		"tree_summary": treeSummary(tree),
		"item_kind":    spec.ItemKind,
		"x_axis_label": spec.XAxisLabel,
		"y_axis_label": spec.YAxisLabel,
	})

	candidates, err := llmgateway.CompleteJSON(ctx, g.gateway, renderedPrompt, validateItemCandidates)
	if err != nil {
		return domain.MatrixItem{}, err
	}
	c := candidates[0]
	return domain.MatrixItem{ID: itemID, Label: c.Label, XScore: clampScore(c.XScore), YScore: clampScore(c.YScore), Rationale: c.Rationale}, nil
}

func (g *Generator) build(kind domain.MatrixType, spec kindSpec, candidates []itemCandidate) (domain.Matrix, error) {
	matrix := domain.Matrix{
		MatrixType: kind,
		XAxisLabel: spec.XAxisLabel,
		YAxisLabel: spec.YAxisLabel,
		Quadrants:  spec.Quadrants,
		Placements: map[domain.Quadrant][]string{domain.Q1: {}, domain.Q2: {}, domain.Q3: {}, domain.Q4: {}},
		Items:      make(map[string]domain.MatrixItem, len(candidates)),
	}

	for _, c := range candidates {
		id := uuid.NewString()
		item := domain.MatrixItem{ID: id, Label: c.Label, XScore: clampScore(c.XScore), YScore: clampScore(c.YScore), Rationale: c.Rationale}
		matrix.Items[id] = item
		q := quadrantFor(item.XScore, item.YScore)
		matrix.Placements[q] = append(matrix.Placements[q], id)
	}

	recs, err := buildRecommendations(g.engine, g.rules, matrix.Placements)
	if err != nil {
		return domain.Matrix{}, err
	}
	matrix.Recommendations = recs

	return matrix, nil
}

func clampScore(s int) int {
	if s < 1 {
		return 1
	}
	if s > scoreScale {
		return scoreScale
	}
	return s
}

func validateItemCandidates(raw json.RawMessage) ([]itemCandidate, error) {
	var candidates []itemCandidate
	if err := json.Unmarshal(raw, &candidates); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("llm returned no matrix items")
	}
	for i, c := range candidates {
		if c.Label == "" {
			return nil, fmt.Errorf("matrix item %d missing label", i)
		}
	}
	return candidates, nil
}
