// Package treebuilder implements the Tree Builder (TB): combines a
// framework's static L1 scaffold with LLM-generated L2 branches and L3
// leaves, falling back to framework seed content per-slot when the LLM
// Gateway cannot produce a usable result.
package treebuilder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kestrelhq/hypoengine/internal/domain"
	"github.com/kestrelhq/hypoengine/internal/domain/errs"
	"github.com/kestrelhq/hypoengine/internal/llmgateway"
	"github.com/kestrelhq/hypoengine/internal/prompt"
)

// ResearchContext is the pair of research digests the Research Stage
// hands to the Tree Builder.
type ResearchContext struct {
	MarketResearch     string
	CompetitorResearch string
}

func (r ResearchContext) empty() bool {
	return r.MarketResearch == "" && r.CompetitorResearch == ""
}

// Feedback is the Refinement Loop's prior-iteration validation output,
// folded back into the next build attempt's prompts.
type Feedback struct {
	Suggestions []string
}

// CustomSpec supplies caller-defined L1 keys/labels for the "custom"
// framework, which ships with no bundled L1 scaffold.
type CustomSpec struct {
	L1 []domain.L1Template
}

var l2Tmpl = prompt.MustLoad("l2.tmpl")
var l3Tmpl = prompt.MustLoad("l3.tmpl")

type l2Candidate struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Question string `json:"question"`
}

type l3Candidate struct {
	Label              string `json:"label"`
	Question           string `json:"question"`
	MetricType         string `json:"metric_type"`
	Target             string `json:"target"`
	DataSource         string `json:"data_source"`
	AssessmentCriteria string `json:"assessment_criteria"`
}

// Builder is the Tree Builder.
type Builder struct {
	gateway *llmgateway.Gateway
}

// New constructs a Builder backed by the given LLM Gateway.
func New(gateway *llmgateway.Gateway) *Builder {
	return &Builder{gateway: gateway}
}

// Build synthesizes a complete HypothesisTree. framework must have been
// resolved by the Framework Selector already. custom is only consulted
// when framework.IsCustom().
func (b *Builder) Build(ctx context.Context, problem string, framework domain.Framework, research ResearchContext, feedback *Feedback, custom *CustomSpec) (domain.HypothesisTree, error) {
	l1Templates := framework.L1Categories
	if framework.IsCustom() {
		if custom == nil || len(custom.L1) == 0 {
			return domain.HypothesisTree{}, errs.NewPipelineError("tree_builder", "custom framework requires caller-supplied l1 categories", nil)
		}
		l1Templates = custom.L1
	}

	mode := domain.GenerationTemplate
	if !research.empty() {
		mode = domain.GenerationLLMResearch
	} else {
		mode = domain.GenerationLLM
	}

	tree := domain.HypothesisTree{
		Problem:            problem,
		FrameworkUsed:      framework.Name,
		GenerationMode:     mode,
		ScoringRubric:      framework.ScoringRubric,
		DecisionThresholds: framework.DecisionThresholds,
		L1:                 make(map[string]domain.L1Node, len(l1Templates)),
	}

	priorFeedback := ""
	if feedback != nil {
		priorFeedback = prompt.RenderLines(feedback.Suggestions)
	} else {
		priorFeedback = "(none)"
	}

	for _, l1tmpl := range l1Templates {
		tree.L1Order = append(tree.L1Order, l1tmpl.Key)

		l1node := domain.L1Node{
			Key:      l1tmpl.Key,
			Label:    l1tmpl.Label,
			Question: l1tmpl.Question,
			L2:       make(map[string]domain.L2Node),
		}

		l2s, fallbacks := b.buildL2(ctx, problem, l1tmpl, research, priorFeedback)
		tree.Metadata.Fallbacks = append(tree.Metadata.Fallbacks, fallbacks...)

		for _, seed := range l2s {
			l1node.L2Order = append(l1node.L2Order, seed.key)

			leaves, l3fallback := b.buildL3(ctx, problem, l1tmpl, seed, research, priorFeedback)
			if l3fallback != nil {
				tree.Metadata.Fallbacks = append(tree.Metadata.Fallbacks, *l3fallback)
			}

			l1node.L2[seed.key] = domain.L2Node{
				Key:      seed.key,
				Label:    seed.label,
				Question: seed.question,
				L3:       leaves,
			}
		}

		tree.L1[l1tmpl.Key] = l1node
	}

	if len(tree.L1) == 0 {
		return tree, errs.NewPipelineError("tree_builder", "no L1 categories could be populated", nil)
	}

	return tree, nil
}

// l2Resolved is an L2 branch after generation or fallback, carrying
// enough to drive L3 generation.
type l2Resolved struct {
	key      string
	label    string
	question string
	seed     domain.L2Seed
}

func (b *Builder) buildL2(ctx context.Context, problem string, l1tmpl domain.L1Template, research ResearchContext, priorFeedback string) ([]l2Resolved, []domain.FallbackRecord) {
	seedLabels := make([]string, len(l1tmpl.L2Seeds))
	for i, s := range l1tmpl.L2Seeds {
		seedLabels[i] = s.Label
	}

	renderedPrompt := l2Tmpl.Render(map[string]string{
		"problem":             problem,
		"l1_label":            l1tmpl.Label,
		"l1_question":         l1tmpl.Question,
		"market_research":     orNone(research.MarketResearch),
		"competitor_research": orNone(research.CompetitorResearch),
		"prior_feedback":      priorFeedback,
		"seed_labels":         prompt.RenderLines(seedLabels),
	})

	candidates, err := llmgateway.CompleteJSON(ctx, b.gateway, renderedPrompt, validateL2Candidates)
	if err == nil && len(candidates) > 0 {
		out := make([]l2Resolved, len(candidates))
		for i, c := range candidates {
			out[i] = l2Resolved{key: c.Key, label: c.Label, question: c.Question}
		}
		return out, nil
	}

	log.Warn().Err(err).Str("l1", l1tmpl.Key).Msg("tree builder: falling back to seed l2 content")

	if len(l1tmpl.L2Seeds) == 0 {
		return nil, []domain.FallbackRecord{{
			L1Key:  l1tmpl.Key,
			Slot:   "l2",
			Reason: "llm gateway unavailable and no seed content to fall back to",
		}}
	}

	out := make([]l2Resolved, len(l1tmpl.L2Seeds))
	fallbacks := make([]domain.FallbackRecord, len(l1tmpl.L2Seeds))
	for i, seed := range l1tmpl.L2Seeds {
		out[i] = l2Resolved{key: seed.Key, label: seed.Label, question: seed.Question, seed: seed}
		fallbacks[i] = domain.FallbackRecord{
			L1Key:  l1tmpl.Key,
			L2Key:  seed.Key,
			Slot:   "l2",
			Reason: errorOrUnavailable(err),
		}
	}
	return out, fallbacks
}

func (b *Builder) buildL3(ctx context.Context, problem string, l1tmpl domain.L1Template, l2 l2Resolved, research ResearchContext, priorFeedback string) ([]domain.L3Leaf, *domain.FallbackRecord) {
	researchContext := strings.TrimSpace(research.MarketResearch + "\n" + research.CompetitorResearch)

	renderedPrompt := l3Tmpl.Render(map[string]string{
		"problem":          problem,
		"l1_label":         l1tmpl.Label,
		"l1_question":      l1tmpl.Question,
		"l2_label":         l2.label,
		"l2_question":      l2.question,
		"research_context": orNone(researchContext),
		"prior_feedback":   priorFeedback,
	})

	candidates, err := llmgateway.CompleteJSON(ctx, b.gateway, renderedPrompt, validateL3Candidates)
	if err == nil {
		leaves := make([]domain.L3Leaf, 0, len(candidates))
		for _, c := range candidates {
			leaves = append(leaves, domain.L3Leaf{
				Label:              c.Label,
				Question:           c.Question,
				MetricType:         domain.MetricType(c.MetricType),
				Target:             c.Target,
				DataSource:         c.DataSource,
				AssessmentCriteria: c.AssessmentCriteria,
			})
		}
		if len(leaves) >= 3 {
			return leaves, nil
		}
		err = fmt.Errorf("llm produced only %d usable leaves, need at least 3", len(leaves))
	}

	log.Warn().Err(err).Str("l1", l1tmpl.Key).Str("l2", l2.key).Msg("tree builder: falling back to seed l3 content")

	leaves := seedLeaves(l2.seed)
	return leaves, &domain.FallbackRecord{
		L1Key:  l1tmpl.Key,
		L2Key:  l2.key,
		Slot:   "l3",
		Reason: errorOrUnavailable(err),
	}
}

// seedLeaves turns a seed's suggested L3 labels into minimally complete
// leaves, since seed content is never allowed to appear verbatim beyond
// this degrade path. A branch's L2Node always needs at least 3 leaves, so
// a seed with fewer suggested labels (or none at all) is padded out with
// generic follow-up leaves rather than left short.
func seedLeaves(seed domain.L2Seed) []domain.L3Leaf {
	out := make([]domain.L3Leaf, 0, len(seed.SuggestedL3Labels))
	for _, label := range seed.SuggestedL3Labels {
		out = append(out, domain.L3Leaf{
			Label:              label,
			Question:           fmt.Sprintf("Does %s support this branch?", strings.ToLower(label)),
			MetricType:         domain.MetricQualitative,
			Target:             "directionally consistent with hypothesis",
			DataSource:         "existing internal reporting",
			AssessmentCriteria: "trend direction matches the hypothesis",
		})
	}
	for i := len(out); i < 3; i++ {
		out = append(out, domain.L3Leaf{
			Label:              fmt.Sprintf("Additional Evidence %d", i+1),
			Question:           "What additional evidence would resolve this branch?",
			MetricType:         domain.MetricQualitative,
			Target:             "qualitative consensus",
			DataSource:         "follow-up research",
			AssessmentCriteria: "stakeholders agree the branch is resolved",
		})
	}
	return out
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func errorOrUnavailable(err error) string {
	if err == nil {
		return "unavailable"
	}
	return err.Error()
}

var digitPattern = regexp.MustCompile(`[0-9]`)

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func containsDigit(s string) bool {
	return digitPattern.MatchString(s)
}

// validateL2Candidates is the LG schema for the L2 generation call:
// 2-5 objects with non-empty, content-rule-compliant fields.
func validateL2Candidates(raw json.RawMessage) ([]l2Candidate, error) {
	var candidates []l2Candidate
	if err := json.Unmarshal(raw, &candidates); err != nil {
		return nil, err
	}
	if len(candidates) < 2 || len(candidates) > 5 {
		return nil, fmt.Errorf("expected 2-5 l2 candidates, got %d", len(candidates))
	}
	seenKeys := make(map[string]bool, len(candidates))
	for i, c := range candidates {
		if c.Key == "" || c.Label == "" || c.Question == "" {
			return nil, fmt.Errorf("l2 candidate %d missing required field", i)
		}
		if seenKeys[c.Key] {
			return nil, fmt.Errorf("duplicate l2 key %q", c.Key)
		}
		seenKeys[c.Key] = true
		wc := wordCount(c.Label)
		if wc < 2 || wc > 4 {
			return nil, fmt.Errorf("l2 label %q has %d words, want 2-4", c.Label, wc)
		}
		if containsDigit(c.Label) {
			return nil, fmt.Errorf("l2 label %q contains a digit", c.Label)
		}
	}
	return candidates, nil
}

// validateL3Candidates is the LG schema for the L3 generation call:
// 3-7 objects obeying the leaf content rules.
func validateL3Candidates(raw json.RawMessage) ([]l3Candidate, error) {
	var candidates []l3Candidate
	if err := json.Unmarshal(raw, &candidates); err != nil {
		return nil, err
	}
	if len(candidates) < 3 || len(candidates) > 7 {
		return nil, fmt.Errorf("expected 3-7 l3 candidates, got %d", len(candidates))
	}

	valid := make([]l3Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Label == "" || c.Question == "" || c.MetricType == "" || c.Target == "" || c.DataSource == "" || c.AssessmentCriteria == "" {
			continue
		}
		switch domain.MetricType(c.MetricType) {
		case domain.MetricQuantitative, domain.MetricQualitative, domain.MetricBinary:
		default:
			continue
		}
		wc := wordCount(c.Label)
		if wc < 2 || wc > 4 || containsDigit(c.Label) {
			continue
		}
		if wordCount(c.Question) > 20 {
			continue
		}
		valid = append(valid, c)
	}
	if len(valid) < 3 {
		return nil, errors.New("fewer than 3 l3 candidates passed content rules")
	}
	return valid, nil
}
