package matrixgen

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/kestrelhq/hypoengine/internal/domain"
)

// scoreScale is the 1-5 integer range the spec fixes for x/y scores; the
// quadrant threshold is the scale's midpoint.
const scoreScale = 5

func midpoint() float64 { return (1 + float64(scoreScale)) / 2 }

// quadrantFor maps an (x,y) score pair to a quadrant by thresholding each
// axis at the midpoint: >= midpoint is "high".
func quadrantFor(x, y int) domain.Quadrant {
	highX := float64(x) >= midpoint()
	highY := float64(y) >= midpoint()
	switch {
	case highY && !highX:
		return domain.Q1
	case highY && highX:
		return domain.Q2
	case !highY && !highX:
		return domain.Q3
	default:
		return domain.Q4
	}
}

// RecommendationRule is a compiled expr-lang condition over per-quadrant
// item counts, producing a recommendation line when it matches. Ordered
// rules are evaluated in sequence so the spec's fixed Q1->Q2->Q3
// sequencing (Q4 skipped) stays data, not a hardcoded branch chain.
type RecommendationRule struct {
	Condition string
	Line      string
}

var defaultRecommendationRules = []RecommendationRule{
	{Condition: `Counts["Q1"] > 0`, Line: "Start with the %d Q1 item(s) — highest value for the least effort."},
	{Condition: `Counts["Q2"] > 0`, Line: "Plan the %d Q2 item(s) deliberately; they justify sustained investment."},
	{Condition: `Counts["Q3"] > 0`, Line: "Revisit the %d Q3 item(s) opportunistically once Q1/Q2 work is underway."},
	{Condition: `Counts["Q4"] > 0`, Line: "The %d Q4 item(s) are lowest priority; consider dropping them."},
}

type ruleEngine struct {
	mu    sync.Mutex
	cache map[string]*vm.Program
}

func newRuleEngine() *ruleEngine { return &ruleEngine{cache: make(map[string]*vm.Program)} }

func (re *ruleEngine) eval(condition string, counts map[string]int) (bool, error) {
	re.mu.Lock()
	program, ok := re.cache[condition]
	re.mu.Unlock()

	if !ok {
		env := map[string]any{"Counts": map[string]int{}}
		compiled, err := expr.Compile(condition, expr.Env(env), expr.AsBool())
		if err != nil {
			return false, fmt.Errorf("matrixgen: compiling recommendation rule %q: %w", condition, err)
		}
		re.mu.Lock()
		re.cache[condition] = compiled
		re.mu.Unlock()
		program = compiled
	}

	result, err := expr.Run(program, map[string]any{"Counts": counts})
	if err != nil {
		return false, fmt.Errorf("matrixgen: running recommendation rule %q: %w", condition, err)
	}
	b, _ := result.(bool)
	return b, nil
}

// buildRecommendations derives the rule-based recommendation lines for a
// completed set of placements. Q4 never generates a "do this" framing;
// its rule reads as an explicit deprioritization note, matching the
// spec's "Q4 skipped" sequencing guidance.
func buildRecommendations(engine *ruleEngine, rules []RecommendationRule, placements map[domain.Quadrant][]string) ([]string, error) {
	counts := map[string]int{
		string(domain.Q1): len(placements[domain.Q1]),
		string(domain.Q2): len(placements[domain.Q2]),
		string(domain.Q3): len(placements[domain.Q3]),
		string(domain.Q4): len(placements[domain.Q4]),
	}

	var lines []string
	for _, rule := range rules {
		matched, err := engine.eval(rule.Condition, counts)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}
		// Extract the count referenced by this rule's quadrant from its
		// condition text's quadrant key for the %d substitution.
		for _, q := range domain.AllQuadrants {
			if strings.Contains(rule.Condition, string(q)) {
				lines = append(lines, fmt.Sprintf(rule.Line, counts[string(q)]))
				break
			}
		}
	}
	if len(lines) == 0 {
		lines = append(lines, "No items were placed; nothing to prioritize yet.")
	}
	return lines, nil
}
