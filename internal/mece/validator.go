// Package mece implements the MECE Validator (MV): a pure, side-effect-
// free structural and semantic check over a HypothesisTree. Tactical-
// language rules are expressed as compiled expr-lang programs rather than
// hardcoded switch statements (semantic-equivalence and gap rules are
// plain Go tables, overridable through options), the same
// idiom the teacher's ConditionEvaluator uses for conditional edges —
// repurposed here so the rule tables stay data, not code.
package mece

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/kestrelhq/hypoengine/internal/domain"
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "and": true, "or": true,
	"to": true, "in": true, "for": true, "on": true, "with": true, "by": true,
	"is": true, "are": true, "will": true, "does": true, "do": true,
}

// simple lemma rules: trailing suffixes stripped to align tokens like
// "costs"/"cost" or "risks"/"risk" for Jaccard comparison.
var lemmaSuffixes = []string{"ing", "ies", "es", "s"}

func lemma(token string) string {
	for _, suf := range lemmaSuffixes {
		if len(token) > len(suf)+2 && strings.HasSuffix(token, suf) {
			return strings.TrimSuffix(token, suf)
		}
	}
	return token
}

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

func tokenize(label string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(label), -1)
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if stopwords[t] {
			continue
		}
		out = append(out, lemma(t))
	}
	return out
}

func tokenSet(label string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range tokenize(label) {
		set[t] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection, union := 0, 0
	seen := make(map[string]bool, len(a)+len(b))
	for t := range a {
		seen[t] = true
		if b[t] {
			intersection++
		}
	}
	for t := range b {
		seen[t] = true
	}
	union = len(seen)
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// ruleEngine compiles and caches the expr-lang tactical-language rules,
// mirroring the teacher's ConditionEvaluator compiled-program cache.
type ruleEngine struct {
	mu    sync.Mutex
	cache map[string]*vm.Program
}

func newRuleEngine() *ruleEngine {
	return &ruleEngine{cache: make(map[string]*vm.Program)}
}

func (re *ruleEngine) matches(rule TacticalRule, tokens []string) (bool, error) {
	re.mu.Lock()
	program, ok := re.cache[rule.Expression]
	re.mu.Unlock()

	if !ok {
		env := map[string]any{"Tokens": []string{}}
		compiled, err := expr.Compile(rule.Expression, expr.Env(env), expr.AsBool())
		if err != nil {
			return false, fmt.Errorf("mece: compiling tactical rule %q: %w", rule.Expression, err)
		}
		re.mu.Lock()
		re.cache[rule.Expression] = compiled
		re.mu.Unlock()
		program = compiled
	}

	result, err := expr.Run(program, map[string]any{"Tokens": tokens})
	if err != nil {
		return false, fmt.Errorf("mece: running tactical rule %q: %w", rule.Expression, err)
	}
	b, _ := result.(bool)
	return b, nil
}

// Validator is the MECE Validator.
type Validator struct {
	gapRules      []GapRule
	synonymPairs  []SynonymPair
	tacticalRules []TacticalRule
	overlapThresh float64
	engine        *ruleEngine
}

// Option configures a Validator at construction.
type Option func(*Validator)

// WithGapRules overrides the bundled gap registry.
func WithGapRules(rules []GapRule) Option { return func(v *Validator) { v.gapRules = rules } }

// WithSynonymPairs overrides the bundled semantic-equivalence table.
func WithSynonymPairs(pairs []SynonymPair) Option {
	return func(v *Validator) { v.synonymPairs = pairs }
}

// WithTacticalRules overrides the bundled tactical-language rules.
func WithTacticalRules(rules []TacticalRule) Option {
	return func(v *Validator) { v.tacticalRules = rules }
}

// WithOverlapThreshold overrides the Jaccard similarity threshold for
// flagging an overlap (default 0.5).
func WithOverlapThreshold(t float64) Option {
	return func(v *Validator) { v.overlapThresh = t }
}

// New constructs a Validator with the bundled default rule tables.
func New(opts ...Option) *Validator {
	v := &Validator{
		gapRules:      DefaultGapRules,
		synonymPairs:  DefaultSynonymPairs,
		tacticalRules: DefaultTacticalRules,
		overlapThresh: 0.5,
		engine:        newRuleEngine(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs every MECE check over tree and returns the structured
// report. Validate is pure and side-effect-free: identical input always
// produces an identical report.
func (v *Validator) Validate(tree domain.HypothesisTree) (domain.ValidationReport, error) {
	report := domain.ValidationReport{}

	overlaps, err := v.checkOverlaps(tree)
	if err != nil {
		return report, err
	}
	report.Overlaps = overlaps

	report.Gaps = v.checkGaps(tree)

	levelIssues, err := v.checkLevelInconsistencies(tree)
	if err != nil {
		return report, err
	}
	levelIssues = append(levelIssues, v.checkLeafCompleteness(tree)...)
	report.LevelIssues = levelIssues

	report.IsMECE = report.HardIssueCount() == 0
	report.Suggestions = v.buildSuggestions(report)

	return report, nil
}

func (v *Validator) semanticallyEquivalent(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	for _, pair := range v.synonymPairs {
		if (strings.Contains(la, pair.A) && strings.Contains(lb, pair.B)) ||
			(strings.Contains(la, pair.B) && strings.Contains(lb, pair.A)) {
			return true
		}
	}
	return false
}

// checkOverlaps compares every sibling pair at L1 and at each L2 group for
// token-set Jaccard similarity or curated semantic equivalence.
func (v *Validator) checkOverlaps(tree domain.HypothesisTree) ([]domain.Issue, error) {
	var issues []domain.Issue

	l1Labels := make([]string, 0, len(tree.L1Order))
	for _, l1 := range tree.OrderedL1() {
		l1Labels = append(l1Labels, l1.Label)
	}
	issues = append(issues, v.pairwiseOverlaps("", l1Labels)...)

	for _, l1 := range tree.OrderedL1() {
		l2Labels := make([]string, 0, len(l1.L2Order))
		for _, l2 := range l1.OrderedL2() {
			l2Labels = append(l2Labels, l2.Label)
		}
		issues = append(issues, v.pairwiseOverlaps(l1.Key, l2Labels)...)
	}

	return issues, nil
}

func (v *Validator) pairwiseOverlaps(l1Key string, labels []string) []domain.Issue {
	var issues []domain.Issue
	sets := make([]map[string]bool, len(labels))
	for i, l := range labels {
		sets[i] = tokenSet(l)
	}
	for i := 0; i < len(labels); i++ {
		for j := i + 1; j < len(labels); j++ {
			score := jaccard(sets[i], sets[j])
			semantic := v.semanticallyEquivalent(labels[i], labels[j])
			if score >= v.overlapThresh || semantic {
				issues = append(issues, domain.Issue{
					Kind:     "overlap",
					Severity: domain.SeverityHard,
					L1Key:    l1Key,
					Subjects: []string{labels[i], labels[j]},
					Detail:   fmt.Sprintf("%q and %q overlap (jaccard=%.2f, semantic=%v)", labels[i], labels[j], score, semantic),
				})
			}
		}
	}
	return issues
}

// checkGaps reports expected L1 keys implied by problem-domain keywords
// found in tree.Problem but absent from the tree's L1 set. Gaps are soft
// and never fail is_mece.
func (v *Validator) checkGaps(tree domain.HypothesisTree) []domain.Issue {
	var issues []domain.Issue
	lowerProblem := strings.ToLower(tree.Problem)
	present := make(map[string]bool, len(tree.L1))
	for key := range tree.L1 {
		present[key] = true
	}

	seen := make(map[string]bool)
	for _, rule := range v.gapRules {
		if !strings.Contains(lowerProblem, rule.Keyword) {
			continue
		}
		if present[rule.ExpectedL1Key] {
			continue
		}
		if seen[rule.ExpectedL1Key] {
			continue
		}
		seen[rule.ExpectedL1Key] = true
		issues = append(issues, domain.Issue{
			Kind:     "gap",
			Severity: domain.SeveritySoft,
			Subjects: []string{rule.ExpectedL1Key},
			Detail:   rule.Detail,
		})
	}
	return issues
}

// checkLevelInconsistencies flags tactical-language tokens appearing in
// L1 labels, where strategic framing is expected.
func (v *Validator) checkLevelInconsistencies(tree domain.HypothesisTree) ([]domain.Issue, error) {
	var issues []domain.Issue
	for _, l1 := range tree.OrderedL1() {
		tokens := tokenize(l1.Label)
		for _, rule := range v.tacticalRules {
			matched, err := v.engine.matches(rule, tokens)
			if err != nil {
				return nil, err
			}
			if matched {
				issues = append(issues, domain.Issue{
					Kind:     "level_inconsistency",
					Severity: domain.SeverityHard,
					L1Key:    l1.Key,
					Subjects: []string{l1.Label},
					Detail:   fmt.Sprintf("label %q reads as tactical, not strategic, for a top-level category", l1.Label),
				})
			}
		}
	}
	return issues, nil
}

// checkLeafCompleteness flags any L3 leaf missing a required field.
func (v *Validator) checkLeafCompleteness(tree domain.HypothesisTree) []domain.Issue {
	var issues []domain.Issue
	for _, l1 := range tree.OrderedL1() {
		for _, l2 := range l1.OrderedL2() {
			for _, leaf := range l2.L3 {
				if leaf.Complete() {
					continue
				}
				issues = append(issues, domain.Issue{
					Kind:     "leaf_incomplete",
					Severity: domain.SeverityHard,
					L1Key:    l1.Key,
					L2Key:    l2.Key,
					Subjects: []string{leaf.Label},
					Detail:   fmt.Sprintf("leaf %q is missing one or more required fields", leaf.Label),
				})
			}
		}
	}
	return issues
}

func (v *Validator) buildSuggestions(report domain.ValidationReport) []string {
	var suggestions []string
	for _, issue := range report.Overlaps {
		suggestions = append(suggestions, fmt.Sprintf("merge or differentiate %v", issue.Subjects))
	}
	for _, issue := range report.LevelIssues {
		switch issue.Kind {
		case "level_inconsistency":
			suggestions = append(suggestions, fmt.Sprintf("reframe %q at a strategic rather than tactical level", issue.Subjects[0]))
		case "leaf_incomplete":
			suggestions = append(suggestions, fmt.Sprintf("complete the missing fields for leaf %q", issue.Subjects[0]))
		}
	}
	for _, issue := range report.Gaps {
		suggestions = append(suggestions, fmt.Sprintf("consider adding a branch addressing %q: %s", issue.Subjects[0], issue.Detail))
	}
	return suggestions
}
