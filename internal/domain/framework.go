package domain

// Framework is a named strategic decomposition template: a fixed L1
// scaffold plus seed content for the lower levels. Immutable after load.
type Framework struct {
	Name               string         `yaml:"name" json:"name"`
	DisplayName        string         `yaml:"display_name" json:"display_name"`
	Description        string         `yaml:"description" json:"description"`
	TriggerPhrases     []string       `yaml:"trigger_phrases" json:"trigger_phrases"`
	L1Categories       []L1Template   `yaml:"l1_categories" json:"l1_categories"`
	ScoringRubric      map[string]any `yaml:"scoring_rubric" json:"scoring_rubric"`
	DecisionThresholds map[string]any `yaml:"decision_thresholds" json:"decision_thresholds"`
}

// IsCustom reports whether this is the caller-supplied-L1-keys framework.
func (f Framework) IsCustom() bool { return f.Name == "custom" }

// L1Key returns the ordered list of L1 keys declared by this framework.
func (f Framework) L1Key() []string {
	keys := make([]string, 0, len(f.L1Categories))
	for _, l1 := range f.L1Categories {
		keys = append(keys, l1.Key)
	}
	return keys
}

// FindL1 returns the L1Template with the given key, if present.
func (f Framework) FindL1(key string) (L1Template, bool) {
	for _, l1 := range f.L1Categories {
		if l1.Key == key {
			return l1, true
		}
	}
	return L1Template{}, false
}

// L1Template is a static top-level category skeleton within a framework.
type L1Template struct {
	Key         string   `yaml:"key" json:"key"`
	Label       string   `yaml:"label" json:"label"`
	Question    string   `yaml:"question" json:"question"`
	Description string   `yaml:"description" json:"description"`
	L2Seeds     []L2Seed `yaml:"l2_seeds" json:"l2_seeds"`
}

// L2Seed is fallback / prompt-seed content for an L2 branch. It never
// appears verbatim in a validated output; it only guides generation and
// backstops failed LLM calls.
type L2Seed struct {
	Key               string   `yaml:"key" json:"key"`
	Label             string   `yaml:"label" json:"label"`
	Question          string   `yaml:"question" json:"question"`
	SuggestedL3Labels []string `yaml:"suggested_l3_labels" json:"suggested_l3_labels"`
}
