package domain

// GenerationMode records how a HypothesisTree's lower levels were produced.
type GenerationMode string

const (
	GenerationTemplate    GenerationMode = "template"
	GenerationLLM         GenerationMode = "llm"
	GenerationLLMResearch GenerationMode = "llm+research"
)

// MetricType classifies how an L3Leaf's target is assessed.
type MetricType string

const (
	MetricQuantitative MetricType = "quantitative"
	MetricQualitative  MetricType = "qualitative"
	MetricBinary       MetricType = "binary"
)

// HypothesisTree is the three-level MECE decomposition produced by the
// Tree Builder and iterated on by the Refinement Loop. Trees are immutable
// once returned to a caller; each refinement iteration produces a fresh
// instance rather than mutating a prior one.
type HypothesisTree struct {
	Problem            string            `json:"problem"`
	FrameworkUsed      string            `json:"framework_used"`
	GenerationMode     GenerationMode    `json:"generation_mode"`
	L1Order            []string          `json:"l1_order"`
	L1                 map[string]L1Node `json:"l1"`
	ScoringRubric      map[string]any    `json:"scoring_rubric"`
	DecisionThresholds map[string]any    `json:"decision_thresholds"`
	Metadata           TreeMetadata      `json:"metadata"`
}

// TreeMetadata carries build-time bookkeeping that isn't part of the
// strategic content itself.
type TreeMetadata struct {
	Fallbacks []FallbackRecord `json:"fallbacks,omitempty"`
	Iteration int              `json:"iteration"`
}

// FallbackRecord notes that a single L2 or L3 slot fell back to seed
// content because the LLM Gateway could not produce a usable result.
type FallbackRecord struct {
	L1Key  string `json:"l1_key"`
	L2Key  string `json:"l2_key,omitempty"`
	Slot   string `json:"slot"` // "l2" or "l3"
	Reason string `json:"reason"`
}

// OrderedL1 returns the tree's L1 nodes in declared order.
func (t HypothesisTree) OrderedL1() []L1Node {
	out := make([]L1Node, 0, len(t.L1Order))
	for _, key := range t.L1Order {
		if node, ok := t.L1[key]; ok {
			out = append(out, node)
		}
	}
	return out
}

// AllL3Labels returns every L3 leaf label in DFS order (L1, then L2, then
// L3), used directly by the hypothesis_prioritization matrix.
func (t HypothesisTree) AllL3Labels() []string {
	var labels []string
	for _, l1 := range t.OrderedL1() {
		for _, l2 := range l1.OrderedL2() {
			for _, leaf := range l2.L3 {
				labels = append(labels, leaf.Label)
			}
		}
	}
	return labels
}

// L1Node is a top-level strategic category populated with L2 branches.
type L1Node struct {
	Key      string            `json:"key"`
	Label    string            `json:"label"`
	Question string            `json:"question"`
	L2Order  []string          `json:"l2_order"`
	L2       map[string]L2Node `json:"l2"`
}

// OrderedL2 returns this node's L2 children in declared order.
func (n L1Node) OrderedL2() []L2Node {
	out := make([]L2Node, 0, len(n.L2Order))
	for _, key := range n.L2Order {
		if node, ok := n.L2[key]; ok {
			out = append(out, node)
		}
	}
	return out
}

// L2Node is a branch under an L1 category, holding 3-7 L3 leaves.
type L2Node struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Question string    `json:"question"`
	L3       []L3Leaf  `json:"l3"`
}

// L3Leaf is a testable hypothesis leaf. It has no identity beyond its
// position in the tree.
type L3Leaf struct {
	Label              string     `json:"label"`
	Question           string     `json:"question"`
	MetricType         MetricType `json:"metric_type"`
	Target             string     `json:"target"`
	DataSource         string     `json:"data_source"`
	AssessmentCriteria string     `json:"assessment_criteria"`
}

// Complete reports whether every field required by the spec's leaf
// completeness invariant is populated.
func (l L3Leaf) Complete() bool {
	return l.Label != "" && l.Question != "" && l.MetricType != "" &&
		l.Target != "" && l.DataSource != "" && l.AssessmentCriteria != ""
}
