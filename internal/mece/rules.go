package mece

// GapRule maps a keyword expected to appear in a problem statement to the
// L1 key a well-formed tree addressing that domain should declare. The
// table is intentionally small and overridable rather than exhaustive —
// it backstops obvious domain gaps, not a full taxonomy.
type GapRule struct {
	Keyword       string
	ExpectedL1Key string
	Detail        string
}

// DefaultGapRules is the bundled gap registry. Callers may override it
// wholesale via WithGapRules for domain-specific deployments.
var DefaultGapRules = []GapRule{
	{Keyword: "healthcare", ExpectedL1Key: "regulatory_climate", Detail: "healthcare problems typically need a regulatory/compliance branch"},
	{Keyword: "hospital", ExpectedL1Key: "regulatory_climate", Detail: "healthcare problems typically need a regulatory/compliance branch"},
	{Keyword: "clinical", ExpectedL1Key: "regulatory_climate", Detail: "clinical problems typically need a regulatory/compliance branch"},
	{Keyword: "bank", ExpectedL1Key: "compliance_exposure", Detail: "financial services problems typically need a compliance branch"},
	{Keyword: "finance", ExpectedL1Key: "financial_viability", Detail: "financial decisions typically need a financial viability branch"},
	{Keyword: "international", ExpectedL1Key: "regulatory_climate", Detail: "cross-border problems typically need a regulatory branch"},
	{Keyword: "global", ExpectedL1Key: "regulatory_climate", Detail: "cross-border problems typically need a regulatory branch"},
}

// SynonymPair is a curated semantically-equivalent keyword pair: if one
// sibling label contains the first term and another contains the
// second, the pair counts as a semantic overlap even when token Jaccard
// similarity is below threshold.
type SynonymPair struct {
	A string
	B string
}

// DefaultSynonymPairs is the bundled semantic-equivalence table.
// Overridable via WithSynonymPairs.
var DefaultSynonymPairs = []SynonymPair{
	{A: "cost", B: "financial"},
	{A: "cost", B: "expense"},
	{A: "risk", B: "safety"},
	{A: "risk", B: "hazard"},
	{A: "demand", B: "market"},
	{A: "price", B: "pricing"},
	{A: "staff", B: "personnel"},
	{A: "staff", B: "workforce"},
}

// TacticalRule is a compiled expr-lang expression evaluated against a
// label's lowercase token set; a match flags tactical language appearing
// at a strategic (L1) position.
type TacticalRule struct {
	// Expression is an expr-lang boolean expression over the variable
	// `Tokens []string`, e.g. `any(Tokens, {# in ["implement","deploy"]})`.
	Expression string
}

// DefaultTacticalRules is the bundled tactical-language detector,
// flagging execution verbs that shouldn't appear at L1 (category)
// positions, which are meant to stay at the level of strategic framing.
var DefaultTacticalRules = []TacticalRule{
	{Expression: `any(Tokens, {# in ["implement","deploy","execute","install","configure","rollout","build","code","provision"]})`},
}
