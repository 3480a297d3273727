// Package catalog implements the Framework Catalog (FC): a read-only
// registry of strategic decomposition templates loaded once at startup
// from a bundled YAML document, the same go:embed-plus-yaml.v3 idiom the
// teacher uses for its workflow template bundles.
package catalog

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kestrelhq/hypoengine/internal/domain"
	"github.com/kestrelhq/hypoengine/internal/domain/errs"
)

//go:embed data/frameworks.yaml
var bundledFS embed.FS

// rawDocument mirrors the bundled file's shape exactly, so unmarshal
// failures point at the right YAML path.
type rawDocument struct {
	Frameworks map[string]rawFramework `yaml:"frameworks"`
}

type rawFramework struct {
	DisplayName        string                   `yaml:"display_name"`
	Description        string                   `yaml:"description"`
	TriggerPhrases     []string                 `yaml:"trigger_phrases"`
	L1Categories       map[string]rawL1Category `yaml:"l1_categories"`
	L1Order            []string                 `yaml:"l1_order"`
	ScoringRubric      map[string]string        `yaml:"scoring_rubric"`
	DecisionThresholds map[string]float64       `yaml:"decision_thresholds"`
}

type rawL1Category struct {
	Label       string                 `yaml:"label"`
	Question    string                 `yaml:"question"`
	Description string                 `yaml:"description"`
	L2Branches  map[string]rawL2Branch `yaml:"l2_branches"`
	L2Order     []string               `yaml:"l2_order"`
}

type rawL2Branch struct {
	Label       string   `yaml:"label"`
	Question    string   `yaml:"question"`
	SuggestedL3 []string `yaml:"suggested_l3"`
}

// Catalog is the loaded, validated, read-only framework registry.
type Catalog struct {
	order      []string
	frameworks map[string]domain.Framework
}

// Load parses and validates the bundled framework document. Any
// structural violation (missing top-level mapping, empty l1_categories
// on a non-custom framework, duplicate names) surfaces as a ConfigError,
// fatal at startup per the design.
func Load() (*Catalog, error) {
	raw, err := bundledFS.ReadFile("data/frameworks.yaml")
	if err != nil {
		return nil, errs.NewConfigError("catalog", "reading bundled frameworks.yaml", err)
	}
	return parse(raw)
}

func parse(raw []byte) (*Catalog, error) {
	var doc rawDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errs.NewConfigError("catalog", "parsing frameworks.yaml", err)
	}
	if doc.Frameworks == nil {
		return nil, errs.NewConfigError("catalog", "top-level 'frameworks' mapping is required", nil)
	}

	c := &Catalog{frameworks: make(map[string]domain.Framework, len(doc.Frameworks))}

	// YAML mapping order isn't preserved by map[string]T; the bundled
	// document also carries an explicit load_order list so insertion
	// order for find_by_trigger scanning is deterministic.
	order, err := loadOrder(raw, doc.Frameworks)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(order))
	for _, name := range order {
		if seen[name] {
			return nil, errs.NewConfigError("catalog", fmt.Sprintf("duplicate framework name %q", name), nil)
		}
		seen[name] = true

		rf, ok := doc.Frameworks[name]
		if !ok {
			return nil, errs.NewConfigError("catalog", fmt.Sprintf("load_order names unknown framework %q", name), nil)
		}

		fw, err := buildFramework(name, rf)
		if err != nil {
			return nil, err
		}
		c.frameworks[name] = fw
		c.order = append(c.order, name)
	}

	return c, nil
}

// loadOrderDoc captures just the ordering hint without re-parsing the
// whole document twice through reflection.
type loadOrderDoc struct {
	LoadOrder []string `yaml:"load_order"`
}

func loadOrder(raw []byte, frameworks map[string]rawFramework) ([]string, error) {
	var hint loadOrderDoc
	if err := yaml.Unmarshal(raw, &hint); err != nil {
		return nil, errs.NewConfigError("catalog", "parsing load_order", err)
	}
	if len(hint.LoadOrder) > 0 {
		return hint.LoadOrder, nil
	}
	// Fall back to an arbitrary-but-stable order if the bundle omits the
	// hint (custom/user-authored bundles aren't required to supply it).
	names := make([]string, 0, len(frameworks))
	for name := range frameworks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func buildFramework(name string, rf rawFramework) (domain.Framework, error) {
	fw := domain.Framework{
		Name:               name,
		DisplayName:        rf.DisplayName,
		Description:        rf.Description,
		TriggerPhrases:     rf.TriggerPhrases,
		ScoringRubric:      toAnyMap(rf.ScoringRubric),
		DecisionThresholds: toAnyMapFloat(rf.DecisionThresholds),
	}

	if name != "custom" && len(rf.L1Categories) == 0 {
		return fw, errs.NewConfigError("catalog", fmt.Sprintf("framework %q must declare l1_categories", name), nil)
	}

	l1Order := rf.L1Order
	if len(l1Order) == 0 {
		for key := range rf.L1Categories {
			l1Order = append(l1Order, key)
		}
	}

	seenL1 := make(map[string]bool, len(l1Order))
	for _, key := range l1Order {
		if seenL1[key] {
			return fw, errs.NewConfigError("catalog", fmt.Sprintf("framework %q has duplicate l1 key %q", name, key), nil)
		}
		seenL1[key] = true

		rc, ok := rf.L1Categories[key]
		if !ok {
			return fw, errs.NewConfigError("catalog", fmt.Sprintf("framework %q l1_order names unknown key %q", name, key), nil)
		}

		l2Order := rc.L2Order
		if len(l2Order) == 0 {
			for k := range rc.L2Branches {
				l2Order = append(l2Order, k)
			}
		}

		var seeds []domain.L2Seed
		for _, l2key := range l2Order {
			rb, ok := rc.L2Branches[l2key]
			if !ok {
				continue
			}
			seeds = append(seeds, domain.L2Seed{
				Key:               l2key,
				Label:             rb.Label,
				Question:          rb.Question,
				SuggestedL3Labels: rb.SuggestedL3,
			})
		}

		fw.L1Categories = append(fw.L1Categories, domain.L1Template{
			Key:         key,
			Label:       rc.Label,
			Question:    rc.Question,
			Description: rc.Description,
			L2Seeds:     seeds,
		})
	}

	return fw, nil
}

func toAnyMap(m map[string]string) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func toAnyMapFloat(m map[string]float64) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ListFrameworks returns every loaded framework name in catalog insertion
// order.
func (c *Catalog) ListFrameworks() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Get returns the named framework, or false if it does not exist.
func (c *Catalog) Get(name string) (domain.Framework, bool) {
	fw, ok := c.frameworks[name]
	return fw, ok
}

// FindByTrigger scans trigger phrases across all frameworks, in catalog
// insertion order, for a case-insensitive substring match against
// phrase. Returns the first match.
func (c *Catalog) FindByTrigger(phrase string) (domain.Framework, bool) {
	lower := strings.ToLower(phrase)
	for _, name := range c.order {
		fw := c.frameworks[name]
		for _, trigger := range fw.TriggerPhrases {
			if trigger == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(trigger)) {
				return fw, true
			}
		}
	}
	return domain.Framework{}, false
}

// DescribeAll returns a name → description map across the catalog.
func (c *Catalog) DescribeAll() map[string]string {
	out := make(map[string]string, len(c.frameworks))
	for name, fw := range c.frameworks {
		out[name] = fw.Description
	}
	return out
}

// ListFrameworkFields returns the display name and L1 category labels for
// a framework, a convenience for reading a framework preview without
// reaching into domain.Framework directly.
func ListFrameworkFields(fw domain.Framework) (displayName string, l1Labels []string) {
	labels := make([]string, len(fw.L1Categories))
	for i, l1 := range fw.L1Categories {
		labels[i] = l1.Label
	}
	return fw.DisplayName, labels
}
