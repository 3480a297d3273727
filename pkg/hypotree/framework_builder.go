package hypotree

import (
	"fmt"

	"github.com/kestrelhq/hypoengine/internal/domain"
	"github.com/kestrelhq/hypoengine/internal/treebuilder"
)

// FrameworkBuilder assembles a caller-defined L1 scaffold for the
// "custom" framework path, mirroring MatrixBuilder's fluent-chain shape
// over a plain domain type rather than introducing a parallel DSL.
type FrameworkBuilder struct {
	l1   []domain.L1Template
	keys map[string]bool
	err  error
}

// NewFrameworkBuilder starts an empty custom-framework chain.
func NewFrameworkBuilder() *FrameworkBuilder {
	return &FrameworkBuilder{keys: make(map[string]bool)}
}

// AddL1 appends one top-level category. key must be unique within the
// chain; seedLabels seeds the L2 branch the Tree Builder falls back to
// if an LLM call for this category never produces usable content.
func (b *FrameworkBuilder) AddL1(key, label, question string, seedLabels ...string) *FrameworkBuilder {
	if b.err != nil {
		return b
	}
	if key == "" || label == "" {
		b.err = fmt.Errorf("hypotree: custom L1 category requires both key and label")
		return b
	}
	if b.keys[key] {
		b.err = fmt.Errorf("hypotree: duplicate custom L1 key %q", key)
		return b
	}
	b.keys[key] = true

	seed := domain.L2Seed{Key: key + "_default", Label: label, Question: question, SuggestedL3Labels: seedLabels}
	b.l1 = append(b.l1, domain.L1Template{Key: key, Label: label, Question: question, L2Seeds: []domain.L2Seed{seed}})
	return b
}

// Build finalizes the chain into a CustomSpec for treebuilder.Build,
// enforcing the spec's minimum-two-L1-category invariant.
func (b *FrameworkBuilder) Build() (treebuilder.CustomSpec, error) {
	if b.err != nil {
		return treebuilder.CustomSpec{}, b.err
	}
	if len(b.l1) < 2 {
		return treebuilder.CustomSpec{}, fmt.Errorf("hypotree: custom framework needs at least 2 L1 categories, got %d", len(b.l1))
	}
	return treebuilder.CustomSpec{L1: b.l1}, nil
}
