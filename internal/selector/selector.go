// Package selector implements the Framework Selector (FS): maps a
// problem statement to a framework, honoring an explicit hint when
// given and falling back to trigger-phrase matching otherwise.
package selector

import (
	"github.com/kestrelhq/hypoengine/internal/domain"
	"github.com/kestrelhq/hypoengine/internal/domain/errs"
)

// catalog is the subset of *catalog.Catalog the selector depends on,
// narrowed to an interface so it can be tested without the embedded
// YAML bundle.
type catalog interface {
	Get(name string) (domain.Framework, bool)
	FindByTrigger(phrase string) (domain.Framework, bool)
}

// defaultFramework is used when no hint is given and no trigger phrase
// matches the problem statement.
const defaultFramework = "scale_decision"

// Selector picks a framework for a problem statement.
type Selector struct {
	catalog catalog
}

// New constructs a Selector backed by the given catalog.
func New(c catalog) *Selector {
	return &Selector{catalog: c}
}

// Select returns the framework for problem. If hint is non-empty it must
// name a known framework or FrameworkUnknownError is returned. Otherwise
// the catalog is scanned by trigger phrase, falling back to
// scale_decision when nothing matches.
func (s *Selector) Select(problem, hint string) (domain.Framework, error) {
	if hint != "" {
		fw, ok := s.catalog.Get(hint)
		if !ok {
			return domain.Framework{}, errs.NewFrameworkUnknownError(hint)
		}
		return fw, nil
	}

	if fw, ok := s.catalog.FindByTrigger(problem); ok {
		return fw, nil
	}

	fw, ok := s.catalog.Get(defaultFramework)
	if !ok {
		return domain.Framework{}, errs.NewConfigError("selector", "default framework scale_decision is missing from catalog", nil)
	}
	return fw, nil
}
