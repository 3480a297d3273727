// Package hypotree exposes fluent builders over the engine's public
// domain types, in the same vein as the teacher's pkg/workflow
// DefinitionBuilder — a thin construction/editing convenience layered
// over plain structs, not a second source of truth for their shape.
package hypotree

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kestrelhq/hypoengine/internal/domain"
	"github.com/kestrelhq/hypoengine/internal/domain/errs"
)

// ItemRegenerator regenerates a single matrix item's scores via the LLM
// Gateway. Implemented by internal/matrixgen; exposed here as a narrow
// interface so MatrixBuilder doesn't depend on matrixgen's concrete type.
type ItemRegenerator interface {
	RegenerateItem(ctx context.Context, problem string, tree domain.HypothesisTree, matrix domain.Matrix, itemID string) (domain.MatrixItem, error)
}

// MatrixBuilder edits a Matrix through a fluent chain, producing a new
// Matrix value at Build() without mutating the source. Each edit method
// mirrors one of the spec's boundary operations (add_item, delete_item,
// edit_item, move_item); PS persists the result as a new version.
type MatrixBuilder struct {
	matrix domain.Matrix
	err    error
}

// FromMatrix starts a builder chain from an existing matrix, cloning it
// so the source is never mutated.
func FromMatrix(m domain.Matrix) *MatrixBuilder {
	return &MatrixBuilder{matrix: m.Clone()}
}

// AddItem places a new item with the given label and scores, assigning
// it a fresh id and the quadrant implied by its scores.
func (b *MatrixBuilder) AddItem(label string, xScore, yScore int, rationale string) *MatrixBuilder {
	if b.err != nil {
		return b
	}
	id := uuid.NewString()
	b.matrix.Items[id] = domain.MatrixItem{ID: id, Label: label, XScore: xScore, YScore: yScore, Rationale: rationale}
	q := quadrantFor(xScore, yScore)
	b.matrix.Placements[q] = append(b.matrix.Placements[q], id)
	return b
}

// DeleteItem removes an item by id from both Items and its placement
// list.
func (b *MatrixBuilder) DeleteItem(itemID string) *MatrixBuilder {
	if b.err != nil {
		return b
	}
	if _, ok := b.matrix.Items[itemID]; !ok {
		b.err = errs.NewNotFound("matrix_item", itemID)
		return b
	}
	delete(b.matrix.Items, itemID)
	for q, ids := range b.matrix.Placements {
		b.matrix.Placements[q] = removeID(ids, itemID)
	}
	return b
}

// EditItem updates an existing item's label/scores/rationale in place,
// re-deriving its quadrant placement from the new scores.
func (b *MatrixBuilder) EditItem(itemID string, label string, xScore, yScore int, rationale string) *MatrixBuilder {
	if b.err != nil {
		return b
	}
	item, ok := b.matrix.Items[itemID]
	if !ok {
		b.err = errs.NewNotFound("matrix_item", itemID)
		return b
	}
	for q, ids := range b.matrix.Placements {
		b.matrix.Placements[q] = removeID(ids, itemID)
	}
	item.Label, item.XScore, item.YScore, item.Rationale = label, xScore, yScore, rationale
	b.matrix.Items[itemID] = item
	q := quadrantFor(xScore, yScore)
	b.matrix.Placements[q] = append(b.matrix.Placements[q], itemID)
	return b
}

// MoveItem relocates an item directly from one quadrant to another
// without changing its scores, for callers that want to override the
// threshold-derived placement by hand.
func (b *MatrixBuilder) MoveItem(itemID string, from, to domain.Quadrant) *MatrixBuilder {
	if b.err != nil {
		return b
	}
	if _, ok := b.matrix.Items[itemID]; !ok {
		b.err = errs.NewNotFound("matrix_item", itemID)
		return b
	}
	ids := b.matrix.Placements[from]
	idx := indexOfID(ids, itemID)
	if idx < 0 {
		b.err = fmt.Errorf("hypotree: item %s is not currently placed in %s", itemID, from)
		return b
	}
	b.matrix.Placements[from] = append(ids[:idx], ids[idx+1:]...)
	b.matrix.Placements[to] = append(b.matrix.Placements[to], itemID)
	return b
}

// RegenerateItem asks reg to re-derive an item's scores via the LLM
// Gateway and applies the result. Optional: callers that only need
// deterministic edits never need to call this.
func (b *MatrixBuilder) RegenerateItem(ctx context.Context, reg ItemRegenerator, problem string, tree domain.HypothesisTree, itemID string) *MatrixBuilder {
	if b.err != nil {
		return b
	}
	updated, err := reg.RegenerateItem(ctx, problem, tree, b.matrix, itemID)
	if err != nil {
		b.err = err
		return b
	}
	return b.EditItem(itemID, updated.Label, updated.XScore, updated.YScore, updated.Rationale)
}

// Build finalizes the chain, returning the edited matrix or the first
// error encountered.
func (b *MatrixBuilder) Build() (domain.Matrix, error) {
	if b.err != nil {
		return domain.Matrix{}, b.err
	}
	return b.matrix, nil
}

func removeID(ids []string, target string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func indexOfID(ids []string, target string) int {
	for i, id := range ids {
		if id == target {
			return i
		}
	}
	return -1
}

// quadrantFor mirrors matrixgen's threshold logic without importing it
// (matrixgen depends on nothing in pkg/hypotree, keeping the dependency
// direction one-way); both implementations are grounded on the same
// spec §4.9 thresholding rule.
func quadrantFor(x, y int) domain.Quadrant {
	const scale = 5
	mid := (1 + float64(scale)) / 2
	highX := float64(x) >= mid
	highY := float64(y) >= mid
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
