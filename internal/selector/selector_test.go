package selector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/hypoengine/internal/domain"
)

type fakeCatalog struct {
	byName    map[string]domain.Framework
	byTrigger map[string]domain.Framework
}

func (f fakeCatalog) Get(name string) (domain.Framework, bool) {
	fw, ok := f.byName[name]
	return fw, ok
}

func (f fakeCatalog) FindByTrigger(phrase string) (domain.Framework, bool) {
	for trigger, fw := range f.byTrigger {
		if trigger != "" && strings.Contains(strings.ToLower(phrase), strings.ToLower(trigger)) {
			return fw, true
		}
	}
	return domain.Framework{}, false
}

func newFakeCatalog() fakeCatalog {
	scale := domain.Framework{Name: "scale_decision"}
	marketEntry := domain.Framework{Name: "market_entry"}
	return fakeCatalog{
		byName:    map[string]domain.Framework{"scale_decision": scale, "market_entry": marketEntry},
		byTrigger: map[string]domain.Framework{"enter the market": marketEntry},
	}
}

func TestSelect_ExplicitHint(t *testing.T) {
	s := New(newFakeCatalog())
	fw, err := s.Select("should we launch this", "market_entry")
	require.NoError(t, err)
	assert.Equal(t, "market_entry", fw.Name)
}

func TestSelect_UnknownHint(t *testing.T) {
	s := New(newFakeCatalog())
	_, err := s.Select("anything", "not_a_real_framework")
	assert.Error(t, err)
}

func TestSelect_TriggerPhraseMatch(t *testing.T) {
	s := New(newFakeCatalog())
	fw, err := s.Select("Should we enter the market in Brazil?", "")
	require.NoError(t, err)
	assert.Equal(t, "market_entry", fw.Name)
}

func TestSelect_FallsBackToDefault(t *testing.T) {
	s := New(newFakeCatalog())
	fw, err := s.Select("no recognizable phrase here", "")
	require.NoError(t, err)
	assert.Equal(t, defaultFramework, fw.Name)
}
