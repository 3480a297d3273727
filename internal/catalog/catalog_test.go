package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalDoc = `
load_order:
  - alpha
  - custom
frameworks:
  alpha:
    display_name: "Alpha"
    description: "first framework"
    trigger_phrases:
      - "enter the market"
    l1_order: [cat_a, cat_b]
    l1_categories:
      cat_a:
        label: "Category A"
        question: "q a"
        l2_order: [branch_a]
        l2_branches:
          branch_a:
            label: "Branch A"
            question: "q branch a"
            suggested_l3:
              - "Leaf One"
      cat_b:
        label: "Category B"
        question: "q b"
  custom: {}
`

func TestLoad_BundledDocumentParses(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	require.NotNil(t, c)

	fw, ok := c.Get("scale_decision")
	require.True(t, ok)
	assert.NotEmpty(t, fw.L1Categories)

	_, ok = c.Get("custom")
	require.True(t, ok, "custom framework ships with no l1 categories but must still load")
}

func TestParse_ValidDocument(t *testing.T) {
	c, err := parse([]byte(minimalDoc))
	require.NoError(t, err)

	fw, ok := c.Get("alpha")
	require.True(t, ok)
	require.Len(t, fw.L1Categories, 2)
	assert.Equal(t, "cat_a", fw.L1Categories[0].Key)
	require.Len(t, fw.L1Categories[0].L2Seeds, 1)
	assert.Equal(t, []string{"Leaf One"}, fw.L1Categories[0].L2Seeds[0].SuggestedL3Labels)

	assert.Equal(t, []string{"alpha", "custom"}, c.ListFrameworks())
}

func TestParse_NonCustomFrameworkRequiresL1Categories(t *testing.T) {
	doc := `
load_order: [bare]
frameworks:
  bare:
    display_name: "Bare"
`
	_, err := parse([]byte(doc))
	assert.Error(t, err)
}

func TestParse_CustomFrameworkAllowsEmptyL1(t *testing.T) {
	doc := `
load_order: [custom]
frameworks:
  custom: {}
`
	c, err := parse([]byte(doc))
	require.NoError(t, err)
	fw, ok := c.Get("custom")
	require.True(t, ok)
	assert.Empty(t, fw.L1Categories)
}

func TestParse_MissingFrameworksMapping(t *testing.T) {
	_, err := parse([]byte(`load_order: [a]`))
	assert.Error(t, err)
}

func TestParse_LoadOrderNamesUnknownFramework(t *testing.T) {
	doc := `
load_order: [ghost]
frameworks:
  alpha:
    l1_categories:
      a: {label: "A", question: "q"}
`
	_, err := parse([]byte(doc))
	assert.Error(t, err)
}

func TestParse_DuplicateLoadOrderEntryFails(t *testing.T) {
	doc := `
load_order: [alpha, alpha]
frameworks:
  alpha:
    l1_categories:
      a: {label: "A", question: "q"}
`
	_, err := parse([]byte(doc))
	assert.Error(t, err)
}

func TestParse_DuplicateL1KeyFails(t *testing.T) {
	doc := `
load_order: [alpha]
frameworks:
  alpha:
    l1_order: [a, a]
    l1_categories:
      a: {label: "A", question: "q"}
`
	_, err := parse([]byte(doc))
	assert.Error(t, err)
}

func TestFindByTrigger_CaseInsensitiveSubstringMatch(t *testing.T) {
	c, err := parse([]byte(minimalDoc))
	require.NoError(t, err)

	fw, ok := c.FindByTrigger("Should we ENTER THE MARKET in Brazil?")
	require.True(t, ok)
	assert.Equal(t, "alpha", fw.Name)

	_, ok = c.FindByTrigger("no matching phrase here")
	assert.False(t, ok)
}

func TestDescribeAll(t *testing.T) {
	c, err := parse([]byte(minimalDoc))
	require.NoError(t, err)
	descriptions := c.DescribeAll()
	assert.Equal(t, "first framework", descriptions["alpha"])
}

func TestListFrameworkFields(t *testing.T) {
	c, err := parse([]byte(minimalDoc))
	require.NoError(t, err)
	fw, ok := c.Get("alpha")
	require.True(t, ok)

	displayName, labels := ListFrameworkFields(fw)
	assert.Equal(t, "Alpha", displayName)
	assert.Equal(t, []string{"Category A", "Category B"}, labels)
}
