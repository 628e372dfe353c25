package curation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine()
	require.NoError(t, e.Initialize([]DetectedCategory{
		{Category: "A", Fragments: []DetectedFragment{
			{ID: "a0", Title: "Prescrição", Preselected: true, DetectedBy: "deterministic"},
			{ID: "a1", Title: "Decadência", Preselected: true, DetectedBy: "llm"},
			{ID: "F", Title: "Juros de mora", Preselected: true, DetectedBy: "llm"},
		}},
		{Category: "B", Fragments: []DetectedFragment{
			{ID: "b0", Title: "Correção monetária", Preselected: true},
		}},
		{Category: "C", Fragments: []DetectedFragment{
			{ID: "c0", Title: "Honorários", Preselected: false},
		}},
	}))
	return e
}

func TestEngine_Initialize(t *testing.T) {
	e := seeded(t)

	assert.Equal(t, []string{"A", "B", "C"}, e.CategoryOrder())

	f, err := e.Fragment("a1")
	require.NoError(t, err)
	assert.Equal(t, ProvenanceLLM, f.Provenance)
	assert.True(t, f.Selected)

	f, err = e.Fragment("b0")
	require.NoError(t, err)
	assert.Equal(t, ProvenanceDeterministic, f.Provenance)

	err = NewEngine().Initialize([]DetectedCategory{
		{Category: "A", Fragments: []DetectedFragment{{ID: "x"}}},
		{Category: "B", Fragments: []DetectedFragment{{ID: "x"}}},
	})
	assert.ErrorIs(t, err, ErrDuplicateFragment)
}

func TestEngine_MoveFragmentAcrossCategories(t *testing.T) {
	e := seeded(t)

	require.NoError(t, e.MoveFragment("F", "B", 0))

	a, err := e.FragmentOrder("A")
	require.NoError(t, err)
	b, err := e.FragmentOrder("B")
	require.NoError(t, err)
	assert.Equal(t, []string{"a0", "a1"}, a)
	assert.Equal(t, []string{"F", "b0"}, b)

	var seen int
	for _, f := range e.Fragments() {
		if f.ID == "F" {
			seen++
			assert.Equal(t, "B", f.Category)
		}
	}
	assert.Equal(t, 1, seen)
}

func TestEngine_MoveFragmentWithinCategoryAndClamp(t *testing.T) {
	e := seeded(t)

	require.NoError(t, e.MoveFragment("a0", "A", 99))
	a, _ := e.FragmentOrder("A")
	assert.Equal(t, []string{"a1", "F", "a0"}, a)

	require.NoError(t, e.MoveFragment("a0", "A", -3))
	a, _ = e.FragmentOrder("A")
	assert.Equal(t, []string{"a0", "a1", "F"}, a)
}

func TestEngine_MoveErrors(t *testing.T) {
	e := seeded(t)

	assert.ErrorIs(t, e.MoveFragment("nope", "A", 0), ErrFragmentNotFound)
	assert.ErrorIs(t, e.MoveFragment("a0", "Z", 0), ErrCategoryNotFound)
	assert.ErrorIs(t, e.MoveCategory("Z", 0), ErrCategoryNotFound)
	assert.ErrorIs(t, e.Toggle("nope", true), ErrFragmentNotFound)

	a, _ := e.FragmentOrder("A")
	assert.Equal(t, []string{"a0", "a1", "F"}, a, "failed moves change nothing")
}

func TestEngine_TogglePreservesSlot(t *testing.T) {
	e := seeded(t)

	require.NoError(t, e.Toggle("a1", false))
	sel := e.AssembleSelection()
	assert.Equal(t, []string{"a0", "F"}, sel.FragmentOrdersByCategory["A"])

	require.NoError(t, e.Toggle("a1", true))
	sel = e.AssembleSelection()
	assert.Equal(t, []string{"a0", "a1", "F"}, sel.FragmentOrdersByCategory["A"])
}

func TestEngine_AddManual(t *testing.T) {
	e := seeded(t)

	f, err := e.AddManual(Fragment{ID: "m1", Title: "Tese própria"}, "Novas")
	require.NoError(t, err)
	assert.Equal(t, ProvenanceManual, f.Provenance)
	assert.True(t, f.Selected)
	assert.Equal(t, []string{"A", "B", "C", "Novas"}, e.CategoryOrder())

	generated, err := e.AddManual(Fragment{Title: "Outra"}, "A")
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)
	a, _ := e.FragmentOrder("A")
	assert.Equal(t, generated.ID, a[len(a)-1])

	_, err = e.AddManual(Fragment{ID: "m1", Title: "dup"}, "A")
	assert.ErrorIs(t, err, ErrDuplicateFragment)
	_, err = e.AddManual(Fragment{ID: "m2"}, "A")
	assert.ErrorIs(t, err, ErrInvalidFragment)

	sel := e.AssembleSelection()
	assert.Equal(t, []string{"m1"}, sel.FragmentOrdersByCategory["Novas"])
	assert.ElementsMatch(t, []string{"m1", generated.ID}, sel.ManualIDs)
}

func TestEngine_MoveCategory(t *testing.T) {
	e := seeded(t)

	require.NoError(t, e.MoveCategory("B", 0))
	assert.Equal(t, []string{"B", "A", "C"}, e.CategoryOrder())

	a, _ := e.FragmentOrder("A")
	assert.Equal(t, []string{"a0", "a1", "F"}, a)
}

func TestEngine_AssembleSelectionOmitsEmptyCategories(t *testing.T) {
	e := seeded(t)
	require.NoError(t, e.Toggle("b0", false))

	sel := e.AssembleSelection()

	assert.Equal(t, []string{"A"}, sel.CategoryOrder)
	assert.NotContains(t, sel.FragmentOrdersByCategory, "B")
	assert.NotContains(t, sel.FragmentOrdersByCategory, "C")
	assert.Equal(t, []string{"a0", "a1", "F"}, sel.SelectedIDs)
	assert.Empty(t, sel.ManualIDs)
	assert.Equal(t, []string{"A", "B", "C"}, e.CategoryOrder(), "emptied categories stay visible")
}
