package curation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrFragmentNotFound  = errors.New("fragment not found")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrDuplicateFragment = errors.New("duplicate fragment id")
	ErrInvalidFragment   = errors.New("invalid fragment")
)

type Provenance string

const (
	ProvenanceDeterministic Provenance = "deterministic"
	ProvenanceLLM           Provenance = "llm"
	ProvenanceManual        Provenance = "manual"
)

// Fragment is one content module that may feed generation.
type Fragment struct {
	ID         string     `json:"id"`
	Category   string     `json:"category"`
	Title      string     `json:"title"`
	Content    string     `json:"content,omitempty"`
	Provenance Provenance `json:"provenance"`
	Selected   bool       `json:"selected"`
}

// DetectedFragment is a fragment as returned by the preview collaborator.
type DetectedFragment struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content,omitempty"`
	Preselected bool   `json:"preselected"`
	DetectedBy  string `json:"detectedBy"`
}

// DetectedCategory keeps the upstream category order, which a map would lose.
type DetectedCategory struct {
	Category  string             `json:"category"`
	Fragments []DetectedFragment `json:"fragments"`
}

// Selection is the payload handed to curated generation.
type Selection struct {
	CategoryOrder            []string            `json:"categoryOrder"`
	FragmentOrdersByCategory map[string][]string `json:"fragmentOrdersByCategory"`
	SelectedIDs              []string            `json:"selectedIds"`
	ManualIDs                []string            `json:"manualIds"`
}

// Engine holds one session's curation state.
type Engine struct {
	mu            sync.RWMutex
	fragments     map[string]*Fragment
	categoryOrder []string
	fragmentOrder map[string][]string
}

func NewEngine() *Engine {
	return &Engine{
		fragments:     make(map[string]*Fragment),
		fragmentOrder: make(map[string][]string),
	}
}

// Initialize replaces all state with the detected fragments.
func (e *Engine) Initialize(categories []DetectedCategory) error {
	fragments := make(map[string]*Fragment)
	fragmentOrder := make(map[string][]string)
	var categoryOrder []string

	for _, c := range categories {
		name := strings.TrimSpace(c.Category)
		if name == "" {
			return fmt.Errorf("%w: empty category name", ErrInvalidFragment)
		}
		if _, seen := fragmentOrder[name]; !seen {
			categoryOrder = append(categoryOrder, name)
			fragmentOrder[name] = []string{}
		}
		for _, d := range c.Fragments {
			if d.ID == "" {
				return fmt.Errorf("%w: fragment without id in %q", ErrInvalidFragment, name)
			}
			if _, dup := fragments[d.ID]; dup {
				return fmt.Errorf("%w: %s", ErrDuplicateFragment, d.ID)
			}
			fragments[d.ID] = &Fragment{
				ID:         d.ID,
				Category:   name,
				Title:      d.Title,
				Content:    d.Content,
				Provenance: provenanceOf(d.DetectedBy),
				Selected:   d.Preselected,
			}
			fragmentOrder[name] = append(fragmentOrder[name], d.ID)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.fragments = fragments
	e.fragmentOrder = fragmentOrder
	e.categoryOrder = categoryOrder
	return nil
}

func provenanceOf(detectedBy string) Provenance {
	switch strings.ToLower(strings.TrimSpace(detectedBy)) {
	case "llm", "ai", "ia", "model":
		return ProvenanceLLM
	default:
		return ProvenanceDeterministic
	}
}

// Toggle changes selection only. The fragment keeps its slot.
func (e *Engine) Toggle(id string, selected bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, ok := e.fragments[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFragmentNotFound, id)
	}
	f.Selected = selected
	return nil
}

// AddManual appends a user-supplied fragment, selected, to category. An empty
// ID is generated.
func (e *Engine) AddManual(f Fragment, category string) (Fragment, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return Fragment{}, fmt.Errorf("%w: category is required", ErrInvalidFragment)
	}
	if strings.TrimSpace(f.Title) == "" && strings.TrimSpace(f.Content) == "" {
		return Fragment{}, fmt.Errorf("%w: title or content is required", ErrInvalidFragment)
	}
	if f.ID == "" {
		f.ID = "manual-" + uuid.NewString()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, dup := e.fragments[f.ID]; dup {
		return Fragment{}, fmt.Errorf("%w: %s", ErrDuplicateFragment, f.ID)
	}
	if _, ok := e.fragmentOrder[category]; !ok {
		e.categoryOrder = append(e.categoryOrder, category)
		e.fragmentOrder[category] = []string{}
	}

	f.Category = category
	f.Provenance = ProvenanceManual
	f.Selected = true
	stored := f
	e.fragments[f.ID] = &stored
	e.fragmentOrder[category] = append(e.fragmentOrder[category], f.ID)
	return f, nil
}

// MoveFragment relocates a fragment to targetIndex in targetCategory. The
// index is clamped to the target order's bounds.
func (e *Engine) MoveFragment(id, targetCategory string, targetIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, ok := e.fragments[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFragmentNotFound, id)
	}
	if _, ok := e.fragmentOrder[targetCategory]; !ok {
		return fmt.Errorf("%w: %s", ErrCategoryNotFound, targetCategory)
	}

	// Both orders are rebuilt before either is stored, so the fragment is
	// never missing from every order.
	source := removeString(e.fragmentOrder[f.Category], id)
	target := source
	if targetCategory != f.Category {
		target = e.fragmentOrder[targetCategory]
	}
	target = insertString(target, id, targetIndex)

	if targetCategory != f.Category {
		e.fragmentOrder[f.Category] = source
	}
	e.fragmentOrder[targetCategory] = target
	f.Category = targetCategory
	return nil
}

// MoveCategory reorders categoryOrder only.
func (e *Engine) MoveCategory(category string, targetIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.fragmentOrder[category]; !ok {
		return fmt.Errorf("%w: %s", ErrCategoryNotFound, category)
	}
	e.categoryOrder = insertString(removeString(e.categoryOrder, category), category, targetIndex)
	return nil
}

// AssembleSelection builds the generation payload. Deselected fragments are
// left out, and so are categories with nothing selected.
func (e *Engine) AssembleSelection() Selection {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sel := Selection{
		CategoryOrder:            []string{},
		FragmentOrdersByCategory: make(map[string][]string),
		SelectedIDs:              []string{},
		ManualIDs:                []string{},
	}
	for _, category := range e.categoryOrder {
		var ids []string
		for _, id := range e.fragmentOrder[category] {
			f := e.fragments[id]
			if !f.Selected {
				continue
			}
			ids = append(ids, id)
			sel.SelectedIDs = append(sel.SelectedIDs, id)
			if f.Provenance == ProvenanceManual {
				sel.ManualIDs = append(sel.ManualIDs, id)
			}
		}
		if len(ids) == 0 {
			continue
		}
		sel.CategoryOrder = append(sel.CategoryOrder, category)
		sel.FragmentOrdersByCategory[category] = ids
	}
	return sel
}

// CategoryOrder includes categories with nothing selected.
func (e *Engine) CategoryOrder() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.categoryOrder...)
}

// FragmentOrder returns the ids of category in order, selected or not.
func (e *Engine) FragmentOrder(category string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	order, ok := e.fragmentOrder[category]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCategoryNotFound, category)
	}
	return append([]string(nil), order...), nil
}

func (e *Engine) Fragment(id string) (Fragment, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	f, ok := e.fragments[id]
	if !ok {
		return Fragment{}, fmt.Errorf("%w: %s", ErrFragmentNotFound, id)
	}
	return *f, nil
}

// Fragments lists every fragment in assembly order.
func (e *Engine) Fragments() []Fragment {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Fragment, 0, len(e.fragments))
	for _, category := range e.categoryOrder {
		for _, id := range e.fragmentOrder[category] {
			out = append(out, *e.fragments[id])
		}
	}
	return out
}

func removeString(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func insertString(list []string, s string, index int) []string {
	if index < 0 {
		index = 0
	}
	if index > len(list) {
		index = len(list)
	}
	out := make([]string, 0, len(list)+1)
	out = append(out, list[:index]...)
	out = append(out, s)
	return append(out, list[index:]...)
}
