package keys

import (
	"sync"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
)

// SelectionStore holds the user's key value selections per (template, token).
// A selection is either empty, a set of literal values, or the AllOption
// sentinel alone; the sentinel and literals are mutually exclusive under any
// sequence of operations.
type SelectionStore struct {
	mu         sync.RWMutex
	selections map[string]map[string][]string // templateID -> token -> values
}

// NewSelectionStore creates an empty selection store.
func NewSelectionStore() *SelectionStore {
	return &SelectionStore{selections: make(map[string]map[string][]string)}
}

// Set replaces a token's selection with the given literal values, normalized.
// Passing the AllOption sentinel as the only value selects "all".
func (s *SelectionStore) Set(templateID, token string, values []string) {
	if len(values) == 1 && values[0] == models.AllOption {
		s.SelectAll(templateID, token)
		return
	}
	s.store(templateID, token, models.NormalizeValues(values))
}

// SelectAll replaces a token's selection with the AllOption sentinel,
// dropping any literals.
func (s *SelectionStore) SelectAll(templateID, token string) {
	s.store(templateID, token, []string{models.AllOption})
}

// Toggle flips one value in a token's selection. Toggling AllOption on
// replaces all literals with the sentinel; toggling a literal on while the
// sentinel is active replaces the sentinel with that literal alone.
func (s *SelectionStore) Toggle(templateID, token, value string) {
	if value == models.AllOption {
		s.mu.RLock()
		active := s.holds(templateID, token, models.AllOption)
		s.mu.RUnlock()
		if active {
			s.Clear(templateID, token)
		} else {
			s.SelectAll(templateID, token)
		}
		return
	}

	s.mu.Lock()
	current := s.selections[templateID][token]
	s.mu.Unlock()

	if len(current) == 1 && current[0] == models.AllOption {
		s.store(templateID, token, []string{value})
		return
	}

	next := make([]string, 0, len(current)+1)
	removed := false
	for _, v := range current {
		if v == value {
			removed = true
			continue
		}
		next = append(next, v)
	}
	if !removed {
		next = append(next, value)
	}
	s.store(templateID, token, models.NormalizeValues(next))
}

// Clear empties a token's selection.
func (s *SelectionStore) Clear(templateID, token string) {
	s.store(templateID, token, nil)
}

// ClearTemplate drops every selection for a template.
func (s *SelectionStore) ClearTemplate(templateID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.selections, templateID)
}

// Get returns a copy of a token's current selection.
func (s *SelectionStore) Get(templateID, token string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.selections[templateID][token]...)
}

func (s *SelectionStore) store(templateID, token string, values []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byToken := s.selections[templateID]
	if byToken == nil {
		byToken = make(map[string][]string)
		s.selections[templateID] = byToken
	}
	if len(values) == 0 {
		delete(byToken, token)
		return
	}
	byToken[token] = values
}

func (s *SelectionStore) holds(templateID, token, value string) bool {
	for _, v := range s.selections[templateID][token] {
		if v == value {
			return true
		}
	}
	return false
}

// OptionsFunc looks up the currently resolved option set for a template.
type OptionsFunc func(templateID string) models.KeyOptionSet

// Builder converts key selections into request-ready filter maps.
type Builder struct {
	selections *SelectionStore
	options    OptionsFunc
}

// NewBuilder creates a filter builder over the given selection store and
// option lookup.
func NewBuilder(selections *SelectionStore, options OptionsFunc) *Builder {
	return &Builder{selections: selections, options: options}
}

// Build produces the filter map for one template. Literal selections are
// normalized; a single value collapses to a scalar on the wire. An AllOption
// selection expands to the full resolved value list for that token; if the
// vocabulary has not loaded yet the token is omitted entirely, so the
// discovery query is not over-constrained before the values are known.
func (b *Builder) Build(templateID string) models.KeyFilters {
	b.selections.mu.RLock()
	byToken := b.selections.selections[templateID]
	tokens := make(map[string][]string, len(byToken))
	for token, values := range byToken {
		tokens[token] = append([]string(nil), values...)
	}
	b.selections.mu.RUnlock()

	filters := make(models.KeyFilters, len(tokens))
	var resolved models.KeyOptionSet
	for token, values := range tokens {
		if len(values) == 1 && values[0] == models.AllOption {
			if resolved == nil {
				resolved = b.options(templateID)
			}
			if all := models.NormalizeValues(resolved[token]); len(all) > 0 {
				filters[token] = all
			}
			continue
		}
		if norm := models.NormalizeValues(values); len(norm) > 0 {
			filters[token] = norm
		}
	}
	return filters
}

// KeysReady reports whether every mapping key of the template has a
// non-empty selection (literal values or AllOption). Discovery and
// generation are gated on this.
func (b *Builder) KeysReady(tpl models.Template) bool {
	b.selections.mu.RLock()
	defer b.selections.mu.RUnlock()
	byToken := b.selections.selections[tpl.ID]
	for _, token := range tpl.MappingKeys {
		if len(byToken[token]) == 0 {
			return false
		}
	}
	return true
}

// MissingKeys lists the mapping keys of the template that still have no
// selection, for validation messages.
func (b *Builder) MissingKeys(tpl models.Template) []string {
	b.selections.mu.RLock()
	defer b.selections.mu.RUnlock()
	byToken := b.selections.selections[tpl.ID]
	var missing []string
	for _, token := range tpl.MappingKeys {
		if len(byToken[token]) == 0 {
			missing = append(missing, token)
		}
	}
	return missing
}
