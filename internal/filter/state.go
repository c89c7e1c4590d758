package filter

import "strings"

// State tracks the filter of the active section and implements the transitions driven by the search box, the category
// picker and the favorites toggle.
type State struct {
	current Filter
}

func NewState() *State {
	return &State{current: ByCategory(CategoryAll)}
}

// Current returns the active filter
func (s *State) Current() Filter {
	return s.current
}

// ApplySearch reacts to search box input and reports whether the filter changed.  A trimmed query of at least
// MinSearchLength runes enters search mode, leaving favorites mode.  An empty query while searching reverts to all
// categories.  Anything else leaves the filter alone.
func (s *State) ApplySearch(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))

	switch {
	case len([]rune(q)) >= MinSearchLength:
		next := BySearch(q)
		changed := s.current != next
		s.current = next
		return changed
	case q == "" && s.current.Mode == ModeSearch:
		s.current = ByCategory(CategoryAll)
		return true
	}
	return false
}

// SelectCategory switches to a category, leaving search and favorites modes
func (s *State) SelectCategory(id string) {
	s.current = ByCategory(id)
}

// ToggleFavorites flips favorites only mode.  Turning it off reverts to all categories.
func (s *State) ToggleFavorites() bool {
	if s.current.Mode == ModeFavorites {
		s.current = ByCategory(CategoryAll)
		return false
	}
	s.current = FavoritesOnly()
	return true
}

// Reset returns to all categories with favorites off, as when the section changes
func (s *State) Reset() {
	s.current = ByCategory(CategoryAll)
}

// FavoritesOnly reports whether favorites mode is active
func (s *State) FavoritesOnly() bool {
	return s.current.Mode == ModeFavorites
}
