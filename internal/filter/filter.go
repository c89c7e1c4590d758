// Package filter derives the visible list of catalog items from the active view filter.
package filter

import (
	"sort"
	"strings"

	"github.com/PizzaHomicide/kiri/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// CategoryAll selects every item of the section
const CategoryAll = "all"

// MinSearchLength is the shortest trimmed query that switches the view into search mode
const MinSearchLength = 2

// Mode is the kind of filter in effect
type Mode int

const (
	ModeCategory Mode = iota
	ModeSearch
	ModeFavorites
)

// Filter is exactly one of: a category selection, a search query, or favorites only
type Filter struct {
	Mode       Mode
	CategoryID string
	Query      string
}

// ByCategory selects a category, CategoryAll for everything
func ByCategory(id string) Filter {
	if id == "" {
		id = CategoryAll
	}
	return Filter{Mode: ModeCategory, CategoryID: id}
}

// BySearch filters by a case-insensitive substring of name or category name
func BySearch(query string) Filter {
	return Filter{Mode: ModeSearch, Query: query}
}

// FavoritesOnly shows only favorites of the section
func FavoritesOnly() Filter {
	return Filter{Mode: ModeFavorites}
}

// View applies f to items and returns a new slice sorted alphabetically by name.  items is never modified.
func View(items []domain.ContentItem, favorites domain.Favorites, f Filter) []domain.ContentItem {
	out := make([]domain.ContentItem, 0, len(items))

	switch f.Mode {
	case ModeFavorites:
		for _, item := range items {
			if favorites.Contains(item.Type, item.ID) {
				out = append(out, item)
			}
		}
	case ModeSearch:
		fold := cases.Fold()
		query := fold.String(strings.TrimSpace(f.Query))
		for _, item := range items {
			if strings.Contains(fold.String(item.Name), query) || strings.Contains(fold.String(item.CategoryName), query) {
				out = append(out, item)
			}
		}
	default:
		for _, item := range items {
			if f.CategoryID == "" || f.CategoryID == CategoryAll || item.CategoryID == f.CategoryID {
				out = append(out, item)
			}
		}
	}

	SortItems(out)
	return out
}

// SortItems orders items by name using locale aware, case-insensitive collation
func SortItems(items []domain.ContentItem) {
	c := newCollator()
	sort.SliceStable(items, func(i, j int) bool {
		return c.CompareString(items[i].Name, items[j].Name) < 0
	})
}

// SortCategories orders categories by name the same way as items
func SortCategories(categories []domain.Category) {
	c := newCollator()
	sort.SliceStable(categories, func(i, j int) bool {
		return c.CompareString(categories[i].Name, categories[j].Name) < 0
	})
}

// A collator carries internal buffers and is not safe for concurrent use, so each sort builds its own
func newCollator() *collate.Collator {
	return collate.New(language.English, collate.IgnoreCase)
}
