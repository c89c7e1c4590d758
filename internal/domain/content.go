package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ContentType discriminates the three kinds of catalog entry a provider exposes
type ContentType string

const (
	ContentLive   ContentType = "live"
	ContentVOD    ContentType = "vod"
	ContentSeries ContentType = "series"
)

// ContentTypes lists every content type in the order sections are presented
var ContentTypes = []ContentType{ContentLive, ContentVOD, ContentSeries}

const (
	// PlaceholderPoster is used for any item the provider sent without artwork
	PlaceholderPoster = "data:image/svg+xml;base64,PHN2ZyB4bWxucz0iaHR0cDovL3d3dy53My5vcmcvMjAwMC9zdmciIHdpZHRoPSIyMDAiIGhlaWdodD0iMzAwIiB2aWV3Qm94PSIwIDAgMjAwIDMwMCI+PHJlY3Qgd2lkdGg9IjEwMCUiIGhlaWdodD0iMTAwJSIgZmlsbD0iIzM3NDE1MSIvPjx0ZXh0IHg9IjUwJSIgeT0iNTAlIiBkb21pbmFudC1iYXNlbGluZT0ibWlkZGxlIiB0ZXh0LWFuY2hvcj0ibWlkZGxlIiBmaWxsPSIjZDJkNmQwIiBmb250LXNpemU9IjIwcHgiIGZvbnQtZmFtaWx5PSJzYW5zLXNlcmlmIj5ObyBJbWFnZTwvdGV4dD48L3N2Zz4="
	UnknownTitle      = "Unknown Title"
	Uncategorized     = "Uncategorized"
	// ExtensionHLS is the container extension that marks an asset as adaptive
	ExtensionHLS = "m3u8"
)

// ParseContentType converts user or config input into a ContentType
func ParseContentType(s string) (ContentType, error) {
	switch ContentType(strings.ToLower(strings.TrimSpace(s))) {
	case ContentLive:
		return ContentLive, nil
	case ContentVOD, "movie", "movies":
		return ContentVOD, nil
	case ContentSeries:
		return ContentSeries, nil
	}
	return "", &ValidationError{Field: "type", Message: fmt.Sprintf("unknown content type %q", s)}
}

// Label is the human name of a section
func (t ContentType) Label() string {
	switch t {
	case ContentLive:
		return "Live TV"
	case ContentVOD:
		return "Movies"
	case ContentSeries:
		return "Series"
	}
	return string(t)
}

// MediaPath is the path segment used in media URLs for this type.  Series episodes play from the series path.
func (t ContentType) MediaPath() string {
	switch t {
	case ContentLive:
		return "live"
	case ContentVOD:
		return "movie"
	case ContentSeries:
		return "series"
	}
	return string(t)
}

// CategoriesAction is the provider action listing categories of this type
func (t ContentType) CategoriesAction() Action {
	return Action("get_" + string(t) + "_categories")
}

// ItemsAction is the provider action listing every item of this type
func (t ContentType) ItemsAction() Action {
	switch t {
	case ContentLive:
		return ActionLiveStreams
	case ContentVOD:
		return ActionVODStreams
	}
	return ActionSeries
}

// FavoritesKey is the persistent store key holding this type's favorites
func (t ContentType) FavoritesKey() string {
	return "iptvFavorites_xtreme_" + string(t)
}

// Category groups items of a single content type
type Category struct {
	ID   string
	Name string
}

// ContentItem is a normalized catalog entry.  Every field is populated, falling back to the placeholder constants above.
type ContentItem struct {
	Type               ContentType
	ID                 string
	Name               string
	PosterURL          string
	CategoryID         string
	CategoryName       string
	ContainerExtension string
	IsFavorite         bool
}

// Key uniquely identifies an item across content types
func (c ContentItem) Key() string {
	return string(c.Type) + ":" + c.ID
}

// Episode is a single playable episode of a series
type Episode struct {
	ID                 string
	Season             int
	EpisodeNumber      int
	Title              string
	AirDate            string
	DurationLabel      string
	ContainerExtension string
}

// DisplayTitle renders the title used in episode lists and the now playing line
func (e Episode) DisplayTitle() string {
	title := e.Title
	if title == "" {
		title = "Untitled Episode"
	}
	return fmt.Sprintf("%d. %s", e.EpisodeNumber, title)
}

// Favorites maps each content type to the ordered ids the user has marked
type Favorites map[ContentType][]string

// Contains reports whether id is a favorite of the given type.  Comparison is by string form.
func (f Favorites) Contains(t ContentType, id string) bool {
	for _, fav := range f[t] {
		if fav == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy that is safe to hand to callers
func (f Favorites) Clone() Favorites {
	out := make(Favorites, len(f))
	for t, ids := range f {
		out[t] = append([]string(nil), ids...)
	}
	return out
}

// IDString normalizes the duck-typed identifiers providers send (numbers, numeric strings, null) into the canonical
// string form.  Zero and empty values are treated as absent and return "".
func IDString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(x)
		if s == "0" {
			return ""
		}
		return s
	case float64:
		if x == 0 || math.IsNaN(x) {
			return ""
		}
		if x == math.Trunc(x) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return IDString(string(x))
	case int:
		if x == 0 {
			return ""
		}
		return strconv.Itoa(x)
	case int64:
		if x == 0 {
			return ""
		}
		return strconv.FormatInt(x, 10)
	case bool:
		return ""
	}
	return fmt.Sprint(v)
}

// StringValue reads a loosely typed provider field as text.  Numbers are formatted without exponent.
func StringValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

// IntValue reads a loosely typed provider field as an int the way parseInt would, returning ok=false when the value
// carries no leading digits.
func IntValue(v interface{}) (int, bool) {
	switch x := v.(type) {
	case float64:
		return int(x), true
	case json.Number:
		return IntValue(string(x))
	case string:
		s := strings.TrimSpace(x)
		end := 0
		for end < len(s) && (s[end] >= '0' && s[end] <= '9' || end == 0 && (s[end] == '-' || s[end] == '+')) {
			end++
		}
		n, err := strconv.Atoi(s[:end])
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
