package catalog

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/log"
)

// rawCategory is a provider category as sent, ids may be numbers or strings
type rawCategory struct {
	CategoryID   interface{} `json:"category_id"`
	CategoryName interface{} `json:"category_name"`
}

// rawItem covers live streams, vod streams and series entries.  Each kind names its fields differently.
type rawItem struct {
	StreamID           interface{} `json:"stream_id"`
	SeriesID           interface{} `json:"series_id"`
	Name               interface{} `json:"name"`
	Title              interface{} `json:"title"`
	StreamIcon         interface{} `json:"stream_icon"`
	MovieImage         interface{} `json:"movie_image"`
	Cover              interface{} `json:"cover"`
	CategoryID         interface{} `json:"category_id"`
	ContainerExtension interface{} `json:"container_extension"`
}

// FavoriteLookup answers favorites membership during normalization
type FavoriteLookup interface {
	Contains(t domain.ContentType, id string) bool
}

// decodeArray splits a JSON array into its elements.  Anything that is not an array yields no elements.
func decodeArray(data json.RawMessage) []json.RawMessage {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil
	}
	return elems
}

// NormalizeCategories decodes a categories payload, skipping malformed entries
func NormalizeCategories(t domain.ContentType, data json.RawMessage) []domain.Category {
	elems := decodeArray(data)
	out := make([]domain.Category, 0, len(elems))
	for _, elem := range elems {
		var raw rawCategory
		if err := json.Unmarshal(elem, &raw); err != nil {
			log.Debug("Skipping malformed category", "type", t, "error", err)
			continue
		}
		id := domain.StringValue(raw.CategoryID)
		if id == "" {
			continue
		}
		out = append(out, domain.Category{ID: id, Name: strings.TrimSpace(domain.StringValue(raw.CategoryName))})
	}
	return out
}

// NormalizeItems decodes an items payload into content items.  Field fallbacks: id from stream_id then series_id, name
// from name then title, poster from stream_icon, movie_image, cover.  Items without an id, and repeats of an id already
// seen, are dropped.
func NormalizeItems(t domain.ContentType, data json.RawMessage, categories []domain.Category, favorites FavoriteLookup) []domain.ContentItem {
	categoryNames := make(map[string]string, len(categories))
	for _, c := range categories {
		categoryNames[c.ID] = c.Name
	}

	elems := decodeArray(data)
	out := make([]domain.ContentItem, 0, len(elems))
	seen := make(map[string]struct{}, len(elems))
	dropped := 0

	for _, elem := range elems {
		var raw rawItem
		if err := json.Unmarshal(elem, &raw); err != nil {
			dropped++
			continue
		}

		id := firstID(raw.StreamID, raw.SeriesID)
		if id == "" {
			dropped++
			continue
		}
		if _, dup := seen[id]; dup {
			dropped++
			continue
		}
		seen[id] = struct{}{}

		item := domain.ContentItem{
			Type:               t,
			ID:                 id,
			Name:               firstString(raw.Name, raw.Title),
			PosterURL:          firstString(raw.StreamIcon, raw.MovieImage, raw.Cover),
			CategoryID:         domain.StringValue(raw.CategoryID),
			ContainerExtension: strings.TrimPrefix(strings.TrimSpace(domain.StringValue(raw.ContainerExtension)), "."),
		}
		if item.Name == "" {
			item.Name = domain.UnknownTitle
		}
		if item.PosterURL == "" {
			item.PosterURL = domain.PlaceholderPoster
		}
		if name := categoryNames[item.CategoryID]; name != "" {
			item.CategoryName = name
		} else {
			item.CategoryName = domain.Uncategorized
		}
		if t == domain.ContentLive && item.ContainerExtension == "" {
			item.ContainerExtension = domain.ExtensionHLS
		}
		if favorites != nil {
			item.IsFavorite = favorites.Contains(t, id)
		}

		out = append(out, item)
	}

	if dropped > 0 {
		log.Warn("Dropped catalog entries without a usable id", "type", t, "dropped", dropped, "kept", len(out))
	}
	return out
}

func firstID(values ...interface{}) string {
	for _, v := range values {
		if id := domain.IDString(v); id != "" {
			return id
		}
	}
	return ""
}

func firstString(values ...interface{}) string {
	for _, v := range values {
		if s := strings.TrimSpace(domain.StringValue(v)); s != "" {
			return s
		}
	}
	return ""
}
