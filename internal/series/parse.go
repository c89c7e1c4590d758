package series

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/log"
)

// Season groups the episodes of one season, ordered by episode number
type Season struct {
	Number   int
	Key      string
	Episodes []domain.Episode
}

// Label is the season picker caption
func (s Season) Label() string {
	return "Season " + s.Key
}

type rawEpisode struct {
	ID                 interface{} `json:"id"`
	EpisodeNum         interface{} `json:"episode_num"`
	Title              interface{} `json:"title"`
	Season             interface{} `json:"season"`
	ContainerExtension interface{} `json:"container_extension"`
	AirDate            interface{} `json:"air_date"`
	Info               *struct {
		MovieFormat interface{} `json:"movie_format"`
		Duration    interface{} `json:"duration"`
		AirDate     interface{} `json:"air_date"`
	} `json:"info"`
}

type rawSeriesInfo struct {
	Episodes json.RawMessage `json:"episodes"`
}

// ParseSeriesInfo groups a get_series_info payload into seasons.  episodes may be a map keyed by season or a flat
// array carrying each episode's season.  Seasons sort numerically, episodes by episode number.  Episodes without an id
// are dropped.  seriesExt is the extension fallback when neither the episode nor its info name one.
func ParseSeriesInfo(data json.RawMessage, seriesExt string) ([]Season, error) {
	var info rawSeriesInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, &domain.ParseError{Context: "series info is not an object", Err: err}
	}

	grouped := map[string][]rawEpisode{}
	trimmed := bytes.TrimSpace(info.Episodes)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		return nil, &domain.ParseError{Context: "series info has no episodes"}
	case trimmed[0] == '{':
		if err := json.Unmarshal(trimmed, &grouped); err != nil {
			return nil, &domain.ParseError{Context: "series episodes", Err: err}
		}
	case trimmed[0] == '[':
		var flat []rawEpisode
		if err := json.Unmarshal(trimmed, &flat); err != nil {
			return nil, &domain.ParseError{Context: "series episodes", Err: err}
		}
		for _, ep := range flat {
			key := domain.StringValue(ep.Season)
			if key == "" {
				key = "1"
			}
			grouped[key] = append(grouped[key], ep)
		}
	default:
		return nil, &domain.ParseError{Context: "series episodes have an unexpected shape"}
	}

	seasons := make([]Season, 0, len(grouped))
	dropped := 0
	for key, raws := range grouped {
		number, _ := domain.IntValue(key)
		season := Season{Number: number, Key: key}
		for _, raw := range raws {
			ep, ok := normalizeEpisode(raw, number, seriesExt)
			if !ok {
				dropped++
				continue
			}
			season.Episodes = append(season.Episodes, ep)
		}
		sort.SliceStable(season.Episodes, func(i, j int) bool {
			return season.Episodes[i].EpisodeNumber < season.Episodes[j].EpisodeNumber
		})
		seasons = append(seasons, season)
	}

	sort.SliceStable(seasons, func(i, j int) bool {
		if seasons[i].Number != seasons[j].Number {
			return seasons[i].Number < seasons[j].Number
		}
		return seasons[i].Key < seasons[j].Key
	})

	if dropped > 0 {
		log.Warn("Dropped episodes without an id", "dropped", dropped)
	}
	return seasons, nil
}

func normalizeEpisode(raw rawEpisode, seasonNumber int, seriesExt string) (domain.Episode, bool) {
	id := domain.IDString(raw.ID)
	if id == "" {
		return domain.Episode{}, false
	}

	ep := domain.Episode{
		ID:      id,
		Season:  seasonNumber,
		Title:   strings.TrimSpace(domain.StringValue(raw.Title)),
		AirDate: domain.StringValue(raw.AirDate),
	}
	if n, ok := domain.IntValue(raw.Season); ok && n > 0 {
		ep.Season = n
	}
	ep.EpisodeNumber, _ = domain.IntValue(raw.EpisodeNum)

	var movieFormat string
	if raw.Info != nil {
		movieFormat = domain.StringValue(raw.Info.MovieFormat)
		ep.DurationLabel = domain.StringValue(raw.Info.Duration)
		if ep.AirDate == "" {
			ep.AirDate = domain.StringValue(raw.Info.AirDate)
		}
	}

	ep.ContainerExtension = firstNonEmpty(
		domain.StringValue(raw.ContainerExtension),
		movieFormat,
		seriesExt,
		domain.ExtensionHLS,
	)
	return ep, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimPrefix(strings.TrimSpace(v), "."); v != "" {
			return v
		}
	}
	return ""
}
