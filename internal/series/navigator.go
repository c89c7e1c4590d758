// Package series loads the seasons of a series and tracks which episode is selected and playing.
package series

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/log"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// ErrStale is returned when a series response arrives after the navigator moved on to another series or was closed
var ErrStale = errors.New("series response superseded")

// ErrNotOpen is returned by operations that need an open series
var ErrNotOpen = errors.New("no series open")

// Player starts episode playback and reports what is playing
type Player interface {
	PlayEpisode(ctx context.Context, series domain.ContentItem, episode domain.Episode) error
	// PlayingEpisodeID returns the id of the episode currently playing, "" when none
	PlayingEpisodeID() string
}

// Navigator holds the open series.  A generation token guards against out of order responses.
type Navigator struct {
	gateway domain.Gateway
	player  Player

	mu         sync.RWMutex
	generation uint64
	series     *domain.ContentItem
	seasons    []Season
	selected   int
}

func NewNavigator(gateway domain.Gateway, player Player) *Navigator {
	return &Navigator{gateway: gateway, player: player}
}

// Open loads series info for item.  Opening another series, or closing, before the response arrives makes this call
// return ErrStale without touching state.
func (n *Navigator) Open(ctx context.Context, creds domain.Credentials, item domain.ContentItem) ([]Season, error) {
	if item.Type != domain.ContentSeries {
		return nil, &domain.ValidationError{Field: "type", Message: "only series have episodes"}
	}

	n.mu.Lock()
	n.generation++
	gen := n.generation
	n.series = nil
	n.seasons = nil
	n.selected = 0
	n.mu.Unlock()

	log.Info("Loading series info", "series_id", item.ID, "name", item.Name)

	data, err := n.gateway.Call(ctx, creds, domain.ActionSeriesInfo, domain.Params{"series_id": item.ID})
	if !n.current(gen) {
		// A failed request for a superseded series is stale too
		err = ErrStale
	}
	if err != nil {
		if errors.Is(err, ErrStale) {
			log.Debug("Discarding stale series info", "series_id", item.ID)
		}
		return nil, err
	}

	seasons, err := ParseSeriesInfo(data, item.ContainerExtension)
	if err != nil {
		return nil, fmt.Errorf("series %s: %w", item.ID, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.generation != gen {
		return nil, ErrStale
	}
	series := item
	n.series = &series
	n.seasons = seasons
	n.selected = 0

	log.Info("Series info loaded", "series_id", item.ID, "seasons", len(seasons))
	return cloneSeasons(seasons), nil
}

func (n *Navigator) current(gen uint64) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.generation == gen
}

// Close forgets the open series and invalidates any request in flight
func (n *Navigator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.generation++
	n.series = nil
	n.seasons = nil
	n.selected = 0
}

// Series returns the open series
func (n *Navigator) Series() (domain.ContentItem, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.series == nil {
		return domain.ContentItem{}, false
	}
	return *n.series, true
}

// Seasons returns the loaded seasons
func (n *Navigator) Seasons() []Season {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return cloneSeasons(n.seasons)
}

// SelectSeason makes the season with the given key current and returns its episodes
func (n *Navigator) SelectSeason(key string) ([]domain.Episode, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, s := range n.seasons {
		if s.Key == key {
			n.selected = i
			return append([]domain.Episode(nil), s.Episodes...), nil
		}
	}
	return nil, &domain.ValidationError{Field: "season", Message: fmt.Sprintf("no season %q", key)}
}

// SelectedSeason returns the current season
func (n *Navigator) SelectedSeason() (Season, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.selected >= len(n.seasons) {
		return Season{}, false
	}
	s := n.seasons[n.selected]
	s.Episodes = append([]domain.Episode(nil), s.Episodes...)
	return s, true
}

// CycleSeason moves the selection by delta, wrapping around
func (n *Navigator) CycleSeason(delta int) (Season, bool) {
	n.mu.Lock()
	if len(n.seasons) == 0 {
		n.mu.Unlock()
		return Season{}, false
	}
	n.selected = ((n.selected+delta)%len(n.seasons) + len(n.seasons)) % len(n.seasons)
	n.mu.Unlock()
	return n.SelectedSeason()
}

// Select plays an episode of the open series
func (n *Navigator) Select(ctx context.Context, episode domain.Episode) error {
	series, ok := n.Series()
	if !ok {
		return ErrNotOpen
	}
	if n.player == nil {
		return errors.New("series navigator has no player")
	}
	log.Info("Playing episode", "series_id", series.ID, "episode_id", episode.ID, "season", episode.Season, "episode", episode.EpisodeNumber)
	return n.player.PlayEpisode(ctx, series, episode)
}

// IsPlaying reports whether ep is the episode currently playing
func (n *Navigator) IsPlaying(ep domain.Episode) bool {
	if n.player == nil {
		return false
	}
	id := n.player.PlayingEpisodeID()
	return id != "" && id == ep.ID
}

// PlayingInSelectedSeason reports whether the playing episode belongs to the selected season, which is re-derived on
// every season change rather than cached.
func (n *Navigator) PlayingInSelectedSeason() bool {
	season, ok := n.SelectedSeason()
	if !ok {
		return false
	}
	for _, ep := range season.Episodes {
		if n.IsPlaying(ep) {
			return true
		}
	}
	return false
}

// Filter fuzzy matches episodes by number or title.  An empty query returns every episode.
func Filter(episodes []domain.Episode, query string) []domain.Episode {
	query = strings.TrimSpace(query)
	if query == "" {
		return append([]domain.Episode(nil), episodes...)
	}

	var filtered []domain.Episode
	for _, ep := range episodes {
		if fuzzy.MatchFold(query, strconv.Itoa(ep.EpisodeNumber)) || fuzzy.MatchFold(query, ep.Title) {
			filtered = append(filtered, ep)
		}
	}
	return filtered
}

func cloneSeasons(in []Season) []Season {
	out := make([]Season, len(in))
	for i, s := range in {
		out[i] = s
		out[i].Episodes = append([]domain.Episode(nil), s.Episodes...)
	}
	return out
}
