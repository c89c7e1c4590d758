package series

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var creds = domain.Credentials{ServerURL: "http://iptv.example.com", Username: "alice", Password: "secret"}

const seriesInfo = `{
	"info": {"name": "Show"},
	"episodes": {
		"10": [{"id": "1001", "episode_num": 1, "title": "Late"}],
		"2": [
			{"id": "201", "episode_num": "2", "title": "Second", "container_extension": "mkv", "info": {"duration": "00:42:00"}},
			{"id": "200", "episode_num": "1", "title": "First", "info": {"movie_format": "mp4"}, "air_date": "2020-01-01"},
			{"episode_num": "3", "title": "Missing id"}
		],
		"1": [{"id": 100, "episode_num": 1}]
	}
}`

func TestParseSeriesInfo(t *testing.T) {
	seasons, err := ParseSeriesInfo(json.RawMessage(seriesInfo), "avi")
	require.NoError(t, err)
	require.Len(t, seasons, 3)

	// Numeric rather than lexical order
	assert.Equal(t, []string{"1", "2", "10"}, []string{seasons[0].Key, seasons[1].Key, seasons[2].Key})
	assert.Equal(t, "Season 10", seasons[2].Label())

	s2 := seasons[1].Episodes
	require.Len(t, s2, 2, "episode without id is dropped")
	assert.Equal(t, "200", s2[0].ID)
	assert.Equal(t, 2, s2[0].Season)
	assert.Equal(t, "mp4", s2[0].ContainerExtension, "info.movie_format fallback")
	assert.Equal(t, "2020-01-01", s2[0].AirDate)
	assert.Equal(t, "mkv", s2[1].ContainerExtension)
	assert.Equal(t, "00:42:00", s2[1].DurationLabel)

	assert.Equal(t, "100", seasons[0].Episodes[0].ID)
	assert.Equal(t, "avi", seasons[0].Episodes[0].ContainerExtension, "series extension fallback")
	assert.Equal(t, "1. Untitled Episode", seasons[0].Episodes[0].DisplayTitle())
}

func TestParseSeriesInfoDefaultsToHLS(t *testing.T) {
	seasons, err := ParseSeriesInfo(json.RawMessage(`{"episodes": [{"id": 5, "season": 3, "episode_num": 1}]}`), "")
	require.NoError(t, err)
	require.Len(t, seasons, 1)
	assert.Equal(t, 3, seasons[0].Number)
	assert.Equal(t, "m3u8", seasons[0].Episodes[0].ContainerExtension)
}

func TestParseSeriesInfoRejectsBadShapes(t *testing.T) {
	for _, body := range []string{`[]`, `{}`, `{"episodes": null}`, `{"episodes": 4}`} {
		_, err := ParseSeriesInfo(json.RawMessage(body), "")
		var parseErr *domain.ParseError
		assert.ErrorAs(t, err, &parseErr, body)
	}

	seasons, err := ParseSeriesInfo(json.RawMessage(`{"episodes": {}}`), "")
	assert.NoError(t, err)
	assert.Empty(t, seasons)
}

type fakePlayer struct {
	mu      sync.Mutex
	played  []domain.Episode
	playing string
}

func (p *fakePlayer) PlayEpisode(_ context.Context, _ domain.ContentItem, ep domain.Episode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, ep)
	p.playing = ep.ID
	return nil
}

func (p *fakePlayer) PlayingEpisodeID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func show(id string) domain.ContentItem {
	return domain.ContentItem{Type: domain.ContentSeries, ID: id, Name: "Show " + id}
}

func TestNavigatorOpenSelectAndHighlight(t *testing.T) {
	var gotParams domain.Params
	gw := domain.GatewayFunc(func(_ context.Context, _ domain.Credentials, action domain.Action, params domain.Params) (json.RawMessage, error) {
		assert.Equal(t, domain.ActionSeriesInfo, action)
		gotParams = params
		return json.RawMessage(seriesInfo), nil
	})
	player := &fakePlayer{}
	n := NewNavigator(gw, player)

	seasons, err := n.Open(context.Background(), creds, show("55"))
	require.NoError(t, err)
	assert.Equal(t, "55", gotParams["series_id"])
	assert.Len(t, seasons, 3)

	current, ok := n.SelectedSeason()
	require.True(t, ok)
	assert.Equal(t, "1", current.Key)

	episodes, err := n.SelectSeason("2")
	require.NoError(t, err)
	require.NoError(t, n.Select(context.Background(), episodes[1]))
	assert.Equal(t, "201", player.played[0].ID)

	assert.True(t, n.IsPlaying(episodes[1]))
	assert.False(t, n.IsPlaying(episodes[0]))
	assert.True(t, n.PlayingInSelectedSeason())

	_, err = n.SelectSeason("10")
	require.NoError(t, err)
	assert.False(t, n.PlayingInSelectedSeason(), "highlight is re-derived for the new season")

	s, _ := n.CycleSeason(1)
	assert.Equal(t, "1", s.Key, "cycling wraps around")

	_, err = n.SelectSeason("99")
	assert.Error(t, err)
}

func TestNavigatorRejectsNonSeries(t *testing.T) {
	n := NewNavigator(nil, nil)
	_, err := n.Open(context.Background(), creds, domain.ContentItem{Type: domain.ContentVOD, ID: "1"})
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestNavigatorDiscardsStaleResponses(t *testing.T) {
	release := make(chan struct{})
	gw := domain.GatewayFunc(func(_ context.Context, _ domain.Credentials, _ domain.Action, params domain.Params) (json.RawMessage, error) {
		if params["series_id"] == "slow" {
			<-release
		}
		return json.RawMessage(seriesInfo), nil
	})
	n := NewNavigator(gw, &fakePlayer{})

	slowDone := make(chan error, 1)
	go func() {
		_, err := n.Open(context.Background(), creds, show("slow"))
		slowDone <- err
	}()

	// Wait for the slow request to take its generation before the fast one supersedes it
	time.Sleep(20 * time.Millisecond)
	_, err := n.Open(context.Background(), creds, show("fast"))
	require.NoError(t, err)
	close(release)

	assert.ErrorIs(t, <-slowDone, ErrStale)
	series, ok := n.Series()
	require.True(t, ok)
	assert.Equal(t, "fast", series.ID)
}

func TestNavigatorCloseInvalidates(t *testing.T) {
	release := make(chan struct{})
	gw := domain.GatewayFunc(func(context.Context, domain.Credentials, domain.Action, domain.Params) (json.RawMessage, error) {
		<-release
		return json.RawMessage(seriesInfo), nil
	})
	n := NewNavigator(gw, &fakePlayer{})

	done := make(chan error, 1)
	go func() {
		_, err := n.Open(context.Background(), creds, show("1"))
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	n.Close()
	close(release)

	assert.ErrorIs(t, <-done, ErrStale)
	_, ok := n.Series()
	assert.False(t, ok)
	assert.ErrorIs(t, n.Select(context.Background(), domain.Episode{ID: "1"}), ErrNotOpen)
}

func TestNavigatorCloseDiscardsFailedResponse(t *testing.T) {
	release := make(chan struct{})
	gw := domain.GatewayFunc(func(context.Context, domain.Credentials, domain.Action, domain.Params) (json.RawMessage, error) {
		<-release
		return nil, &domain.UpstreamError{Status: 502}
	})
	n := NewNavigator(gw, &fakePlayer{})

	done := make(chan error, 1)
	go func() {
		_, err := n.Open(context.Background(), creds, show("1"))
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	n.Close()
	close(release)

	err := <-done
	assert.ErrorIs(t, err, ErrStale)
	var upstream *domain.UpstreamError
	assert.False(t, errors.As(err, &upstream))
}

func TestFilter(t *testing.T) {
	episodes := []domain.Episode{
		{ID: "1", EpisodeNumber: 1, Title: "Pilot"},
		{ID: "2", EpisodeNumber: 12, Title: "The Return"},
		{ID: "3", EpisodeNumber: 3, Title: "Homecoming"},
	}

	assert.Len(t, Filter(episodes, ""), 3)
	assert.Equal(t, "1", Filter(episodes, "pilot")[0].ID)

	byNumber := Filter(episodes, "12")
	require.Len(t, byNumber, 1)
	assert.Equal(t, "2", byNumber[0].ID)

	assert.Len(t, Filter(episodes, "rtn"), 1, "fuzzy match on title")
	assert.Empty(t, Filter(episodes, "zzz"))
}
