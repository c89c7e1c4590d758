package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PizzaHomicide/kiri/internal/domain"
)

var testCreds = domain.Credentials{ServerURL: "http://iptv.example.com:8080", Username: "alice", Password: "s3cret"}

type fakeEngine struct {
	mu        sync.Mutex
	calls     []string
	loaded    string
	subtitle  int
	events    chan EngineEvent
	attachErr error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{events: make(chan EngineEvent, 16), subtitle: SubtitleOff}
}

func (e *fakeEngine) record(call string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
}

func (e *fakeEngine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *fakeEngine) AttachMedia(Sink) error {
	e.record("attach")
	if e.attachErr != nil {
		return e.attachErr
	}
	e.events <- EngineEvent{Type: EventMediaAttached}
	return nil
}

func (e *fakeEngine) LoadSource(url string) error {
	e.record("load")
	e.mu.Lock()
	e.loaded = url
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) Loaded() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

func (e *fakeEngine) SetSubtitleTrack(id int) error {
	e.record("subtitle")
	e.mu.Lock()
	e.subtitle = id
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) StopLoad()                  { e.record("stop") }
func (e *fakeEngine) DetachMedia()               { e.record("detach") }
func (e *fakeEngine) Destroy()                   { e.record("destroy") }
func (e *fakeEngine) Events() <-chan EngineEvent { return e.events }

type fakeFactory struct {
	mu        sync.Mutex
	supported bool
	engines   []*fakeEngine
	attachErr error
}

func (f *fakeFactory) Supported() bool { return f.supported }

func (f *fakeFactory) New() (Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := newFakeEngine()
	e.attachErr = f.attachErr
	f.engines = append(f.engines, e)
	return e, nil
}

func (f *fakeFactory) engine(i int) *fakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.engines[i]
}

type fakeSink struct {
	mu     sync.Mutex
	native bool
	source string
	resets int
	events chan SinkEvent
}

func newFakeSink() *fakeSink {
	return &fakeSink{events: make(chan SinkEvent, 16)}
}

func (s *fakeSink) CanPlayType(mime string) bool {
	return s.native && mime == MimeHLS
}

func (s *fakeSink) SetSource(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = url
	return nil
}

func (s *fakeSink) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *fakeSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	s.source = ""
}

func (s *fakeSink) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

func (s *fakeSink) Events() <-chan SinkEvent { return s.events }

func newTestController(t *testing.T, supported bool) (*Controller, *fakeFactory, *fakeSink) {
	t.Helper()
	factory := &fakeFactory{supported: supported}
	sink := newFakeSink()
	c := NewController(factory, sink)
	t.Cleanup(c.Shutdown)
	return c, factory, sink
}

func waitState(t *testing.T, c *Controller, state State) {
	t.Helper()
	assert.Eventually(t, func() bool { return c.Session().State == state }, time.Second, 5*time.Millisecond,
		"expected state %s", state)
}

var (
	liveItem   = domain.ContentItem{Type: domain.ContentLive, ID: "101", Name: "News 24", ContainerExtension: "m3u8"}
	movieItem  = domain.ContentItem{Type: domain.ContentVOD, ID: "55", Name: "The Movie", ContainerExtension: "mkv"}
	seriesItem = domain.ContentItem{Type: domain.ContentSeries, ID: "9", Name: "The Show", ContainerExtension: "mp4"}
)

func TestNewPlan(t *testing.T) {
	t.Run("LiveAlwaysAdaptive", func(t *testing.T) {
		item := liveItem
		item.ContainerExtension = "ts"
		plan, err := NewPlan(testCreds, item, nil)
		require.NoError(t, err)
		assert.Equal(t, DeliveryAdaptive, plan.Delivery)
		assert.Equal(t, "http://iptv.example.com:8080/live/alice/s3cret/101.m3u8", plan.URL)
	})

	t.Run("MovieProgressive", func(t *testing.T) {
		plan, err := NewPlan(testCreds, movieItem, nil)
		require.NoError(t, err)
		assert.Equal(t, DeliveryProgressive, plan.Delivery)
		assert.Equal(t, "http://iptv.example.com:8080/movie/alice/s3cret/55.mkv", plan.URL)
	})

	t.Run("MovieWithoutExtensionIsAdaptive", func(t *testing.T) {
		item := movieItem
		item.ContainerExtension = ""
		plan, err := NewPlan(testCreds, item, nil)
		require.NoError(t, err)
		assert.Equal(t, DeliveryAdaptive, plan.Delivery)
		assert.Equal(t, "http://iptv.example.com:8080/movie/alice/s3cret/55.m3u8", plan.URL)
	})

	t.Run("EpisodeFallsBackToSeriesExtension", func(t *testing.T) {
		plan, err := NewPlan(testCreds, seriesItem, &domain.Episode{ID: "3001"})
		require.NoError(t, err)
		assert.Equal(t, DeliveryProgressive, plan.Delivery)
		assert.Equal(t, "http://iptv.example.com:8080/series/alice/s3cret/3001.mp4", plan.URL)
	})

	t.Run("EpisodeM3U8", func(t *testing.T) {
		plan, err := NewPlan(testCreds, seriesItem, &domain.Episode{ID: "3001", ContainerExtension: "M3U8"})
		require.NoError(t, err)
		assert.Equal(t, DeliveryAdaptive, plan.Delivery)
	})

	t.Run("SeriesNeedsEpisode", func(t *testing.T) {
		_, err := NewPlan(testCreds, seriesItem, nil)
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("EscapesPathSegments", func(t *testing.T) {
		creds := testCreds
		creds.Password = "p/ss word"
		plan, err := NewPlan(creds, movieItem, nil)
		require.NoError(t, err)
		assert.Equal(t, "http://iptv.example.com:8080/movie/alice/p%2Fss%20word/55.mkv", plan.URL)
	})

	t.Run("InvalidCredentials", func(t *testing.T) {
		_, err := NewPlan(domain.Credentials{}, movieItem, nil)
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestNowPlayingTitle(t *testing.T) {
	assert.Equal(t, "News 24", NowPlayingTitle(liveItem, nil))
	assert.Equal(t, "The Show - S2 E5 - Pilot", NowPlayingTitle(seriesItem, &domain.Episode{Season: 2, EpisodeNumber: 5, Title: "Pilot"}))
	assert.Equal(t, "The Show - S1 E1 - Episode", NowPlayingTitle(seriesItem, &domain.Episode{Season: 1, EpisodeNumber: 1}))
}

func TestClassifyEngineError(t *testing.T) {
	tests := []struct {
		name    string
		event   EngineEvent
		kind    domain.PlaybackErrorKind
		message string
	}{
		{"Manifest", EngineEvent{Details: DetailManifestLoadError, ErrorType: ErrorTypeNetwork}, domain.PlaybackManifest,
			"Playback Error: Could not load stream data (manifest error). Check connection or stream source."},
		{"ManifestTimeout", EngineEvent{Details: DetailManifestLoadTimeout}, domain.PlaybackManifest,
			"Playback Error: Could not load stream data (manifest error). Check connection or stream source."},
		{"Level", EngineEvent{Details: DetailLevelLoadError}, domain.PlaybackNetwork,
			"Playback Error: Network error loading video segment. Check connection."},
		{"OtherDetails", EngineEvent{Details: "bufferStalledError", ErrorType: ErrorTypeMedia}, domain.PlaybackMedia,
			"Playback Error: bufferStalledError"},
		{"NetworkType", EngineEvent{ErrorType: ErrorTypeNetwork}, domain.PlaybackNetwork,
			"Playback Error: Network error occurred during playback."},
		{"MediaType", EngineEvent{ErrorType: ErrorTypeMedia}, domain.PlaybackMedia,
			"Playback Error: Media playback error occurred."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := classifyEngineError(tt.event)
			assert.Equal(t, tt.kind, perr.Kind)
			assert.Equal(t, tt.message, perr.Message)
		})
	}
}

func TestClassifySinkError(t *testing.T) {
	assert.Nil(t, classifySinkError(MediaErrAborted))
	assert.Equal(t, domain.PlaybackNetwork, classifySinkError(MediaErrNetwork).Kind)
	assert.Equal(t, domain.PlaybackMedia, classifySinkError(MediaErrDecode).Kind)
	assert.Equal(t, domain.PlaybackUnsupported, classifySinkError(MediaErrSrcNotSupported).Kind)
	assert.Equal(t, "An unknown error occurred (Code 7).", classifySinkError(7).Message)
	assert.Contains(t, classifySinkError(MediaErrDecode).Message, "the player does not support")
}

func TestAdaptivePlayback(t *testing.T) {
	c, factory, sink := newTestController(t, true)

	require.NoError(t, c.Start(context.Background(), testCreds, liveItem, nil))
	assert.Equal(t, StateLoading, c.Session().State)

	engine := factory.engine(0)
	assert.Eventually(t, func() bool { return engine.Loaded() != "" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "http://iptv.example.com:8080/live/alice/s3cret/101.m3u8", engine.Loaded())
	assert.Empty(t, sink.Source())

	engine.events <- EngineEvent{Type: EventManifestParsed, Tracks: []SubtitleTrack{{ID: 0, Name: "English", Language: "en"}}}
	waitState(t, c, StatePlaying)
	assert.Len(t, c.Session().SubtitleTracks, 1)

	sink.events <- SinkEvent{Type: SinkWaiting}
	waitState(t, c, StateBuffering)
	sink.events <- SinkEvent{Type: SinkPlaying}
	waitState(t, c, StatePlaying)
	sink.events <- SinkEvent{Type: SinkEnded}
	waitState(t, c, StateEnded)
}

func TestFatalEngineError(t *testing.T) {
	c, factory, _ := newTestController(t, true)
	require.NoError(t, c.Start(context.Background(), testCreds, liveItem, nil))
	engine := factory.engine(0)

	engine.events <- EngineEvent{Type: EventError, Fatal: false, Details: "fragLoadError"}
	engine.events <- EngineEvent{Type: EventLevelLoaded}
	waitState(t, c, StatePlaying)

	engine.events <- EngineEvent{Type: EventError, Fatal: true, Details: DetailManifestLoadError, ErrorType: ErrorTypeNetwork}
	waitState(t, c, StateError)

	session := c.Session()
	require.NotNil(t, session.Err)
	assert.Equal(t, domain.PlaybackManifest, session.Err.Kind)
	assert.Equal(t, "Playback Error: Could not load stream data (manifest error). Check connection or stream source.", session.Message)

	// Buffered fragments do not clear an error
	engine.events <- EngineEvent{Type: EventFragBuffered}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateError, c.Session().State)
}

func TestNonFatalEngineErrorIsRecorded(t *testing.T) {
	c, factory, _ := newTestController(t, true)
	require.NoError(t, c.Start(context.Background(), testCreds, liveItem, nil))
	engine := factory.engine(0)

	engine.events <- EngineEvent{Type: EventError, Fatal: false, Details: "fragLoadError"}
	require.Eventually(t, func() bool { return c.Session().Warning == "fragLoadError" }, time.Second, 5*time.Millisecond)

	session := c.Session()
	assert.Equal(t, StateLoading, session.State)
	assert.Nil(t, session.Err)
	assert.Empty(t, session.Message)

	require.NoError(t, c.Start(context.Background(), testCreds, liveItem, nil))
	assert.Empty(t, c.Session().Warning)
}

func TestAttachFailureIsSetupError(t *testing.T) {
	c, factory, _ := newTestController(t, true)
	factory.attachErr = errors.New("no media element")

	err := c.Start(context.Background(), testCreds, liveItem, nil)
	var perr *domain.PlaybackError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Setup Error: no media element", perr.Message)
	assert.Equal(t, StateError, c.Session().State)
}

func TestNativeFallback(t *testing.T) {
	c, _, sink := newTestController(t, false)
	sink.native = true

	require.NoError(t, c.Start(context.Background(), testCreds, liveItem, nil))
	assert.Equal(t, "http://iptv.example.com:8080/live/alice/s3cret/101.m3u8", sink.Source())
}

func TestAdaptiveUnsupported(t *testing.T) {
	c, _, _ := newTestController(t, false)

	err := c.Start(context.Background(), testCreds, liveItem, nil)
	var perr *domain.PlaybackError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.PlaybackUnsupported, perr.Kind)

	session := c.Session()
	assert.Equal(t, StateError, session.State)
	assert.Equal(t, "HLS playback is not supported by the configured player.", session.Message)
}

func TestProgressiveGoesToSink(t *testing.T) {
	c, factory, sink := newTestController(t, true)

	require.NoError(t, c.Start(context.Background(), testCreds, movieItem, nil))
	assert.Equal(t, "http://iptv.example.com:8080/movie/alice/s3cret/55.mkv", sink.Source())
	assert.Empty(t, factory.engines)

	// Aborts are never surfaced
	sink.events <- SinkEvent{Type: SinkError, Code: MediaErrAborted}
	sink.events <- SinkEvent{Type: SinkPlaying}
	waitState(t, c, StatePlaying)

	sink.events <- SinkEvent{Type: SinkError, Code: MediaErrDecode}
	waitState(t, c, StateError)
}

func TestPlayRejected(t *testing.T) {
	c, _, sink := newTestController(t, false)
	require.NoError(t, c.Start(context.Background(), testCreds, movieItem, nil))

	sink.events <- SinkEvent{Type: SinkPlayRejected, Aborted: true, Message: "interrupted"}
	sink.events <- SinkEvent{Type: SinkPlayRejected, Message: "not allowed"}
	waitState(t, c, StateError)
	assert.Equal(t, "Could not start playback: not allowed.", c.Session().Message)
}

func TestRestartDisposesPreviousEngine(t *testing.T) {
	c, factory, sink := newTestController(t, true)

	require.NoError(t, c.Start(context.Background(), testCreds, liveItem, nil))
	first := factory.engine(0)
	assert.Eventually(t, func() bool { return first.Loaded() != "" }, time.Second, 5*time.Millisecond)

	other := liveItem
	other.ID = "202"
	require.NoError(t, c.Start(context.Background(), testCreds, other, nil))

	assert.Equal(t, []string{"attach", "load", "stop", "detach", "destroy"}, first.Calls())
	assert.Equal(t, 1, sink.Resets())

	second := factory.engine(1)
	assert.Eventually(t, func() bool { return second.Loaded() != "" }, time.Second, 5*time.Millisecond)
	assert.Contains(t, second.Loaded(), "/202.m3u8")

	// Late events from the first engine are ignored
	first.events <- EngineEvent{Type: EventError, Fatal: true, ErrorType: ErrorTypeNetwork}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateLoading, c.Session().State)
}

func TestCloseFromAnyState(t *testing.T) {
	c, factory, sink := newTestController(t, true)

	var (
		mu     sync.Mutex
		states []State
	)
	c.OnChange(func(s Session) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s.State)
	})

	require.NoError(t, c.Start(context.Background(), testCreds, liveItem, nil))
	c.Close()

	assert.Equal(t, StateIdle, c.Session().State)
	assert.Equal(t, []string{"attach", "stop", "detach", "destroy"}, filterCalls(factory.engine(0).Calls(), "load"))
	assert.Equal(t, 1, sink.Resets())

	mu.Lock()
	assert.Equal(t, []State{StateLoading, StateClosed, StateIdle}, states)
	mu.Unlock()

	// Closing while idle is a no-op
	c.Close()
	assert.Equal(t, 1, sink.Resets())
}

func filterCalls(calls []string, drop string) []string {
	var out []string
	for _, c := range calls {
		if c != drop {
			out = append(out, c)
		}
	}
	return out
}

func TestSubtitles(t *testing.T) {
	c, factory, _ := newTestController(t, true)
	require.NoError(t, c.Start(context.Background(), testCreds, liveItem, nil))
	engine := factory.engine(0)

	engine.events <- EngineEvent{Type: EventManifestParsed, Tracks: []SubtitleTrack{{ID: 0, Name: "English"}, {ID: 1, Name: "French"}}}
	waitState(t, c, StatePlaying)

	var verr *domain.ValidationError
	assert.ErrorAs(t, c.SelectSubtitle(5), &verr)

	require.NoError(t, c.SelectSubtitle(1))
	track, ok := c.Session().ActiveSubtitle()
	require.True(t, ok)
	assert.Equal(t, "French", track.Name)

	require.NoError(t, c.SelectSubtitle(SubtitleOff))
	assert.Nil(t, c.Session().ActiveSubtitleID)

	engine.events <- EngineEvent{Type: EventSubtitleTrackSwitched, TrackID: 0}
	assert.Eventually(t, func() bool {
		id := c.Session().ActiveSubtitleID
		return id != nil && *id == 0
	}, time.Second, 5*time.Millisecond)

	// An empty update keeps the current tracks
	engine.events <- EngineEvent{Type: EventSubtitleTracksUpdated}
	engine.events <- EngineEvent{Type: EventSubtitleTracksUpdated, Tracks: []SubtitleTrack{{ID: 3, Name: "German"}}}
	assert.Eventually(t, func() bool {
		s := c.Session()
		return len(s.SubtitleTracks) == 1 && s.ActiveSubtitleID == nil
	}, time.Second, 5*time.Millisecond)
}

func TestPlayingEpisodeID(t *testing.T) {
	c, _, _ := newTestController(t, true)
	assert.Empty(t, c.PlayingEpisodeID())

	require.NoError(t, c.PlayEpisode(context.Background(), testCreds, seriesItem, domain.Episode{ID: "3001", Season: 1, EpisodeNumber: 2}))
	assert.Equal(t, "3001", c.PlayingEpisodeID())
	assert.Equal(t, "The Show - S1 E2 - Episode", c.Session().Title)

	c.Close()
	assert.Empty(t, c.PlayingEpisodeID())
}

func TestSubtitleTrackLabel(t *testing.T) {
	assert.Equal(t, "English (en)", SubtitleTrack{Name: "English", Language: "en"}.Label())
	assert.Equal(t, "en", SubtitleTrack{Language: "en"}.Label())
	assert.Equal(t, "Track 4", SubtitleTrack{ID: 4}.Label())
}
