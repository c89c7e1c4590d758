// Package playback owns the single playback session: it picks how a stream is delivered, drives the engine and sink,
// and turns their events into state transitions.
package playback

import (
	"context"
	"errors"
	"sync"

	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/log"
)

// ChangeFunc receives a snapshot after every transition
type ChangeFunc func(Session)

// Controller serializes all playback transitions under one mutex.  Engine events are tagged with the generation of
// the engine that produced them and dropped once that engine is disposed.
type Controller struct {
	factory EngineFactory
	sink    Sink

	mu         sync.Mutex
	session    Session
	engine     Engine
	engineQuit chan struct{}
	gen        uint64
	listeners  []ChangeFunc
	pending    []Session

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewController starts listening to the sink.  factory may be nil when no adaptive engine is available.
func NewController(factory EngineFactory, sink Sink) *Controller {
	c := &Controller{
		factory: factory,
		sink:    sink,
		session: Session{State: StateIdle},
		stop:    make(chan struct{}),
	}

	c.wg.Add(1)
	go c.pumpSink()
	return c
}

// OnChange registers an observer.  Observers are called outside the controller's lock.
func (c *Controller) OnChange(fn ChangeFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Session returns a snapshot of the current session
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.clone()
}

// PlayingEpisodeID returns the id of the episode in the active session, "" when none
func (c *Controller) PlayingEpisodeID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.session.Active() || c.session.Episode == nil {
		return ""
	}
	return c.session.Episode.ID
}

// PlayEpisode starts an episode of series
func (c *Controller) PlayEpisode(ctx context.Context, creds domain.Credentials, series domain.ContentItem, episode domain.Episode) error {
	return c.Start(ctx, creds, series, &episode)
}

// Start replaces whatever is playing with item.  Errors that happen before the media is handed over are returned and
// also recorded on the session.
func (c *Controller) Start(ctx context.Context, creds domain.Credentials, item domain.ContentItem, episode *domain.Episode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	plan, err := NewPlan(creds, item, episode)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.teardownLocked()
	c.gen++
	gen := c.gen

	var ep *domain.Episode
	if episode != nil {
		e := *episode
		ep = &e
	}
	c.session = Session{
		Item:     item,
		Episode:  ep,
		Title:    NowPlayingTitle(item, ep),
		Delivery: plan.Delivery,
		MediaURL: plan.URL,
		State:    StateLoading,
	}
	log.Info("Starting playback", "type", item.Type, "id", item.ID, "delivery", plan.Delivery, "identity", creds.Identity().String())
	c.notifyLocked()

	err = c.attachLocked(gen, plan)
	if err != nil {
		c.failLocked(toPlaybackError(err))
	}
	c.unlockAndDispatch()

	return err
}

func (c *Controller) attachLocked(gen uint64, plan Plan) error {
	if plan.Delivery == DeliveryProgressive {
		return c.sink.SetSource(plan.URL)
	}

	if c.factory != nil && c.factory.Supported() {
		engine, err := c.factory.New()
		if err != nil {
			return setupError(err)
		}
		c.engine = engine
		c.engineQuit = make(chan struct{})
		c.wg.Add(1)
		go c.pumpEngine(gen, engine, c.engineQuit, plan.URL)

		if err := engine.AttachMedia(c.sink); err != nil {
			return setupError(err)
		}
		return nil
	}

	if c.sink.CanPlayType(MimeHLS) || c.sink.CanPlayType(MimeHLSLegacy) {
		log.Debug("Using native HLS playback")
		return c.sink.SetSource(plan.URL)
	}

	return &domain.PlaybackError{Kind: domain.PlaybackUnsupported, Message: "HLS playback is not supported by the configured player."}
}

// Close tears down the session from any state and returns to idle
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.unlockAndDispatch()

	if c.session.State == StateIdle && c.engine == nil {
		return
	}
	c.teardownLocked()
	c.gen++

	c.session.State = StateClosed
	c.notifyLocked()
	c.session = Session{State: StateIdle}
	c.notifyLocked()
	log.Debug("Playback closed")
}

// Shutdown closes the session and stops the background listeners
func (c *Controller) Shutdown() {
	c.Close()
	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
}

// SelectSubtitle activates track id, or turns subtitles off with SubtitleOff
func (c *Controller) SelectSubtitle(id int) error {
	c.mu.Lock()
	defer c.unlockAndDispatch()

	if id != SubtitleOff && !hasTrack(c.session.SubtitleTracks, id) {
		return &domain.ValidationError{Field: "subtitle", Message: "Unknown subtitle track."}
	}

	if c.engine != nil {
		if err := c.engine.SetSubtitleTrack(id); err != nil {
			log.Warn("Failed to switch subtitle track", "track", id, "error", err)
			return &domain.PlaybackError{Kind: domain.PlaybackMedia, Message: "Could not switch subtitles.", Err: err}
		}
	}

	if id == SubtitleOff {
		c.session.ActiveSubtitleID = nil
	} else {
		c.session.ActiveSubtitleID = &id
	}
	c.notifyLocked()
	return nil
}

// teardownLocked disposes the engine in stop, detach, destroy order and resets the sink
func (c *Controller) teardownLocked() {
	if c.engine != nil {
		close(c.engineQuit)
		c.engine.StopLoad()
		c.engine.DetachMedia()
		c.engine.Destroy()
		c.engine = nil
		c.engineQuit = nil
	}
	if c.session.State != StateIdle {
		c.sink.Reset()
	}
}

func (c *Controller) pumpEngine(gen uint64, engine Engine, quit <-chan struct{}, url string) {
	defer c.wg.Done()
	events := engine.Events()
	for {
		select {
		case <-c.stop:
			return
		case <-quit:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handleEngineEvent(gen, engine, url, ev)
		}
	}
}

func (c *Controller) handleEngineEvent(gen uint64, engine Engine, url string, ev EngineEvent) {
	c.mu.Lock()
	defer c.unlockAndDispatch()

	if gen != c.gen {
		log.Trace("Dropping event from disposed engine", "event", ev.Type)
		return
	}

	switch ev.Type {
	case EventMediaAttached:
		if err := engine.LoadSource(url); err != nil {
			c.failLocked(setupError(err))
		}
		return
	case EventManifestParsed:
		c.replaceTracksLocked(ev.Tracks)
		c.transitionLocked(StatePlaying)
	case EventLevelLoaded:
		c.transitionLocked(StatePlaying)
	case EventFragBuffered:
		if c.session.Err == nil {
			c.transitionLocked(StatePlaying)
		}
	case EventError:
		if !ev.Fatal {
			log.Warn("Non-fatal engine error", "details", ev.Details)
			c.session.Warning = ev.Details
			c.notifyLocked()
			return
		}
		log.Error("Fatal engine error", "details", ev.Details)
		c.failLocked(classifyEngineError(ev))
	case EventSubtitleTracksUpdated:
		if len(ev.Tracks) > 0 {
			c.replaceTracksLocked(ev.Tracks)
			c.notifyLocked()
		}
	case EventSubtitleTrackSwitched:
		if ev.TrackID == SubtitleOff || !hasTrack(c.session.SubtitleTracks, ev.TrackID) {
			c.session.ActiveSubtitleID = nil
		} else {
			id := ev.TrackID
			c.session.ActiveSubtitleID = &id
		}
		c.notifyLocked()
	}
}

func (c *Controller) pumpSink() {
	defer c.wg.Done()
	events := c.sink.Events()
	for {
		select {
		case <-c.stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handleSinkEvent(ev)
		}
	}
}

func (c *Controller) handleSinkEvent(ev SinkEvent) {
	c.mu.Lock()
	defer c.unlockAndDispatch()

	if !c.session.Active() {
		return
	}

	switch ev.Type {
	case SinkPlaying:
		if c.session.State != StateError {
			c.session.Err = nil
			c.session.Message = ""
			c.transitionLocked(StatePlaying)
		}
	case SinkWaiting:
		if c.session.State == StatePlaying {
			c.transitionLocked(StateBuffering)
		}
	case SinkEnded:
		c.transitionLocked(StateEnded)
	case SinkError:
		perr := classifySinkError(ev.Code)
		if perr == nil {
			log.Debug("Ignoring aborted media load")
			return
		}
		c.failLocked(perr)
	case SinkPlayRejected:
		if ev.Aborted {
			return
		}
		c.failLocked(&domain.PlaybackError{Kind: domain.PlaybackMedia, Message: "Could not start playback: " + ev.Message + "."})
	}
}

func (c *Controller) transitionLocked(state State) {
	if c.session.State == state {
		return
	}
	if c.session.State == StateError && state != StateClosed {
		return
	}
	c.session.State = state
	c.notifyLocked()
}

func (c *Controller) failLocked(perr *domain.PlaybackError) {
	c.session.State = StateError
	c.session.Err = perr
	c.session.Message = perr.Message
	c.notifyLocked()
}

func (c *Controller) replaceTracksLocked(tracks []SubtitleTrack) {
	c.session.SubtitleTracks = append([]SubtitleTrack(nil), tracks...)
	if c.session.ActiveSubtitleID != nil && !hasTrack(tracks, *c.session.ActiveSubtitleID) {
		c.session.ActiveSubtitleID = nil
	}
}

// notifyLocked queues a snapshot; it is delivered by unlockAndDispatch once the lock is released
func (c *Controller) notifyLocked() {
	c.pending = append(c.pending, c.session.clone())
}

func (c *Controller) unlockAndDispatch() {
	pending := c.pending
	c.pending = nil
	listeners := append([]ChangeFunc(nil), c.listeners...)
	c.mu.Unlock()

	for _, snapshot := range pending {
		for _, fn := range listeners {
			fn(snapshot)
		}
	}
}

func hasTrack(tracks []SubtitleTrack, id int) bool {
	for _, t := range tracks {
		if t.ID == id {
			return true
		}
	}
	return false
}

func setupError(err error) *domain.PlaybackError {
	return &domain.PlaybackError{Kind: domain.PlaybackMedia, Message: "Setup Error: " + err.Error(), Err: err}
}

func toPlaybackError(err error) *domain.PlaybackError {
	var perr *domain.PlaybackError
	if errors.As(err, &perr) {
		return perr
	}
	return setupError(err)
}
