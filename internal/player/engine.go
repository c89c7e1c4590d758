package player

import (
	"errors"
	"sync"

	"github.com/PizzaHomicide/kiri/internal/log"
	"github.com/PizzaHomicide/kiri/internal/playback"
)

// Supported reports that mpv can act as the adaptive engine
func (p *MPV) Supported() bool {
	return true
}

// New creates an engine that drives this player's process
func (p *MPV) New() (playback.Engine, error) {
	return &mpvEngine{player: p, events: make(chan playback.EngineEvent, 32)}, nil
}

// mpvEngine loads adaptive streams into mpv and exposes its subtitle tracks.  Events are delivered only while it is
// attached to its player.
type mpvEngine struct {
	player *MPV

	// guarded by player.mu
	closed   bool
	closeOne sync.Once
	events   chan playback.EngineEvent
}

func (e *mpvEngine) Events() <-chan playback.EngineEvent {
	return e.events
}

// send must be called with player.mu held
func (e *mpvEngine) send(ev playback.EngineEvent) {
	if e.closed {
		return
	}
	select {
	case e.events <- ev:
	default:
		log.Warn("Dropping engine event, listener is not keeping up", "type", ev.Type)
	}
}

func (e *mpvEngine) AttachMedia(sink playback.Sink) error {
	p, ok := sink.(*MPV)
	if !ok || p != e.player {
		return errors.New("the mpv engine can only attach to its own player")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if e.closed {
		return errors.New("engine destroyed")
	}
	p.engine = e
	e.send(playback.EngineEvent{Type: playback.EventMediaAttached})
	return nil
}

func (e *mpvEngine) LoadSource(url string) error {
	p := e.player
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.engine != e {
		return errors.New("engine not attached")
	}
	return p.startLocked(url)
}

func (e *mpvEngine) SetSubtitleTrack(id int) error {
	if id == playback.SubtitleOff {
		return e.player.command("set_property", "sid", "no")
	}
	return e.player.command("set_property", "sid", id)
}

func (e *mpvEngine) StopLoad() {
	if err := e.player.command("stop"); err != nil {
		log.Trace("MPV stop skipped", "error", err)
	}
}

func (e *mpvEngine) DetachMedia() {
	p := e.player
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.engine == e {
		p.engine = nil
	}
}

func (e *mpvEngine) Destroy() {
	p := e.player
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.engine == e {
		p.engine = nil
	}
	e.closeOne.Do(func() {
		e.closed = true
		close(e.events)
	})
}
