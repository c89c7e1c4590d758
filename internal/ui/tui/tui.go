package tui

import (
	"sync"

	"github.com/PizzaHomicide/kiri/internal/playback"
	"github.com/PizzaHomicide/kiri/internal/service"
	"github.com/PizzaHomicide/kiri/internal/ui/tui/models"
	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the TUI until the user quits
func Run(app *service.App) error {
	p := tea.NewProgram(models.NewAppModel(app), tea.WithAltScreen())

	forward := newPlaybackForwarder(p.Send)
	app.OnPlaybackChange(forward.notify)
	go forward.run()
	defer forward.stop()

	_, err := p.Run()
	return err
}

// playbackForwarder hands playback snapshots to the program without blocking the controller.  Only the latest snapshot
// is kept; every snapshot is a complete state.
type playbackForwarder struct {
	send func(tea.Msg)

	mu     sync.Mutex
	latest playback.Session
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newPlaybackForwarder(send func(tea.Msg)) *playbackForwarder {
	return &playbackForwarder{
		send: send,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (f *playbackForwarder) notify(s playback.Session) {
	f.mu.Lock()
	f.latest = s
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *playbackForwarder) run() {
	for {
		select {
		case <-f.done:
			return
		case <-f.wake:
			f.mu.Lock()
			s := f.latest
			f.mu.Unlock()
			f.send(models.PlaybackChangedMsg{Session: s})
		}
	}
}

func (f *playbackForwarder) stop() {
	f.once.Do(func() { close(f.done) })
}
