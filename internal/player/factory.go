package player

import (
	"os/exec"

	"github.com/PizzaHomicide/kiri/internal/config"
	"github.com/PizzaHomicide/kiri/internal/log"
	"github.com/PizzaHomicide/kiri/internal/playback"
)

// New creates the media sink selected in the configuration, and the engine factory when the player can act as one.
// "mpv" drives streams and subtitle tracks through mpv's IPC; "native" only hands URLs to mpv.
func New(cfg config.PlayerConfig) (playback.Sink, playback.EngineFactory, error) {
	log.Info("Creating video player", "type", cfg.Type)

	switch cfg.Type {
	case "mpv", "":
		p := newChecked(cfg)
		return p, p, nil
	case "native":
		return newChecked(cfg), nil, nil
	default:
		log.Warn("Unknown player type, falling back to MPV", "type", cfg.Type)
		p := newChecked(cfg)
		return p, p, nil
	}
}

func newChecked(cfg config.PlayerConfig) *MPV {
	p := NewMPV(cfg)
	if _, err := exec.LookPath(p.path); err != nil {
		log.Warn("MPV binary not found, playback will fail until it is installed", "path", p.path)
	}
	return p
}
