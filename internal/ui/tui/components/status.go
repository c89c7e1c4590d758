package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/PizzaHomicide/kiri/internal/playback"
	"github.com/PizzaHomicide/kiri/internal/ui/tui/styles"
	"github.com/PizzaHomicide/kiri/internal/ui/tui/util"
)

// PlayerStatus renders a one line summary of the playback session, empty when nothing is playing
func PlayerStatus(width int, s playback.Session) string {
	if !s.Active() {
		return ""
	}
	if s.State == playback.StateError {
		return styles.Error.Render(util.TruncateString(s.Message, width))
	}

	var (
		label string
		style lipgloss.Style
	)
	switch s.State {
	case playback.StatePlaying:
		label, style = "Playing", styles.Success
	case playback.StateBuffering:
		label, style = "Buffering", styles.Muted
	case playback.StateEnded:
		label, style = "Ended", styles.Muted
	default:
		label, style = "Loading", styles.Muted
	}

	detail := s.Title
	if len(s.SubtitleTracks) > 0 {
		subtitle := "off"
		if track, ok := s.ActiveSubtitle(); ok {
			subtitle = track.Label()
		}
		detail += fmt.Sprintf("  [subtitles: %s]", subtitle)
	}
	if s.Warning != "" && (s.State == playback.StateLoading || s.State == playback.StateBuffering) {
		detail += fmt.Sprintf("  [%s]", s.Warning)
	}
	return style.Render(label) + ": " + util.TruncateString(detail, width-len(label)-2)
}
