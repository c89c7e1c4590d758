package playback

import (
	"fmt"

	"github.com/PizzaHomicide/kiri/internal/domain"
)

// State of the playback session
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StateBuffering
	StateEnded
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StateBuffering:
		return "buffering"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// SubtitleOff selects no subtitle track
const SubtitleOff = -1

type SubtitleTrack struct {
	ID       int
	Name     string
	Language string
}

// Label is the name shown in a track picker
func (t SubtitleTrack) Label() string {
	switch {
	case t.Name != "" && t.Language != "":
		return fmt.Sprintf("%s (%s)", t.Name, t.Language)
	case t.Name != "":
		return t.Name
	case t.Language != "":
		return t.Language
	}
	return fmt.Sprintf("Track %d", t.ID)
}

// Session is a snapshot of what is playing.  Snapshots are copies and safe to keep.
type Session struct {
	Item     domain.ContentItem
	Episode  *domain.Episode
	Title    string
	Delivery Delivery
	MediaURL string
	State    State
	// SubtitleTracks lists the tracks the engine found, empty for direct playback
	SubtitleTracks []SubtitleTrack
	// ActiveSubtitleID is nil when subtitles are off
	ActiveSubtitleID *int
	// Message is the user facing error text when State is StateError
	Message string
	Err     *domain.PlaybackError
	// Warning holds the details of the last non-fatal engine error.  It never changes State.
	Warning string
}

// Active reports whether the session represents something loaded or playing
func (s Session) Active() bool {
	return s.State != StateIdle && s.State != StateClosed
}

// ActiveSubtitle returns the selected track, false when subtitles are off
func (s Session) ActiveSubtitle() (SubtitleTrack, bool) {
	if s.ActiveSubtitleID == nil {
		return SubtitleTrack{}, false
	}
	for _, t := range s.SubtitleTracks {
		if t.ID == *s.ActiveSubtitleID {
			return t, true
		}
	}
	return SubtitleTrack{}, false
}

func (s Session) clone() Session {
	out := s
	if s.Episode != nil {
		ep := *s.Episode
		out.Episode = &ep
	}
	if s.SubtitleTracks != nil {
		out.SubtitleTracks = append([]SubtitleTrack(nil), s.SubtitleTracks...)
	}
	if s.ActiveSubtitleID != nil {
		id := *s.ActiveSubtitleID
		out.ActiveSubtitleID = &id
	}
	return out
}

// NowPlayingTitle is the heading for the player: the item name, or "{series} - S{season} E{episode} - {title}" for an
// episode.
func NowPlayingTitle(item domain.ContentItem, episode *domain.Episode) string {
	if episode == nil {
		return item.Name
	}
	title := episode.Title
	if title == "" {
		title = "Episode"
	}
	return fmt.Sprintf("%s - S%d E%d - %s", item.Name, episode.Season, episode.EpisodeNumber, title)
}
