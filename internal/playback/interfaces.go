package playback

// EngineEventType enumerates what an adaptive streaming engine reports
type EngineEventType int

const (
	// EventMediaAttached fires once the engine is bound to the sink; the source may only be loaded after it
	EventMediaAttached EngineEventType = iota
	// EventManifestParsed carries the subtitle tracks listed in the manifest
	EventManifestParsed
	EventLevelLoaded
	EventFragBuffered
	EventError
	EventSubtitleTracksUpdated
	EventSubtitleTrackSwitched
)

func (t EngineEventType) String() string {
	switch t {
	case EventMediaAttached:
		return "media-attached"
	case EventManifestParsed:
		return "manifest-parsed"
	case EventLevelLoaded:
		return "level-loaded"
	case EventFragBuffered:
		return "frag-buffered"
	case EventError:
		return "error"
	case EventSubtitleTracksUpdated:
		return "subtitle-tracks-updated"
	case EventSubtitleTrackSwitched:
		return "subtitle-track-switched"
	}
	return "unknown"
}

// EngineErrorType is the broad class of an engine error
type EngineErrorType int

const (
	ErrorTypeOther EngineErrorType = iota
	ErrorTypeNetwork
	ErrorTypeMedia
)

// Engine error details with dedicated user messages
const (
	DetailManifestLoadError   = "manifestLoadError"
	DetailManifestLoadTimeout = "manifestLoadTimeOut"
	DetailLevelLoadError      = "levelLoadError"
	DetailLevelLoadTimeout    = "levelLoadTimeOut"
)

// EngineEvent is a single notification from an Engine
type EngineEvent struct {
	Type EngineEventType
	// Tracks is set for EventManifestParsed and EventSubtitleTracksUpdated
	Tracks []SubtitleTrack
	// TrackID is set for EventSubtitleTrackSwitched, SubtitleOff when subtitles were turned off
	TrackID int
	// Fatal, ErrorType and Details are set for EventError
	Fatal     bool
	ErrorType EngineErrorType
	Details   string
}

// Engine is an adaptive (HLS) streaming engine bound to a media sink.  Implementations deliver events on the channel
// returned by Events until Destroy closes it.
type Engine interface {
	AttachMedia(sink Sink) error
	LoadSource(url string) error
	SetSubtitleTrack(id int) error
	StopLoad()
	DetachMedia()
	Destroy()
	Events() <-chan EngineEvent
}

// EngineFactory creates engines when the platform supports them
type EngineFactory interface {
	Supported() bool
	New() (Engine, error)
}

// SinkEventType enumerates what the media sink reports
type SinkEventType int

const (
	SinkPlaying SinkEventType = iota
	SinkWaiting
	SinkEnded
	SinkError
	// SinkPlayRejected means starting playback failed, Message holds the reason
	SinkPlayRejected
)

// MediaErrorCode mirrors the media element error codes
type MediaErrorCode int

const (
	MediaErrAborted         MediaErrorCode = 1
	MediaErrNetwork         MediaErrorCode = 2
	MediaErrDecode          MediaErrorCode = 3
	MediaErrSrcNotSupported MediaErrorCode = 4
)

// SinkEvent is a single notification from the media sink
type SinkEvent struct {
	Type    SinkEventType
	Code    MediaErrorCode
	Message string
	// Aborted marks a SinkPlayRejected caused by a deliberate source change
	Aborted bool
}

// HLS mime types probed for native adaptive playback
const (
	MimeHLS       = "application/vnd.apple.mpegurl"
	MimeHLSLegacy = "application/x-mpegURL"
)

// Sink is the media output element.  It plays progressive URLs directly and hosts an Engine for adaptive ones.
type Sink interface {
	CanPlayType(mime string) bool
	// SetSource starts direct playback of url
	SetSource(url string) error
	// Reset stops playback and drops the current source
	Reset()
	Events() <-chan SinkEvent
}
