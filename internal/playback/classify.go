package playback

import (
	"fmt"

	"github.com/PizzaHomicide/kiri/internal/domain"
)

// classifyEngineError maps a fatal engine error to the error shown to the user
func classifyEngineError(ev EngineEvent) *domain.PlaybackError {
	var (
		kind    domain.PlaybackErrorKind
		details string
	)

	switch {
	case ev.Details == DetailManifestLoadError || ev.Details == DetailManifestLoadTimeout:
		kind = domain.PlaybackManifest
		details = "Could not load stream data (manifest error). Check connection or stream source."
	case ev.Details == DetailLevelLoadError || ev.Details == DetailLevelLoadTimeout:
		kind = domain.PlaybackNetwork
		details = "Network error loading video segment. Check connection."
	case ev.Details != "":
		kind = kindOf(ev.ErrorType)
		details = ev.Details
	case ev.ErrorType == ErrorTypeNetwork:
		kind = domain.PlaybackNetwork
		details = "Network error occurred during playback."
	case ev.ErrorType == ErrorTypeMedia:
		kind = domain.PlaybackMedia
		details = "Media playback error occurred."
	default:
		kind = domain.PlaybackMedia
		details = "Unknown HLS error"
	}

	return &domain.PlaybackError{Kind: kind, Message: "Playback Error: " + details}
}

func kindOf(t EngineErrorType) domain.PlaybackErrorKind {
	if t == ErrorTypeNetwork {
		return domain.PlaybackNetwork
	}
	return domain.PlaybackMedia
}

// classifySinkError maps a media element error code.  Aborted returns nil: aborts happen on every source change and
// are never shown.
func classifySinkError(code MediaErrorCode) *domain.PlaybackError {
	switch code {
	case MediaErrAborted:
		return nil
	case MediaErrNetwork:
		return &domain.PlaybackError{Kind: domain.PlaybackNetwork, Message: "A network error caused the video download to fail."}
	case MediaErrDecode:
		return &domain.PlaybackError{
			Kind:    domain.PlaybackMedia,
			Message: "The video playback was aborted due to a corruption problem or because the stream uses features the player does not support.",
		}
	case MediaErrSrcNotSupported:
		return &domain.PlaybackError{
			Kind:    domain.PlaybackUnsupported,
			Message: "The video could not be loaded, either because the server or network failed or because the format is not supported.",
		}
	}
	return &domain.PlaybackError{Kind: domain.PlaybackMedia, Message: fmt.Sprintf("An unknown error occurred (Code %d).", code)}
}
