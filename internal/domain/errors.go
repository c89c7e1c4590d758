package domain

import (
	"errors"
	"fmt"
)

// ValidationError is returned when input is rejected before any network or engine work happens
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// AuthenticationError means the provider rejected the credentials
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return "authentication failed"
	}
	return "authentication failed: " + e.Message
}

// UpstreamError is a non-success response from the provider or the relay in front of it
type UpstreamError struct {
	Status  int
	Message string
	// Raw is a truncated copy of the upstream body, useful for the log but not for users
	Raw string
	Err error
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status == 0 {
		return "upstream error: " + msg
	}
	return fmt.Sprintf("upstream error (status %d): %s", e.Status, msg)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// TimeoutError means a provider request exceeded the gateway timeout
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return "request timed out: " + e.Op
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// ParseError means the provider answered with a body that is not the JSON shape expected
type ParseError struct {
	Context string
	// Raw is a truncated copy of the offending body
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "invalid response: " + e.Context
	}
	return fmt.Sprintf("invalid response: %s: %v", e.Context, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// PlaybackErrorKind classifies playback failures
type PlaybackErrorKind int

const (
	PlaybackNetwork PlaybackErrorKind = iota
	PlaybackMedia
	PlaybackManifest
	PlaybackUnsupported
)

func (k PlaybackErrorKind) String() string {
	switch k {
	case PlaybackNetwork:
		return "network"
	case PlaybackMedia:
		return "media"
	case PlaybackManifest:
		return "manifest"
	case PlaybackUnsupported:
		return "unsupported"
	}
	return "unknown"
}

// PlaybackError is raised by the playback controller.  Message is already user facing.
type PlaybackError struct {
	Kind    PlaybackErrorKind
	Message string
	Err     error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback %s error: %s", e.Kind, e.Message)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// StorageError wraps a failure of the persistent key-value store.  It is never fatal to the caller's operation.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// UserMessage renders an error as the single line shown in the UI
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		validationErr *ValidationError
		authErr       *AuthenticationError
		upstreamErr   *UpstreamError
		timeoutErr    *TimeoutError
		parseErr      *ParseError
		playbackErr   *PlaybackError
		storageErr    *StorageError
	)

	switch {
	case errors.As(err, &validationErr):
		return validationErr.Message
	case errors.As(err, &authErr):
		if authErr.Message != "" {
			return authErr.Message
		}
		return "Authentication failed. Check server URL and credentials."
	case errors.As(err, &timeoutErr):
		return "The server took too long to respond."
	case errors.As(err, &upstreamErr):
		if upstreamErr.Message != "" {
			return upstreamErr.Message
		}
		return fmt.Sprintf("The server returned an error (%d).", upstreamErr.Status)
	case errors.As(err, &parseErr):
		return "The server returned data that could not be understood."
	case errors.As(err, &playbackErr):
		return playbackErr.Message
	case errors.As(err, &storageErr):
		return "Could not save settings locally."
	}
	return err.Error()
}
