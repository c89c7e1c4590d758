package models

import (
	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/playback"
	"github.com/PizzaHomicide/kiri/internal/series"
	"github.com/PizzaHomicide/kiri/internal/service"
)

// AutoLoginResultMsg is sent once the remembered session has been checked
type AutoLoginResultMsg struct {
	Identity domain.Identity
	Found    bool
	Err      error
}

// LoginResultMsg is sent when a login attempt from the form completes
type LoginResultMsg struct {
	Identity domain.Identity
	Err      error
}

// SectionLoadedMsg is sent when a catalog section finished loading.  Retry is set when it failed.
type SectionLoadedMsg struct {
	Section domain.ContentType
	Retry   *service.RetryCommand
	Err     error
}

// SeriesOpenedMsg is sent when the seasons of a series have been fetched
type SeriesOpenedMsg struct {
	Series  domain.ContentItem
	Seasons []series.Season
	Err     error
}

// PlayResultMsg is sent when starting playback returned
type PlayResultMsg struct {
	Title string
	Err   error
}

// PlaybackChangedMsg carries a playback session snapshot after every transition
type PlaybackChangedMsg struct {
	Session playback.Session
}

// StatusMsg shows a transient line in the browse view
type StatusMsg struct {
	Text  string
	Error bool
}
