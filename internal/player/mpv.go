// Package player runs the external media player and reports its state as playback sink and engine events.
package player

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/PizzaHomicide/kiri/internal/config"
	"github.com/PizzaHomicide/kiri/internal/log"
	"github.com/PizzaHomicide/kiri/internal/playback"
)

// Properties observed over IPC
const (
	propPausedForCache = iota + 1
	propPlaybackTime
	propDuration
	propTrackList
	propSubtitleID
)

var observedProperties = map[int]string{
	propPausedForCache: "paused-for-cache",
	propPlaybackTime:   "playback-time",
	propDuration:       "duration",
	propTrackList:      "track-list",
	propSubtitleID:     "sid",
}

// MPV plays media in an external mpv process.  It is the playback sink, and it also acts as the engine factory so the
// controller can drive subtitle tracks through the same process.  mpv demuxes HLS itself, so it reports native support
// for the HLS mime types.
type MPV struct {
	path string
	args []string

	mu     sync.Mutex
	gen    uint64
	cmd    *exec.Cmd
	ipc    *ipcClient
	socket string
	cancel context.CancelFunc
	engine *mpvEngine
	events chan playback.SinkEvent
}

func NewMPV(cfg config.PlayerConfig) *MPV {
	path := cfg.Path
	if path == "" {
		path = "mpv"
	}
	return &MPV{
		path:   path,
		args:   ParseArgs(cfg.Args),
		events: make(chan playback.SinkEvent, 32),
	}
}

func (p *MPV) CanPlayType(mime string) bool {
	return mime == playback.MimeHLS || mime == playback.MimeHLSLegacy
}

func (p *MPV) Events() <-chan playback.SinkEvent {
	return p.events
}

// SetSource replaces any running instance with a new mpv playing url
func (p *MPV) SetSource(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startLocked(url)
}

func (p *MPV) startLocked(url string) error {
	p.stopLocked()
	p.gen++
	gen := p.gen

	socket := SocketPath()
	args := []string{
		"--no-terminal",
		"--keep-open=no",
		"--force-window=immediate",
		"--input-ipc-server=" + socket,
	}
	args = append(args, p.args...)
	args = append(args, url)

	// The URL embeds the password, so only the socket is logged
	log.Info("Starting MPV", "path", p.path, "socket", socket)
	cmd := exec.Command(p.path, args...)
	setupPlayerProcess(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start MPV: %w", err)
	}

	go func() {
		err := cmd.Wait()
		log.Debug("MPV process exited", "error", err)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	ipc := newIPCClient(socket)
	p.cmd, p.ipc, p.socket, p.cancel = cmd, ipc, socket, cancel

	go p.monitor(ctx, gen, ipc)
	return nil
}

// Reset stops the running instance.  Events it may still produce are dropped.
func (p *MPV) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.gen++
}

func (p *MPV) stopLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.ipc != nil {
		p.ipc.Close()
		p.ipc = nil
	}
	if p.cmd != nil {
		log.Info("Stopping MPV playback")
		if err := terminatePlayerProcess(p.cmd); err != nil {
			log.Debug("Failed to stop MPV", "error", err)
		}
		p.cmd = nil
	}
	if p.socket != "" {
		if err := removeSocket(p.socket); err != nil {
			log.Warn("Failed to remove MPV socket", "path", p.socket, "error", err)
		}
		p.socket = ""
	}
}

// command sends an IPC command to the running instance
func (p *MPV) command(args ...interface{}) error {
	p.mu.Lock()
	ipc := p.ipc
	p.mu.Unlock()

	if ipc == nil {
		return fmt.Errorf("MPV is not running")
	}
	return ipc.SendCommand(args...)
}

func (p *MPV) emit(gen uint64, ev playback.SinkEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return
	}
	select {
	case p.events <- ev:
	default:
		log.Warn("Dropping player event, listener is not keeping up", "type", ev.Type)
	}
}

// emitEngine forwards to the attached engine.  It reports false when no engine is attached.
func (p *MPV) emitEngine(gen uint64, ev playback.EngineEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen || p.engine == nil {
		return false
	}
	p.engine.send(ev)
	return true
}

func (p *MPV) monitor(ctx context.Context, gen uint64, ipc *ipcClient) {
	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := ipc.WaitForConnection(connCtx, 40, 250*time.Millisecond); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Error("Failed to connect to MPV", "error", err)
		p.emit(gen, playback.SinkEvent{Type: playback.SinkPlayRejected, Message: "the player did not respond"})
		return
	}

	for id, name := range observedProperties {
		if err := ipc.ObserveProperty(id, name); err != nil {
			log.Warn("Failed to observe MPV property", "property", name, "error", err)
		}
	}

	var (
		progress = progressTracker{lastLogged: -1}
		tracks   []playback.SubtitleTrack
	)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ipc.Events():
			if !ok {
				// The window was closed without an end-file event
				p.emit(gen, playback.SinkEvent{Type: playback.SinkEnded})
				return
			}
			progress.observe(event)

			if engineEvent, ok := translateEngineEvent(event, &tracks); ok {
				if p.emitEngine(gen, engineEvent) && engineEvent.Type == playback.EventError {
					return
				}
			}

			if sinkEvent, ok := translateEvent(event); ok {
				p.emit(gen, sinkEvent)
				if sinkEvent.Type == playback.SinkEnded || sinkEvent.Type == playback.SinkError {
					return
				}
			}
		}
	}
}

// translateEvent maps an mpv event to a sink event, false when it has no playback meaning
func translateEvent(event MPVEvent) (playback.SinkEvent, bool) {
	switch event.Event {
	case "file-loaded", "playback-restart":
		return playback.SinkEvent{Type: playback.SinkPlaying}, true
	case "property-change":
		if event.Name != "paused-for-cache" {
			return playback.SinkEvent{}, false
		}
		var paused bool
		if err := json.Unmarshal(event.Data, &paused); err != nil {
			return playback.SinkEvent{}, false
		}
		if paused {
			return playback.SinkEvent{Type: playback.SinkWaiting}, true
		}
		return playback.SinkEvent{Type: playback.SinkPlaying}, true
	case "end-file":
		switch event.Reason {
		case "eof", "quit":
			return playback.SinkEvent{Type: playback.SinkEnded}, true
		case "error":
			return playback.SinkEvent{Type: playback.SinkError, Code: fileErrorCode(event.FileError), Message: event.FileError}, true
		case "stop", "redirect":
			return playback.SinkEvent{Type: playback.SinkError, Code: playback.MediaErrAborted}, true
		}
	}
	return playback.SinkEvent{}, false
}

// translateEngineEvent maps mpv events that concern stream loading and subtitle tracks.  tracks holds the subtitle
// tracks seen so far for this file.
func translateEngineEvent(event MPVEvent, tracks *[]playback.SubtitleTrack) (playback.EngineEvent, bool) {
	switch event.Event {
	case "file-loaded":
		return playback.EngineEvent{Type: playback.EventManifestParsed, Tracks: *tracks}, true
	case "playback-restart":
		return playback.EngineEvent{Type: playback.EventFragBuffered}, true
	case "end-file":
		if event.Reason != "error" {
			return playback.EngineEvent{}, false
		}
		details := event.FileError
		if fileErrorCode(event.FileError) == playback.MediaErrNetwork {
			details = playback.DetailManifestLoadError
		}
		return playback.EngineEvent{
			Type:      playback.EventError,
			Fatal:     true,
			ErrorType: playback.ErrorTypeNetwork,
			Details:   details,
		}, true
	case "property-change":
		switch event.Name {
		case "track-list":
			parsed, err := parseSubtitleTracks(event.Data)
			if err != nil {
				log.Warn("Failed to parse MPV track list", "error", err)
				return playback.EngineEvent{}, false
			}
			*tracks = parsed
			return playback.EngineEvent{Type: playback.EventSubtitleTracksUpdated, Tracks: parsed}, true
		case "sid":
			return playback.EngineEvent{Type: playback.EventSubtitleTrackSwitched, TrackID: parseSubtitleID(event.Data)}, true
		}
	}
	return playback.EngineEvent{}, false
}

type mpvTrack struct {
	ID    int    `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	Lang  string `json:"lang"`
}

func parseSubtitleTracks(data json.RawMessage) ([]playback.SubtitleTrack, error) {
	var all []mpvTrack
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}

	var subs []playback.SubtitleTrack
	for _, t := range all {
		if t.Type != "sub" {
			continue
		}
		subs = append(subs, playback.SubtitleTrack{ID: t.ID, Name: t.Title, Language: t.Lang})
	}
	return subs, nil
}

// parseSubtitleID reads the sid property, which is a track id or false when subtitles are off
func parseSubtitleID(data json.RawMessage) int {
	var id int
	if err := json.Unmarshal(data, &id); err != nil {
		return playback.SubtitleOff
	}
	return id
}

// fileErrorCode maps mpv's file_error strings onto media element error codes
func fileErrorCode(fileError string) playback.MediaErrorCode {
	msg := strings.ToLower(fileError)
	switch {
	case strings.Contains(msg, "unrecognized file format"), strings.Contains(msg, "unsupported"):
		return playback.MediaErrSrcNotSupported
	case strings.Contains(msg, "no audio or video"), strings.Contains(msg, "decod"):
		return playback.MediaErrDecode
	}
	return playback.MediaErrNetwork
}

// progressTracker logs playback progress in coarse steps
type progressTracker struct {
	playbackTime float64
	duration     float64
	// Percentages arrive many times per second; only log when it moved
	lastLogged int
}

func (t *progressTracker) observe(event MPVEvent) {
	if event.Event != "property-change" {
		return
	}

	var value float64
	if err := json.Unmarshal(event.Data, &value); err != nil {
		return
	}

	switch event.Name {
	case "duration":
		t.duration = value
	case "playback-time":
		t.playbackTime = value
		progress := int(t.percent())
		if progress != t.lastLogged && (progress%5 == 0 || absInt(t.lastLogged-progress) >= 5) {
			log.Debug("Playback progress", "percent", progress)
			t.lastLogged = progress
		}
	}
}

func (t *progressTracker) percent() float64 {
	if t.playbackTime == 0 || t.duration == 0 {
		return 0
	}
	return (t.playbackTime / t.duration) * 100
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
