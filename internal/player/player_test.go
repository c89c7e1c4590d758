package player

import (
	"bufio"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PizzaHomicide/kiri/internal/config"
	"github.com/PizzaHomicide/kiri/internal/playback"
)

func TestParseArgs(t *testing.T) {
	assert.Equal(t, []string{"--fs", "--title=My Title", "--volume=50"}, ParseArgs(`--fs "--title=My Title"  --volume=50`))
	assert.Nil(t, ParseArgs(""))
	assert.Equal(t, []string{"--sub-font=Noto Sans"}, ParseArgs(`'--sub-font=Noto Sans'`))
	assert.Equal(t, []string{"--title=it's on", "--mute=yes"}, ParseArgs("\"--title=it's on\"\t--mute=yes\n"))
}

func TestTranslateEvent(t *testing.T) {
	tests := []struct {
		name  string
		event MPVEvent
		want  playback.SinkEvent
		ok    bool
	}{
		{"FileLoaded", MPVEvent{Event: "file-loaded"}, playback.SinkEvent{Type: playback.SinkPlaying}, true},
		{"CacheStall", MPVEvent{Event: "property-change", Name: "paused-for-cache", Data: json.RawMessage("true")},
			playback.SinkEvent{Type: playback.SinkWaiting}, true},
		{"CacheResume", MPVEvent{Event: "property-change", Name: "paused-for-cache", Data: json.RawMessage("false")},
			playback.SinkEvent{Type: playback.SinkPlaying}, true},
		{"OtherProperty", MPVEvent{Event: "property-change", Name: "playback-time", Data: json.RawMessage("12.5")},
			playback.SinkEvent{}, false},
		{"EOF", MPVEvent{Event: "end-file", Reason: "eof"}, playback.SinkEvent{Type: playback.SinkEnded}, true},
		{"Quit", MPVEvent{Event: "end-file", Reason: "quit"}, playback.SinkEvent{Type: playback.SinkEnded}, true},
		{"Stop", MPVEvent{Event: "end-file", Reason: "stop"},
			playback.SinkEvent{Type: playback.SinkError, Code: playback.MediaErrAborted}, true},
		{"Error", MPVEvent{Event: "end-file", Reason: "error", FileError: "loading failed"},
			playback.SinkEvent{Type: playback.SinkError, Code: playback.MediaErrNetwork, Message: "loading failed"}, true},
		{"Unknown", MPVEvent{Event: "seek"}, playback.SinkEvent{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := translateEvent(tt.event)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileErrorCode(t *testing.T) {
	assert.Equal(t, playback.MediaErrSrcNotSupported, fileErrorCode("unrecognized file format"))
	assert.Equal(t, playback.MediaErrDecode, fileErrorCode("no audio or video data played"))
	assert.Equal(t, playback.MediaErrNetwork, fileErrorCode("loading failed"))
	assert.Equal(t, playback.MediaErrNetwork, fileErrorCode(""))
}

func TestIPCClient(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	ipc := newIPCClient("unused")
	ipc.attach(client)
	defer ipc.Close()

	received := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(server).ReadString('\n')
		received <- line
	}()
	require.NoError(t, ipc.ObserveProperty(1, "paused-for-cache"))

	select {
	case line := <-received:
		assert.JSONEq(t, `{"command":["observe_property",1,"paused-for-cache"]}`, strings.TrimSpace(line))
	case <-time.After(time.Second):
		t.Fatal("command not received")
	}

	go func() {
		_, _ = server.Write([]byte(`{"request_id":0,"error":"success"}` + "\n"))
		_, _ = server.Write([]byte("not json\n"))
		_, _ = server.Write([]byte(`{"event":"end-file","reason":"eof"}` + "\n"))
		server.Close()
	}()

	var events []MPVEvent
	for ev := range ipc.Events() {
		events = append(events, ev)
	}
	require.Len(t, events, 1)
	assert.Equal(t, "end-file", events[0].Event)
	assert.Equal(t, "eof", events[0].Reason)
}

func TestIPCClientCloseWithUnreadEvents(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	ipc := newIPCClient("unused")
	ipc.attach(client)

	go func() {
		for {
			if _, err := server.Write([]byte(`{"event":"idle"}` + "\n")); err != nil {
				return
			}
		}
	}()
	require.Eventually(t, func() bool { return len(ipc.Events()) == cap(ipc.Events()) }, time.Second, 5*time.Millisecond)

	require.NoError(t, ipc.Close())

	drained := make(chan struct{})
	go func() {
		for range ipc.Events() {
		}
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("event channel not closed after Close")
	}
}

func TestSendCommandWithoutConnection(t *testing.T) {
	assert.Error(t, newIPCClient("unused").SendCommand("quit"))
}

func TestSocketPath(t *testing.T) {
	t.Setenv("MPV_IPC_SOCKET", "/tmp/custom-socket")
	assert.Equal(t, "/tmp/custom-socket", SocketPath())

	t.Setenv("MPV_IPC_SOCKET", "")
	assert.NotEqual(t, SocketPath(), SocketPath())
}

func TestProgressTracker(t *testing.T) {
	tracker := progressTracker{lastLogged: -1}
	tracker.observe(MPVEvent{Event: "property-change", Name: "duration", Data: json.RawMessage("200")})
	tracker.observe(MPVEvent{Event: "property-change", Name: "playback-time", Data: json.RawMessage("50")})
	assert.InDelta(t, 25.0, tracker.percent(), 0.001)
	assert.Equal(t, 25, tracker.lastLogged)
}

func TestNew(t *testing.T) {
	sink, engines, err := New(config.PlayerConfig{Type: "mpv", Path: "/nonexistent/mpv"})
	require.NoError(t, err)
	require.NotNil(t, engines)
	assert.True(t, engines.Supported())
	assert.True(t, sink.CanPlayType(playback.MimeHLS))
	assert.True(t, sink.CanPlayType(playback.MimeHLSLegacy))
	assert.False(t, sink.CanPlayType("video/webm"))

	sink, engines, err = New(config.PlayerConfig{Type: "native", Path: "/nonexistent/mpv"})
	require.NoError(t, err)
	assert.NotNil(t, sink)
	assert.Nil(t, engines)

	sink, engines, err = New(config.PlayerConfig{Type: "custom", Path: "/nonexistent/mpv"})
	require.NoError(t, err, "unknown types fall back to mpv")
	assert.NotNil(t, sink)
	assert.NotNil(t, engines)
}

func TestTranslateEngineEvent(t *testing.T) {
	var tracks []playback.SubtitleTrack

	trackList := `[{"id":1,"type":"video"},{"id":1,"type":"sub","title":"English","lang":"en"},{"id":2,"type":"sub","lang":"fr"}]`
	ev, ok := translateEngineEvent(MPVEvent{Event: "property-change", Name: "track-list", Data: json.RawMessage(trackList)}, &tracks)
	require.True(t, ok)
	assert.Equal(t, playback.EventSubtitleTracksUpdated, ev.Type)
	assert.Equal(t, []playback.SubtitleTrack{{ID: 1, Name: "English", Language: "en"}, {ID: 2, Language: "fr"}}, ev.Tracks)

	ev, ok = translateEngineEvent(MPVEvent{Event: "file-loaded"}, &tracks)
	require.True(t, ok)
	assert.Equal(t, playback.EventManifestParsed, ev.Type)
	assert.Len(t, ev.Tracks, 2)

	ev, ok = translateEngineEvent(MPVEvent{Event: "property-change", Name: "sid", Data: json.RawMessage("2")}, &tracks)
	require.True(t, ok)
	assert.Equal(t, 2, ev.TrackID)

	ev, ok = translateEngineEvent(MPVEvent{Event: "property-change", Name: "sid", Data: json.RawMessage("false")}, &tracks)
	require.True(t, ok)
	assert.Equal(t, playback.SubtitleOff, ev.TrackID)

	ev, ok = translateEngineEvent(MPVEvent{Event: "end-file", Reason: "error", FileError: "loading failed"}, &tracks)
	require.True(t, ok)
	assert.True(t, ev.Fatal)
	assert.Equal(t, playback.DetailManifestLoadError, ev.Details)

	_, ok = translateEngineEvent(MPVEvent{Event: "end-file", Reason: "eof"}, &tracks)
	assert.False(t, ok)
}

func TestEngineLifecycle(t *testing.T) {
	p := NewMPV(config.PlayerConfig{Path: "/nonexistent/mpv"})
	engine, err := p.New()
	require.NoError(t, err)

	assert.Error(t, engine.AttachMedia(NewMPV(config.PlayerConfig{})))
	assert.Error(t, engine.LoadSource("http://example.com/live/u/p/1.m3u8"))

	require.NoError(t, engine.AttachMedia(p))
	ev := <-engine.Events()
	assert.Equal(t, playback.EventMediaAttached, ev.Type)

	// Not running yet
	assert.Error(t, engine.SetSubtitleTrack(1))

	engine.StopLoad()
	engine.DetachMedia()
	assert.Error(t, engine.LoadSource("http://example.com/live/u/p/1.m3u8"))

	engine.Destroy()
	engine.Destroy()
	_, open := <-engine.Events()
	assert.False(t, open)
	assert.Error(t, engine.AttachMedia(p))
}

func TestSetSourceFailsWithoutBinary(t *testing.T) {
	p := NewMPV(config.PlayerConfig{Path: "/nonexistent/mpv"})
	err := p.SetSource("http://example.com/movie/u/p/1.mkv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start MPV")
	p.Reset()
}
