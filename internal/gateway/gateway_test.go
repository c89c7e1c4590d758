package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/log"
	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreds(server string) domain.Credentials {
	return domain.Credentials{ServerURL: server, Username: "alice", Password: "p@ss/word"}
}

func TestBuildAPIURL(t *testing.T) {
	u, err := BuildAPIURL(testCreds("http://example.com:8080/"), domain.ActionSeriesInfo, domain.Params{"series_id": "42"})
	require.NoError(t, err)
	assert.Equal(t, "http://example.com:8080/player_api.php?action=get_series_info&password=p%40ss%2Fword&series_id=42&username=alice", u)
}

func TestRedact(t *testing.T) {
	creds := testCreds("http://x")
	u, _ := BuildAPIURL(creds, domain.ActionUserInfo, nil)
	out := Redact(u, creds)
	assert.NotContains(t, out, "p%40ss")
	assert.Contains(t, out, "password=***")
	assert.Contains(t, out, "alice")

	assert.Equal(t, "http://x/live/alice/***/1.m3u8", Redact("http://x/live/alice/p@ss%2Fword/1.m3u8", creds))
	assert.Equal(t, "upstream said ***", Redact("upstream said p@ss/word", creds))
}

func TestRedactShortPassword(t *testing.T) {
	creds := domain.Credentials{ServerURL: "http://x", Username: "alice", Password: "1"}

	assert.Equal(t, "status 1: HTTP/1.1 502", Redact("status 1: HTTP/1.1 502", creds))

	u, _ := BuildAPIURL(creds, domain.ActionUserInfo, nil)
	out := Redact(u, creds)
	assert.Contains(t, out, "password=***")
	assert.NotContains(t, out, "password=1")

	assert.Equal(t, "http://x/series/alice/***/1.mkv", Redact("http://x/series/alice/1/1.mkv", creds))
}

func TestDirectCallSuccess(t *testing.T) {
	var gotUA, gotAction string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAction = r.URL.Query().Get("action")
		assert.Equal(t, "/player_api.php", r.URL.Path)
		assert.Equal(t, "p@ss/word", r.URL.Query().Get("password"))
		_, _ = w.Write([]byte(`{"user_info":{"auth":1}}`))
	}))
	defer srv.Close()

	d := NewDirect(Options{UserAgent: "kiri-test"})
	data, err := d.Call(context.Background(), testCreds(srv.URL), domain.ActionUserInfo, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_info":{"auth":1}}`, string(data))
	assert.Equal(t, "kiri-test", gotUA)
	assert.Equal(t, "get_user_info", gotAction)
}

func TestDirectDecodesBrotli(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "br")
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		_, _ = bw.Write([]byte(`[{"stream_id":1}]`))
		_ = bw.Close()
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	data, err := NewDirect(Options{}).Call(context.Background(), testCreds(srv.URL), domain.ActionVODStreams, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"stream_id":1}]`, string(data))
}

func TestDirectErrors(t *testing.T) {
	t.Run("ValidationBeforeNetwork", func(t *testing.T) {
		_, err := NewDirect(Options{}).Call(context.Background(), domain.Credentials{}, domain.ActionUserInfo, nil)
		var validationErr *domain.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("UpstreamStatus", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"message":"maintenance"}`))
		}))
		defer srv.Close()

		_, err := NewDirect(Options{}).Call(context.Background(), testCreds(srv.URL), domain.ActionVODStreams, nil)
		var upstreamErr *domain.UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
		assert.Equal(t, http.StatusServiceUnavailable, upstreamErr.Status)
		assert.Equal(t, "maintenance", upstreamErr.Message)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>nope</html>`))
		}))
		defer srv.Close()

		_, err := NewDirect(Options{}).Call(context.Background(), testCreds(srv.URL), domain.ActionVODStreams, nil)
		var parseErr *domain.ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Contains(t, parseErr.Raw, "nope")
	})

	t.Run("Timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		_, err := NewDirect(Options{Timeout: 50 * time.Millisecond}).Call(context.Background(), testCreds(srv.URL), domain.ActionVODStreams, nil)
		var timeoutErr *domain.TimeoutError
		assert.ErrorAs(t, err, &timeoutErr)
	})

	t.Run("Unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewDirect(Options{}).Call(context.Background(), testCreds(url), domain.ActionVODStreams, nil)
		var upstreamErr *domain.UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
		assert.Equal(t, 0, upstreamErr.Status)
		assert.NotContains(t, err.Error(), "p@ss")
	})
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "timeout", outcome(&domain.TimeoutError{}))
	assert.Equal(t, "upstream", outcome(&domain.UpstreamError{}))
	assert.Equal(t, "parse", outcome(&domain.ParseError{}))
	assert.Equal(t, "canceled", outcome(context.Canceled))
	assert.Equal(t, "error", outcome(errors.New("x")))
}

func postRelay(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, RelayPath, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRelay(t *testing.T) {
	var gotParams domain.Params
	upstream := domain.GatewayFunc(func(ctx context.Context, creds domain.Credentials, action domain.Action, params domain.Params) (json.RawMessage, error) {
		gotParams = params
		switch action {
		case "ok":
			return json.RawMessage(`{"fine":true}`), nil
		case "down":
			return nil, &domain.UpstreamError{Status: 500, Message: "Upstream API Error: Internal Server Error", Raw: `{"extra":"x"}`}
		case "forbidden":
			return nil, &domain.UpstreamError{Status: 403, Message: "Upstream API Error: Forbidden", Raw: "no"}
		case "garbled":
			return nil, &domain.ParseError{Raw: "<html>"}
		case "slow":
			return nil, &domain.TimeoutError{Op: "slow"}
		}
		return nil, errors.New("unexpected")
	})
	relay := NewRelay(upstream, RelayOptions{EnableMetrics: true})

	full := func(action string) string {
		return `{"serverUrl":"http://x","username":"u","password":"p","action":"` + action + `","params":{"series_id":42}}`
	}

	t.Run("Success", func(t *testing.T) {
		rec := postRelay(t, relay, full("ok"))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"fine":true}`, rec.Body.String())
		assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
		assert.Equal(t, "42", gotParams["series_id"])
	})

	t.Run("MissingParams", func(t *testing.T) {
		rec := postRelay(t, relay, `{"serverUrl":"http://x","username":"u","action":"ok"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Missing required parameters")
	})

	t.Run("BadBody", func(t *testing.T) {
		rec := postRelay(t, relay, `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Upstream5xxBecomes502", func(t *testing.T) {
		rec := postRelay(t, relay, full("down"))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		details := body["details"].(map[string]interface{})
		assert.Equal(t, "x", details["extra"])
		assert.Equal(t, `{"extra":"x"}`, details["raw"])
	})

	t.Run("Upstream4xxPassedThrough", func(t *testing.T) {
		rec := postRelay(t, relay, full("forbidden"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("MalformedUpstream", func(t *testing.T) {
		rec := postRelay(t, relay, full("garbled"))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "Failed to parse upstream")
	})

	t.Run("Timeout", func(t *testing.T) {
		rec := postRelay(t, relay, full("slow"))
		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	})

	t.Run("Metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		relay.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "kiri_relay_responses_total")
	})
}

func TestRelayListenAndServeLogsOnce(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "kiri.log")
	logger, err := log.New(log.Config{Level: "info", FilePath: logPath})
	require.NoError(t, err)
	previous := log.DefaultLogger()
	log.SetDefaultLogger(logger)
	t.Cleanup(func() {
		log.SetDefaultLogger(previous)
		logger.Close()
	})

	relay := NewRelay(domain.GatewayFunc(func(context.Context, domain.Credentials, domain.Action, domain.Params) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	}), RelayOptions{EnableMetrics: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.ListenAndServe(ctx, "127.0.0.1:0") }()

	readLog := func() string {
		data, _ := os.ReadFile(logPath)
		return string(data)
	}
	require.Eventually(t, func() bool { return strings.Contains(readLog(), "Relay listening") }, time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	out := readLog()
	assert.Equal(t, 1, strings.Count(out, "Relay listening"))
	assert.Contains(t, out, `"metrics":true`)
}

// Remote and Relay together must reproduce the typed errors of the upstream gateway
func TestRemoteThroughRelay(t *testing.T) {
	upstream := domain.GatewayFunc(func(ctx context.Context, creds domain.Credentials, action domain.Action, params domain.Params) (json.RawMessage, error) {
		switch action {
		case domain.ActionUserInfo:
			return json.RawMessage(`{"user_info":{"auth":1}}`), nil
		case domain.ActionVODStreams:
			return nil, &domain.TimeoutError{Op: "x"}
		case domain.ActionSeries:
			return nil, &domain.ParseError{Raw: "<"}
		}
		return nil, &domain.UpstreamError{Status: 404, Message: "Upstream API Error: Not Found"}
	})
	srv := httptest.NewServer(NewRelay(upstream, RelayOptions{}))
	defer srv.Close()

	remote := NewRemote(srv.URL, time.Second, nil)
	creds := testCreds("http://provider")

	data, err := remote.Call(context.Background(), creds, domain.ActionUserInfo, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_info":{"auth":1}}`, string(data))

	_, err = remote.Call(context.Background(), creds, domain.ActionVODStreams, nil)
	var timeoutErr *domain.TimeoutError
	assert.ErrorAs(t, err, &timeoutErr)

	_, err = remote.Call(context.Background(), creds, domain.ActionSeries, nil)
	var parseErr *domain.ParseError
	assert.ErrorAs(t, err, &parseErr)

	_, err = remote.Call(context.Background(), creds, domain.ActionLiveStreams, nil)
	var upstreamErr *domain.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, 404, upstreamErr.Status)
	assert.Equal(t, "Upstream API Error: Not Found", upstreamErr.Message)
}
