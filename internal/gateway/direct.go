// Package gateway forwards player_api.php actions to an Xtream-codes provider, either directly or through a relay.
package gateway

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/log"
	"github.com/PizzaHomicide/kiri/internal/version"
	"github.com/andybalholm/brotli"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds every provider request
const DefaultTimeout = 30 * time.Second

// rawPreviewLen is how much of an upstream body is kept on errors
const rawPreviewLen = 500

// Options configure a Direct gateway
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	UserAgent         string
	// HTTPClient overrides the default client.  Its own Timeout is ignored in favour of Timeout above.
	HTTPClient *http.Client
}

// Direct calls the provider's player_api.php endpoint itself
type Direct struct {
	client    *http.Client
	limiter   *rate.Limiter
	timeout   time.Duration
	userAgent string
}

func NewDirect(opts Options) *Direct {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = version.UserAgent()
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Direct{
		client: client,
		// Burst of two lets the paired categories + items fetch of a sync go out together
		limiter:   rate.NewLimiter(limit, 2),
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
	}
}

// Call implements domain.Gateway
func (d *Direct) Call(ctx context.Context, creds domain.Credentials, action domain.Action, params domain.Params) (json.RawMessage, error) {
	start := time.Now()
	body, err := d.call(ctx, creds, action, params)

	providerRequests.WithLabelValues(string(action), outcome(err)).Inc()
	providerDuration.WithLabelValues(string(action)).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Warn("Provider request failed",
			"action", action,
			"identity", creds.Identity().String(),
			"duration", time.Since(start),
			"error", Redact(err.Error(), creds))
		return nil, err
	}

	log.Debug("Provider request complete",
		"action", action,
		"identity", creds.Identity().String(),
		"duration", time.Since(start),
		"bytes", len(body))
	return body, nil
}

func (d *Direct) call(ctx context.Context, creds domain.Credentials, action domain.Action, params domain.Params) (json.RawMessage, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if action == "" {
		return nil, &domain.ValidationError{Field: "action", Message: "action is required"}
	}

	target, err := BuildAPIURL(creds, action, params)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.limiter.Wait(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		// Either the deadline passed or waiting would overrun it
		return nil, &domain.TimeoutError{Op: string(action), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &domain.ValidationError{Field: "server", Message: Redact(err.Error(), creds)}
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br, gzip")

	log.Trace("Sending provider request", "url", Redact(target, creds))

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, string(action), err)
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return nil, classifyTransportError(ctx, string(action), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamError(resp.StatusCode, data)
	}

	if !json.Valid(data) {
		return nil, &domain.ParseError{
			Context: fmt.Sprintf("%s returned a body that is not JSON", action),
			Raw:     truncate(string(data), rawPreviewLen),
		}
	}
	return data, nil
}

// BuildAPIURL renders {server}/player_api.php?username=&password=&action=&params...
func BuildAPIURL(creds domain.Credentials, action domain.Action, params domain.Params) (string, error) {
	u, err := url.Parse(creds.BaseURL() + "/player_api.php")
	if err != nil {
		return "", &domain.ValidationError{Field: "server", Message: "server URL is not valid"}
	}

	q := url.Values{}
	q.Set("username", creds.Username)
	q.Set("password", creds.Password)
	q.Set("action", string(action))
	for k, v := range params {
		if k == "" {
			continue
		}
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// readBody decodes brotli and gzip bodies.  Accept-Encoding is set explicitly so the transport does not decode for us.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(r)
}

// upstreamError builds the error for a non-2xx provider response.  A JSON object body with a message field supplies
// the message, otherwise the status text is used.
func upstreamError(status int, body []byte) *domain.UpstreamError {
	message := "Upstream API Error: " + http.StatusText(status)

	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if m, ok := parsed["message"].(string); ok && m != "" {
			message = m
		}
	}

	return &domain.UpstreamError{
		Status:  status,
		Message: message,
		Raw:     truncate(string(body), rawPreviewLen),
	}
}

func classifyTransportError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &domain.TimeoutError{Op: op, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &domain.TimeoutError{Op: op, Err: err}
	}

	// Drop the *url.Error wrapper, its message repeats the request URL and therefore the password
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return &domain.UpstreamError{Message: "could not reach server", Err: err}
}
