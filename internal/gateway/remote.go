package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/log"
)

// Remote sends actions to a Kiri relay instead of the provider
type Remote struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
}

// NewRemote targets the relay at baseURL.  The timeout leaves headroom for the relay's own upstream timeout.
func NewRemote(baseURL string, timeout time.Duration, client *http.Client) *Remote {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Remote{
		endpoint: strings.TrimRight(baseURL, "/") + RelayPath,
		client:   client,
		timeout:  timeout + 5*time.Second,
	}
}

// Call implements domain.Gateway
func (r *Remote) Call(ctx context.Context, creds domain.Credentials, action domain.Action, params domain.Params) (json.RawMessage, error) {
	start := time.Now()
	data, err := r.call(ctx, creds, action, params)
	providerRequests.WithLabelValues(string(action), outcome(err)).Inc()
	providerDuration.WithLabelValues(string(action)).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Warn("Relay request failed", "action", action, "identity", creds.Identity().String(), "error", Redact(err.Error(), creds))
	}
	return data, err
}

func (r *Remote) call(ctx context.Context, creds domain.Credentials, action domain.Action, params domain.Params) (json.RawMessage, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	payload := relayRequest{
		ServerURL: creds.ServerURL,
		Username:  creds.Username,
		Password:  creds.Password,
		Action:    string(action),
	}
	if len(params) > 0 {
		payload.Params = make(map[string]interface{}, len(params))
		for k, v := range params {
			payload.Params[k] = v
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, string(action), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, string(action), err)
	}

	if resp.StatusCode == http.StatusOK {
		if !json.Valid(data) {
			return nil, &domain.ParseError{Context: "relay returned a body that is not JSON", Raw: truncate(string(data), rawPreviewLen)}
		}
		return data, nil
	}

	return nil, decodeRelayError(resp.StatusCode, string(action), data)
}

// decodeRelayError is the inverse of relayErrorResponse
func decodeRelayError(status int, op string, data []byte) error {
	var body struct {
		Error   string          `json:"error"`
		Details json.RawMessage `json:"details"`
	}
	_ = json.Unmarshal(data, &body)

	var raw string
	var details struct {
		Raw string `json:"raw"`
	}
	if json.Unmarshal(body.Details, &details) == nil {
		raw = details.Raw
	} else {
		_ = json.Unmarshal(body.Details, &raw)
	}

	switch {
	case status == http.StatusBadRequest:
		return &domain.ValidationError{Message: body.Error}
	case status == http.StatusGatewayTimeout:
		return &domain.TimeoutError{Op: op}
	case status == http.StatusBadGateway && strings.Contains(body.Error, "Failed to parse upstream"):
		return &domain.ParseError{Context: op, Raw: raw}
	}
	return &domain.UpstreamError{Status: status, Message: body.Error, Raw: raw}
}
