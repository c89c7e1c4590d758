package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RelayPath is where the relay accepts forwarded actions
const RelayPath = "/api/iptv-proxy"

const requestIDHeader = "X-Request-ID"

// relayRequest is the wire format posted to the relay.  Params values may be strings or numbers.
type relayRequest struct {
	ServerURL string                 `json:"serverUrl"`
	Username  string                 `json:"username"`
	Password  string                 `json:"password"`
	Action    string                 `json:"action"`
	Params    map[string]interface{} `json:"params,omitempty"`
}

type relayError struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// Relay is an HTTP handler that forwards provider actions on behalf of clients, so credentials only travel between the
// client and the relay, and the relay and the provider.
type Relay struct {
	upstream domain.Gateway
	router   chi.Router
	metrics  bool
}

// RelayOptions configure the relay handler
type RelayOptions struct {
	EnableMetrics bool
}

func NewRelay(upstream domain.Gateway, opts RelayOptions) *Relay {
	r := &Relay{upstream: upstream, metrics: opts.EnableMetrics}

	router := chi.NewRouter()
	router.Use(requestID)
	router.Use(middleware.Recoverer)

	router.Post(RelayPath, r.handleForward)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.EnableMetrics {
		router.Handle("/metrics", promhttp.Handler())
	}

	r.router = router
	return r
}

func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (r *Relay) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// Upstream calls may take the full gateway timeout
		WriteTimeout: DefaultTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Relay listening", "addr", addr, "metrics", r.metrics)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("Relay shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (r *Relay) handleForward(w http.ResponseWriter, req *http.Request) {
	id := req.Header.Get(requestIDHeader)

	var body relayRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<20)).Decode(&body); err != nil {
		log.Warn("Relay rejected malformed body", "request_id", id, "error", err)
		writeJSON(w, http.StatusBadRequest, relayError{Error: "Proxy Error: Request body is not valid JSON"})
		return
	}

	if body.ServerURL == "" || body.Username == "" || body.Password == "" || body.Action == "" {
		log.Warn("Relay rejected request with missing parameters", "request_id", id, "action", body.Action)
		writeJSON(w, http.StatusBadRequest, relayError{
			Error: "Proxy Error: Missing required parameters (serverUrl, username, password, action)",
		})
		return
	}

	creds := domain.Credentials{ServerURL: body.ServerURL, Username: body.Username, Password: body.Password}
	params := domain.Params{}
	for k, v := range body.Params {
		if v == nil {
			continue
		}
		params[k] = domain.StringValue(v)
	}

	log.Info("Relay forwarding action", "request_id", id, "action", body.Action, "identity", creds.Identity().String())

	data, err := r.upstream.Call(req.Context(), creds, domain.Action(body.Action), params)
	if err != nil {
		status, payload := relayErrorResponse(err, creds)
		log.Warn("Relay upstream call failed", "request_id", id, "status", status, "error", Redact(err.Error(), creds))
		writeJSON(w, status, payload)
		return
	}

	relayResponses.WithLabelValues("200").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// relayErrorResponse maps a gateway error onto the relay's status codes: validation 400, upstream 5xx and malformed
// JSON 502, upstream 4xx passed through, timeout 504.
func relayErrorResponse(err error, creds domain.Credentials) (int, relayError) {
	var (
		validationErr *domain.ValidationError
		upstreamErr   *domain.UpstreamError
		parseErr      *domain.ParseError
		timeoutErr    *domain.TimeoutError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, relayError{Error: "Proxy Error: " + validationErr.Error()}
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout, relayError{
			Error:   "Proxy request failed",
			Details: "Proxy Error: Request to upstream API timed out.",
		}
	case errors.As(err, &upstreamErr):
		details := map[string]interface{}{
			"message": upstreamErr.Message,
			"raw":     Redact(upstreamErr.Raw, creds),
		}
		// Merge a JSON object body into the details, the way the provider's own error fields surface
		var parsed map[string]interface{}
		if json.Unmarshal([]byte(upstreamErr.Raw), &parsed) == nil {
			for k, v := range parsed {
				details[k] = v
			}
		}

		message, _ := details["message"].(string)
		if message == "" {
			message = "API request failed"
		}

		status := upstreamErr.Status
		if status == 0 || status >= 500 {
			status = http.StatusBadGateway
		}
		return status, relayError{Error: message, Details: details}
	case errors.As(err, &parseErr):
		return http.StatusBadGateway, relayError{
			Error:   "Proxy Error: Failed to parse upstream API response as JSON.",
			Details: Redact(parseErr.Raw, creds),
		}
	}
	return http.StatusInternalServerError, relayError{Error: "Proxy request failed", Details: Redact(err.Error(), creds)}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	relayResponses.WithLabelValues(strconv.Itoa(status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestID tags each request with a uuid, reusing one supplied by the caller
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}
