package gateway

import (
	"context"
	"errors"

	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var providerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kiri_gateway_requests_total",
	Help: "Provider API requests by action and outcome.",
}, []string{"action", "outcome"})

var providerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "kiri_gateway_request_duration_seconds",
	Help:    "Provider API request latency by action.",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
}, []string{"action"})

var relayResponses = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kiri_relay_responses_total",
	Help: "Relay responses by HTTP status code.",
}, []string{"code"})

// outcome buckets an error into a low cardinality metric label
func outcome(err error) string {
	if err == nil {
		return "ok"
	}

	var (
		timeoutErr  *domain.TimeoutError
		upstreamErr *domain.UpstreamError
		parseErr    *domain.ParseError
		validErr    *domain.ValidationError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &upstreamErr):
		return "upstream"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &validErr):
		return "invalid"
	}
	return "error"
}
