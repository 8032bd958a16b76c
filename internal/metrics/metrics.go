// Package metrics registra las metricas Prometheus del servicio.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chattersphere_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chattersphere_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chattersphere_users_registered_total",
			Help: "Total users registered",
		},
	)

	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chattersphere_login_attempts_total",
			Help: "Login attempts by result",
		},
		[]string{"result"}, // "ok" o "invalid"
	)

	MessagesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chattersphere_messages_stored_total",
			Help: "Total messages persisted",
		},
	)

	PasswordResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chattersphere_password_resets_total",
			Help: "Password reset requests by result",
		},
		[]string{"result"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chattersphere_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	StreamSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chattersphere_stream_subscribers",
			Help: "Open push subscriptions by transport",
		},
		[]string{"transport"}, // "sse" o "ws"
	)
)
