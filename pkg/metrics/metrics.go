// Package metrics holds the Prometheus collectors of the service.
//
// Every method is safe on a nil *Metrics, so components can be built with
// metrics disabled.
//
// Usage:
//
//	m := metrics.New()
//	m.RecordAuth("ok")
//	router.Handle("/metrics", m.Handler())
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	// AuthCounter counts initData logins.
	// Labels: outcome (ok|invalid_signature|expired|no_user|no_chat|not_member|membership_error|bypass|bypass_forbidden|error)
	AuthCounter *prometheus.CounterVec

	// HTTPRequestDuration measures API latency.
	// Labels: method, route (chi pattern), status_code
	HTTPRequestDuration *prometheus.HistogramVec

	// NotificationCounter counts group notifications.
	// Labels: status (sent|failed|skipped)
	NotificationCounter *prometheus.CounterVec

	// MembershipDuration measures getChatMember calls.
	// Labels: status (ok|error)
	MembershipDuration *prometheus.HistogramVec

	// WebhookUpdates counts Telegram updates by kind.
	// Labels: kind (my_chat_member|message|callback_query|other)
	WebhookUpdates *prometheus.CounterVec
}

// New creates the collectors on a private registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		AuthCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tgspace_auth_attempts_total",
				Help: "initData authentication attempts by outcome",
			},
			[]string{"outcome"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tgspace_http_request_duration_seconds",
				Help:    "HTTP request latency by method, route and status code",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "route", "status_code"},
		),
		NotificationCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tgspace_notifications_total",
				Help: "Group notifications by status",
			},
			[]string{"status"},
		),
		MembershipDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tgspace_membership_check_duration_seconds",
				Help:    "Latency of getChatMember lookups",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"status"},
		),
		WebhookUpdates: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tgspace_webhook_updates_total",
				Help: "Telegram webhook updates by kind",
			},
			[]string{"kind"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordAuth(outcome string) {
	if m == nil {
		return
	}
	m.AuthCounter.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, route, statusCode string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, route, statusCode).Observe(d.Seconds())
}

func (m *Metrics) RecordNotification(status string) {
	if m == nil {
		return
	}
	m.NotificationCounter.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordMembershipCheck(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.MembershipDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) RecordWebhookUpdate(kind string) {
	if m == nil {
		return
	}
	m.WebhookUpdates.WithLabelValues(kind).Inc()
}
