// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the auth counters.
const (
	OutcomeSuccess        = "success"
	OutcomeInvalid        = "invalid"
	OutcomeNoCookie       = "no_cookie"
	OutcomeMalformedKey   = "malformed_key"
	OutcomeUnknownSession = "unknown_session"
	OutcomeNoSuchAccount  = "no_such_account"
	OutcomeBadCredentials = "bad_credentials"
	OutcomeError          = "error"
)

// Metrics contains custom Prometheus metrics for aosauth.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	LoginAttemptsTotal *prometheus.CounterVec
	SessionChecksTotal *prometheus.CounterVec
	RegistrationsTotal *prometheus.CounterVec
	HashDuration       *prometheus.HistogramVec
	HTTPRequestsTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers custom aosauth metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aosauth_login_attempts_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
		SessionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aosauth_session_checks_total",
				Help: "Total number of session validations by outcome",
			},
			[]string{"outcome"},
		),
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aosauth_registrations_total",
				Help: "Total number of user registrations by outcome",
			},
			[]string{"outcome"},
		),
		HashDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aosauth_password_hash_duration_seconds",
				Help:    "Time spent hashing or verifying passwords",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aosauth_http_requests_total",
				Help: "Total number of HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
	}

	reg.MustRegister(m.LoginAttemptsTotal)
	reg.MustRegister(m.SessionChecksTotal)
	reg.MustRegister(m.RegistrationsTotal)
	reg.MustRegister(m.HashDuration)
	reg.MustRegister(m.HTTPRequestsTotal)

	return m
}

// RecordLogin counts a login attempt.
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordSessionCheck counts a session validation.
func (m *Metrics) RecordSessionCheck(outcome string) {
	if m == nil {
		return
	}
	m.SessionChecksTotal.WithLabelValues(outcome).Inc()
}

// RecordRegistration counts a registration.
func (m *Metrics) RecordRegistration(outcome string) {
	if m == nil {
		return
	}
	m.RegistrationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHash records how long a hash or verify took.
func (m *Metrics) ObserveHash(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.HashDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordHTTPRequest counts a served HTTP request.
func (m *Metrics) RecordHTTPRequest(route, status string) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, status).Inc()
}
