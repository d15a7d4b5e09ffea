package webauthn

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors a RelyingParty reports ceremony
// outcomes to. The zero value, and a nil *Metrics, is safe to use: every
// method is a no-op until NewMetrics populates the collectors.
type Metrics struct {
	verifications       *prometheus.CounterVec
	duration            *prometheus.HistogramVec
	challengeStoreSize  prometheus.Gauge
	credentialStoreSize prometheus.Gauge
}

// NewMetrics constructs the collector set described in spec §2.2/§11 and,
// when reg is non-nil, registers every collector with it (typically
// prometheus.DefaultRegisterer).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webauthn_ceremony_verifications_total",
			Help: "Count of registration/authentication ceremony verifications by kind and result.",
		}, []string{"kind", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "webauthn_ceremony_duration_seconds",
			Help:    "Latency of ceremony verification calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		challengeStoreSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webauthn_challenge_store_size",
			Help: "Number of outstanding, unconsumed ceremony challenges.",
		}),
		credentialStoreSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webauthn_credential_store_size",
			Help: "Number of registered credential records.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.verifications, m.duration, m.challengeStoreSize, m.credentialStoreSize)
	}
	return m
}

// ObserveRegistration records the outcome and latency of a registration
// ceremony verification.
func (m *Metrics) ObserveRegistration(start time.Time, err error) {
	m.observe("registration", start, err)
}

// ObserveAuthentication records the outcome and latency of an authentication
// ceremony verification.
func (m *Metrics) ObserveAuthentication(start time.Time, err error) {
	m.observe("authentication", start, err)
}

func (m *Metrics) observe(kind string, start time.Time, err error) {
	if m == nil || m.verifications == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
		if k, ok := KindOf(err); ok {
			result = string(k)
		}
	}
	m.verifications.WithLabelValues(kind, result).Inc()
	m.duration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// SetChallengeStoreSize reports the current number of outstanding
// challenges, typically sampled by a periodic collector.
func (m *Metrics) SetChallengeStoreSize(n int) {
	if m == nil || m.challengeStoreSize == nil {
		return
	}
	m.challengeStoreSize.Set(float64(n))
}

// SetCredentialStoreSize reports the current number of registered
// credentials.
func (m *Metrics) SetCredentialStoreSize(n int) {
	if m == nil || m.credentialStoreSize == nil {
		return
	}
	m.credentialStoreSize.Set(float64(n))
}
