package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahmedMgouda/avancira-auth/internal/infra/config"
)

// Provider represents a telemetry provider handle.
type Provider struct {
	grantCounter    *prometheus.CounterVec
	reuseCounter    prometheus.Counter
	sessionsRevoked prometheus.Counter
}

// Attach configures telemetry exporters and returns a provider handle.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	grants := promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "token_grants_total",
		Help:      "Token grants processed, labelled by grant type and outcome",
	}, []string{"grant_type", "outcome"})

	reuse := promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "token_reuse_detected_total",
		Help:      "Refresh token reuse incidents detected",
	})

	revoked := promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "sessions_revoked_total",
		Help:      "Sessions revoked for any reason",
	})

	return &Provider{
		grantCounter:    grants,
		reuseCounter:    reuse,
		sessionsRevoked: revoked,
	}, nil
}

// ObserveGrant records a processed token grant.
func (p *Provider) ObserveGrant(grantType, outcome string) {
	if p == nil || p.grantCounter == nil {
		return
	}
	p.grantCounter.WithLabelValues(grantType, outcome).Inc()
}

// ObserveTokenReuse records a refresh token reuse incident.
func (p *Provider) ObserveTokenReuse() {
	if p == nil || p.reuseCounter == nil {
		return
	}
	p.reuseCounter.Inc()
}

// ObserveSessionRevoked records a revoked session.
func (p *Provider) ObserveSessionRevoked() {
	if p == nil || p.sessionsRevoked == nil {
		return
	}
	p.sessionsRevoked.Inc()
}
