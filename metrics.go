package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/erc7824/nitrolite/claimsigner/pkg/log"
)

// Signature kinds, used as metric labels.
const (
	SignatureKindDigest  = "digest"
	SignatureKindMessage = "message"
	SignatureKindClaim   = "claim"
)

// Metrics contains all Prometheus metrics for the application
type Metrics struct {
	// WebSocket connection metrics
	ConnectedClients prometheus.Gauge
	ConnectionsTotal prometheus.Counter
	MessageReceived  prometheus.Counter
	MessageSent      prometheus.Counter

	// RPC method metrics
	RPCRequests *prometheus.CounterVec

	// Signing metrics
	SignaturesIssued *prometheus.CounterVec
	SigningFailures  *prometheus.CounterVec
	Recoveries       *prometheus.CounterVec

	// Ledger metrics
	RecordedClaims *prometheus.GaugeVec
}

// NewMetrics initializes and registers Prometheus metrics
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(nil)
}

// NewMetricsWithRegistry initializes and registers Prometheus metrics with a custom registry
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "claimsigner_connected_clients",
			Help: "The current number of connected clients",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "claimsigner_connections_total",
			Help: "The total number of WebSocket connections made since server start",
		}),
		MessageReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "claimsigner_ws_messages_received_total",
			Help: "The total number of WebSocket messages received",
		}),
		MessageSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "claimsigner_ws_messages_sent_total",
			Help: "The total number of WebSocket messages sent",
		}),
		RPCRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "claimsigner_rpc_requests_total",
				Help: "The total number of RPC requests by method",
			},
			[]string{"method", "status"},
		),
		SignaturesIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "claimsigner_signatures_issued_total",
				Help: "The total number of signatures produced",
			},
			[]string{"kind"},
		),
		SigningFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "claimsigner_signing_failures_total",
				Help: "The total number of rejected signing requests",
			},
			[]string{"kind", "reason"},
		),
		Recoveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "claimsigner_recoveries_total",
				Help: "The total number of address recoveries",
			},
			[]string{"kind", "result"},
		),
		RecordedClaims: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "claimsigner_recorded_claims",
				Help: "The number of claim signatures in the ledger",
			},
			[]string{"network"},
		),
	}
}

// RecordMetricsPeriodically refreshes ledger gauges until ctx is done.
func (m *Metrics) RecordMetricsPeriodically(ctx context.Context, ledger ClaimLedger, logger log.Logger) {
	logger = logger.WithName("metrics")
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		m.UpdateClaimMetrics(ctx, ledger, logger)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// UpdateClaimMetrics sets RecordedClaims for every network.
func (m *Metrics) UpdateClaimMetrics(ctx context.Context, ledger ClaimLedger, logger log.Logger) {
	counts := make(map[string]float64)
	for _, network := range claimNetworks {
		count, err := ledger.Count(ctx, ClaimFilter{Network: &network})
		if err != nil {
			logger.Warn("failed to count claim signatures", "network", network, "error", err)
			return
		}
		counts[network.String()] = float64(count)
	}

	m.RecordedClaims.Reset()
	for network, count := range counts {
		m.RecordedClaims.WithLabelValues(network).Set(count)
	}
}
