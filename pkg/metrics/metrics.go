package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crosschain_transfer"

var (
	// TransfersInitialized counts burn attempts by route and outcome
	TransfersInitialized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_initialized_total",
			Help:      "Transfer initializations by source, destination and burn outcome",
		},
		[]string{"from", "to", "outcome"},
	)

	// MintsCompleted counts mint attempts by destination and outcome
	MintsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mints_total",
			Help:      "Mint attempts by destination network and outcome",
		},
		[]string{"to", "outcome"},
	)

	// AttestationPolls counts attestation status checks by result
	AttestationPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attestation_polls_total",
			Help:      "Attestation status checks by result (pending, attested, error)",
		},
		[]string{"result"},
	)

	// StrandedSessions tracks sessions with a completed burn and no completed mint
	StrandedSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stranded_sessions",
			Help:      "Sessions whose burn succeeded but whose mint has not completed",
		},
	)

	// RecoveryMints counts mint retries made by the recovery sweep
	RecoveryMints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_mints_total",
			Help:      "Mint retries attempted by the stranded-session sweep, by outcome",
		},
		[]string{"outcome"},
	)

	// BalanceFetchFailures counts per-network balance query failures
	BalanceFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_fetch_failures_total",
			Help:      "Balance query failures per network",
		},
		[]string{"network"},
	)

	// ChainCallDuration observes RPC write latency per network and operation
	ChainCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chain_call_duration_seconds",
			Help:      "Duration of burn and mint submissions including receipt wait",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"network", "operation"},
	)

	// HTTPRequests counts API requests by route and status
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration observes API latency by route
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// DatabaseConnections reports session store pool usage by state
	DatabaseConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "database_connections",
			Help:      "Session store connections by state (open, idle, in_use)",
		},
		[]string{"state"},
	)
)
