package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registry module. One instance is
// shared by every namespace ledger; series are split by the namespace label.
type Metrics struct {
	Mints         *prometheus.CounterVec
	Renewals      *prometheus.CounterVec
	Claims        *prometheus.CounterVec
	Transfers     *prometheus.CounterVec
	MintDuration  prometheus.Histogram
	FeesCollected *prometheus.CounterVec
}

// New creates a new Metrics instance with all registry metrics registered.
func New() *Metrics {
	return &Metrics{
		Mints: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meroku_mints_total",
			Help: "Total number of identities minted",
		}, []string{"namespace"}),
		Renewals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meroku_renewals_total",
			Help: "Total number of identity renewals",
		}, []string{"namespace"}),
		Claims: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meroku_claims_total",
			Help: "Total number of expired identities claimed",
		}, []string{"namespace"}),
		Transfers: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meroku_transfers_total",
			Help: "Total number of identity ownership transfers",
		}, []string{"namespace"}),
		MintDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "meroku_mint_duration_seconds",
			Help:    "Duration of mint operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		FeesCollected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meroku_fees_collected_total",
			Help: "Total fees collected, in base currency units",
		}, []string{"namespace", "kind"}),
	}
}

// IncrementMints records a successful mint.
func (m *Metrics) IncrementMints(namespace string) {
	m.Mints.WithLabelValues(namespace).Inc()
}

// IncrementRenewals records a successful renewal.
func (m *Metrics) IncrementRenewals(namespace string) {
	m.Renewals.WithLabelValues(namespace).Inc()
}

// IncrementClaims records a successful claim.
func (m *Metrics) IncrementClaims(namespace string) {
	m.Claims.WithLabelValues(namespace).Inc()
}

// IncrementTransfers records a successful ownership transfer.
func (m *Metrics) IncrementTransfers(namespace string) {
	m.Transfers.WithLabelValues(namespace).Inc()
}

// ObserveMint records the duration of a mint operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveMint(start time.Time) {
	m.MintDuration.Observe(time.Since(start).Seconds())
}

// AddFees records collected fee volume for one fee kind (mint, renew, claim).
func (m *Metrics) AddFees(namespace, kind string, amount int64) {
	m.FeesCollected.WithLabelValues(namespace, kind).Add(float64(amount))
}
