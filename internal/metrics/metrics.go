package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ActionPriceUpdated = "price_updated"
	ActionRemoved      = "removed"
	ActionStaleIndex   = "stale_index"

	EventProcessed = "processed"
	EventMalformed = "malformed"
	EventFailed    = "failed"

	CheckoutOK           = "ok"
	CheckoutInvalidItems = "invalid_items"
	CheckoutEmpty        = "empty"
	CheckoutError        = "error"
)

// Metrics records cart engine activity. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	conflicts      *prometheus.CounterVec
	reconciliation *prometheus.CounterVec
	events         *prometheus.CounterVec
	checkout       *prometheus.CounterVec
}

// New registers the cart collectors on the provided registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_store_commit_conflicts_total",
		Help: "Optimistic commits lost to a concurrent writer.",
	}, []string{"backend"})
	reconciliation := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_reconciliation_actions_total",
		Help: "Cart changes made in response to catalog changes.",
	}, []string{"action"})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_catalog_events_total",
		Help: "Consumed events by topic and outcome.",
	}, []string{"topic", "outcome"})
	checkout := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_checkout_validations_total",
		Help: "Checkout validations by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(conflicts, reconciliation, events, checkout)
	return &Metrics{
		conflicts:      conflicts,
		reconciliation: reconciliation,
		events:         events,
		checkout:       checkout,
	}
}

// CommitConflict satisfies store.ConflictObserver.
func (m *Metrics) CommitConflict(backend string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(normalizeLabel(backend)).Inc()
}

func (m *Metrics) ReconciliationAction(action string) {
	if m == nil || m.reconciliation == nil {
		return
	}
	m.reconciliation.WithLabelValues(normalizeLabel(action)).Inc()
}

func (m *Metrics) CatalogEvent(topic, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(topic), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) CheckoutValidation(outcome string) {
	if m == nil || m.checkout == nil {
		return
	}
	m.checkout.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
