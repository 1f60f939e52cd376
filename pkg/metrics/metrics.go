package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the storefront collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	cartMutations   *prometheus.CounterVec
	slotErrors      *prometheus.CounterVec
	paymentOutcomes *prometheus.CounterVec
	paymentLatency  *prometheus.HistogramVec
	reconciliations *prometheus.CounterVec
	flagsPublished  prometheus.Counter
	flagsResolved   prometheus.Counter
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront", Subsystem: "cart", Name: "mutations_total",
			Help: "Cart intents dispatched, by intent.",
		}, []string{"intent"}),
		slotErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront", Subsystem: "cart", Name: "slot_errors_total",
			Help: "Persistence slot failures, by operation.",
		}, []string{"op"}),
		paymentOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront", Subsystem: "checkout", Name: "payment_outcomes_total",
			Help: "Payment adapter outcomes, by method and outcome.",
		}, []string{"method", "outcome"}),
		paymentLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront", Subsystem: "checkout", Name: "payment_duration_seconds",
			Help: "Time spent inside a payment adapter.", Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront", Subsystem: "orders", Name: "reconciliations_total",
			Help: "Order reconciliation results.",
		}, []string{"result"}),
		flagsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront", Subsystem: "orders", Name: "flags_published_total",
			Help: "Reconciliation flags handed to the queue.",
		}),
		flagsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront", Subsystem: "orders", Name: "flags_resolved_total",
			Help: "Reconciliation flags resolved out of band.",
		}),
	}
	reg.MustRegister(
		m.cartMutations,
		m.slotErrors,
		m.paymentOutcomes,
		m.paymentLatency,
		m.reconciliations,
		m.flagsPublished,
		m.flagsResolved,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) CartMutation(intent string) {
	if m == nil {
		return
	}
	m.cartMutations.WithLabelValues(intent).Inc()
}

func (m *Metrics) SlotError(op string) {
	if m == nil {
		return
	}
	m.slotErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) PaymentOutcome(method, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.paymentOutcomes.WithLabelValues(method, outcome).Inc()
	m.paymentLatency.WithLabelValues(method).Observe(took.Seconds())
}

// Reconciliation records "created", "duplicate" or "flagged".
func (m *Metrics) Reconciliation(result string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(result).Inc()
}

func (m *Metrics) FlagPublished() {
	if m == nil {
		return
	}
	m.flagsPublished.Inc()
}

func (m *Metrics) FlagResolved() {
	if m == nil {
		return
	}
	m.flagsResolved.Inc()
}
