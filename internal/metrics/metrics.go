package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the scheduling collectors. A nil *Metrics is a no-op.
type Metrics struct {
	bookings        *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	ordersCreated   *prometheus.CounterVec
	ordersCompleted *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	billingFailures *prometheus.CounterVec
	relayed         prometheus.Counter
	httpLatency     *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "booking_attempts_total",
			Help:      "Booking attempts by outcome code",
		}, []string{"source", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "transitions_total",
			Help:      "Appointment status transitions",
		}, []string{"from", "to"}),
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "orders",
			Name:      "created_total",
			Help:      "Department orders created by fanout",
		}, []string{"department"}),
		ordersCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "orders",
			Name:      "completed_total",
			Help:      "Department orders marked complete",
		}, []string{"department"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "orders",
			Name:      "instructions_dropped_total",
			Help:      "Instructions dropped because the department module is disabled",
		}, []string{"department"}),
		billingFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "billing",
			Name:      "trigger_failures_total",
			Help:      "Invoice requests that failed",
		}, []string{"operation"}),
		relayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "events",
			Name:      "relayed_total",
			Help:      "Events published to the notification sink",
		}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.bookings, m.transitions, m.ordersCreated, m.ordersCompleted,
		m.dropped, m.billingFailures, m.relayed, m.httpLatency,
	)
	return m
}

func (m *Metrics) ObserveBooking(source, outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveOrderCreated(department string) {
	if m == nil {
		return
	}
	m.ordersCreated.WithLabelValues(department).Inc()
}

func (m *Metrics) ObserveOrderCompleted(department string) {
	if m == nil {
		return
	}
	m.ordersCompleted.WithLabelValues(department).Inc()
}

func (m *Metrics) ObserveInstructionDropped(department string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(department).Inc()
}

func (m *Metrics) ObserveBillingFailure(operation string) {
	if m == nil {
		return
	}
	m.billingFailures.WithLabelValues(operation).Inc()
}

func (m *Metrics) ObserveRelayed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.relayed.Add(float64(n))
}

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpLatency.WithLabelValues(method, route, status).Observe(seconds)
}
