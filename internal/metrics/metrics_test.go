package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveBooking("reception", "ok")
	m.ObserveBooking("reception", "SlotTaken")
	m.ObserveBooking("reception", "SlotTaken")
	m.ObserveOrderCreated("laboratory")
	m.ObserveRelayed(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookings.WithLabelValues("reception", "SlotTaken")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersCreated.WithLabelValues("laboratory")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.relayed))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBooking("x", "y")
		m.ObserveTransition("pending", "approved")
		m.ObserveHTTP("GET", "/", "200", 0.1)
		m.ObserveRelayed(1)
	})
}
