package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegistryCounts(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.CacheLookup("Reservation", "hit")
	r.CacheLookup("Reservation", "hit")
	r.CacheLookup("Reservation", "miss")
	r.Notification("enqueue", "ok")
	r.Transition("Created", "Confirmed")
	r.CollaboratorCall("pricing", "ok", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("Reservation", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("Reservation", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.notifications.WithLabelValues("enqueue", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.transitions.WithLabelValues("Created", "Confirmed")))
}

func TestNilRegistryIsSafe(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.CacheLookup("Reservation", "hit")
		r.CollaboratorCall("pricing", "error", time.Second)
		r.Notification("deliver", "error")
		r.Transition("Confirmed", "Completed")
	})
}
