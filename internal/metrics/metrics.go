package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry groups the engine's Prometheus collectors.
type Registry struct {
	cacheLookups  *prometheus.CounterVec
	collabCalls   *prometheus.HistogramVec
	notifications *prometheus.CounterVec
	transitions   *prometheus.CounterVec
}

var (
	once     sync.Once
	registry *Registry
)

// Default returns the lazily-initialised registry registered with the default Prometheus registerer.
func Default() *Registry {
	once.Do(func() {
		registry = New(prometheus.DefaultRegisterer)
	})
	return registry
}

// New builds a registry and registers it with reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reservation",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Read-through cache lookups segmented by entity and result.",
		}, []string{"entity", "result"}),
		collabCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reservation",
			Subsystem: "collaborator",
			Name:      "call_duration_seconds",
			Help:      "Latency of calls to external collaborator services.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reservation",
			Subsystem: "notify",
			Name:      "events_total",
			Help:      "Change notifications segmented by stage and outcome.",
		}, []string{"stage", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reservation",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Applied reservation status transitions.",
		}, []string{"from", "to"}),
	}
	if reg != nil {
		reg.MustRegister(r.cacheLookups, r.collabCalls, r.notifications, r.transitions)
	}
	return r
}

// CacheLookup records a cache hit, miss, or error for the entity type.
func (r *Registry) CacheLookup(entity, result string) {
	if r == nil {
		return
	}
	r.cacheLookups.WithLabelValues(entity, result).Inc()
}

// CollaboratorCall records the duration of a call to an external service.
func (r *Registry) CollaboratorCall(service, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.collabCalls.WithLabelValues(service, outcome).Observe(d.Seconds())
}

// Notification records an enqueue or delivery outcome.
func (r *Registry) Notification(stage, outcome string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(stage, outcome).Inc()
}

// Transition records a committed status change.
func (r *Registry) Transition(from, to string) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(from, to).Inc()
}
