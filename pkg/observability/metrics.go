package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the roster service.
// A nil *Collector is valid and records nothing.
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// Session metrics
	ActiveSessions  prometheus.Gauge
	MessagesSent    *prometheus.CounterVec
	MessagesDropped *prometheus.CounterVec

	// Mutation metrics
	Mutations        *prometheus.CounterVec
	MutationDuration *prometheus.HistogramVec
	RosterSize       prometheus.Gauge
	Selections       prometheus.Counter

	// Store metrics
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec

	// Event publishing
	EventsPublished *prometheus.CounterVec
}

// NewCollector creates a new metrics collector with its own registry
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of registered roster sessions",
		}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages queued for delivery to sessions",
		}, []string{"type"}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Messages that could not be queued for a session",
		}, []string{"type"}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Roster mutations by command and outcome",
		}, []string{"command", "outcome"}),
		MutationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mutation_duration_seconds",
			Help:      "Time from dequeue to broadcast for a mutation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		RosterSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "roster_size",
			Help:      "Number of patients in the last broadcast roster",
		}),
		Selections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Selection signals relayed",
		}),
		StoreOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Patient store operations",
		}, []string{"operation", "status"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Patient store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events handed to the event bus",
		}, []string{"type", "status"}),
	}

	registry.MustRegister(
		c.ActiveSessions,
		c.MessagesSent,
		c.MessagesDropped,
		c.Mutations,
		c.MutationDuration,
		c.RosterSize,
		c.Selections,
		c.StoreOperations,
		c.StoreDuration,
		c.EventsPublished,
	)

	return c
}

// SessionOpened records a registration
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.ActiveSessions.Inc()
}

// SessionClosed records an unregistration
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.ActiveSessions.Dec()
}

// MessageSent records a message queued for one session
func (c *Collector) MessageSent(msgType string) {
	if c == nil {
		return
	}
	c.MessagesSent.WithLabelValues(msgType).Inc()
}

// MessageDropped records a message a session could not accept
func (c *Collector) MessageDropped(msgType string) {
	if c == nil {
		return
	}
	c.MessagesDropped.WithLabelValues(msgType).Inc()
}

// RecordMutation records the outcome of one mutation
func (c *Collector) RecordMutation(command, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.Mutations.WithLabelValues(command, outcome).Inc()
	c.MutationDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// SetRosterSize records the size of the last broadcast roster
func (c *Collector) SetRosterSize(n int) {
	if c == nil {
		return
	}
	c.RosterSize.Set(float64(n))
}

// SelectionRelayed records a selection broadcast
func (c *Collector) SelectionRelayed() {
	if c == nil {
		return
	}
	c.Selections.Inc()
}

// RecordStoreOperation records a store call
func (c *Collector) RecordStoreOperation(operation string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.StoreOperations.WithLabelValues(operation, status).Inc()
	c.StoreDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordEventPublished records a domain event publish attempt
func (c *Collector) RecordEventPublished(eventType string, err error) {
	if c == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.EventsPublished.WithLabelValues(eventType, status).Inc()
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
