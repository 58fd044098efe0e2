// Package metrics exposes Prometheus counters for booking and meeting outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "school_scheduler"

// Outcome label values.
const (
	OutcomeBooked    = "booked"
	OutcomeConfirmed = "confirmed"
	OutcomeConflict  = "conflict"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// Recorder is safe to use as a nil pointer, every method is then a no-op.
type Recorder struct {
	bookings      *prometheus.CounterVec
	releases      prometheus.Counter
	confirmations *prometheus.CounterVec
	slotsCreated  prometheus.Counter
	completed     prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the counters in a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "BookSlot calls by outcome.",
		}, []string{"outcome"}),
		releases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "releases_total",
			Help:      "Bookings released back to available.",
		}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meeting_confirmations_total",
			Help:      "ConfirmSlot calls by outcome.",
		}, []string{"outcome"}),
		slotsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_created_total",
			Help:      "Appointment slots created.",
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_completed_total",
			Help:      "Bookings marked completed.",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		r.bookings,
		r.releases,
		r.confirmations,
		r.slotsCreated,
		r.completed,
		collectors.NewGoCollector(),
	)

	return r
}

func (r *Recorder) Booking(outcome string) {
	if r == nil {
		return
	}
	r.bookings.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Released() {
	if r == nil {
		return
	}
	r.releases.Inc()
}

func (r *Recorder) Confirmation(outcome string) {
	if r == nil {
		return
	}
	r.confirmations.WithLabelValues(outcome).Inc()
}

func (r *Recorder) SlotsCreated(n int) {
	if r == nil {
		return
	}
	r.slotsCreated.Add(float64(n))
}

func (r *Recorder) Completed(n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.completed.Add(float64(n))
}

func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.gatherer
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
