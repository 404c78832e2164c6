package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Event names recorded by the shipment handlers.
const (
	EventShipmentCreated  = "shipment_created"
	EventStatusUpdated    = "shipment_status_updated"
	EventStatusNotFound   = "shipment_status_not_found"
	EventShipmentsReset   = "shipments_reset"
	EventIdempotentReplay = "idempotent_replay"
	EventStorageFailure   = "storage_failure"
)

// Recorder counts domain events. Implementations must not fail the request.
type Recorder interface {
	Inc(ctx context.Context, event string)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Inc(context.Context, string) {}

// Prometheus counts events in a single counter vector labelled by event.
type Prometheus struct {
	events *prometheus.CounterVec
}

// NewPrometheus creates the counters and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "shipments", Name: "events_total", Help: "Number of shipment domain events by type."},
			[]string{"event"},
		),
	}
	reg.MustRegister(p.events)
	return p
}

func (p *Prometheus) Inc(_ context.Context, event string) {
	p.events.WithLabelValues(event).Inc()
}
