package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheus_Inc(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)

	p.Inc(context.Background(), EventShipmentCreated)
	p.Inc(context.Background(), EventShipmentCreated)
	p.Inc(context.Background(), EventShipmentsReset)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.events.WithLabelValues(EventShipmentCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.events.WithLabelValues(EventShipmentsReset)))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.events.WithLabelValues(EventStatusNotFound)))
}

func TestNop_Inc(t *testing.T) {
	var r Recorder = Nop{}
	r.Inc(context.Background(), EventShipmentCreated)
}
