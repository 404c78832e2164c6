package shipments

import (
	"context"
	"time"
)

// Example status and priority values. Neither field is constrained to these.
const (
	StatusProcessing = "Processing"
	StatusScheduled  = "Scheduled"
	StatusDelivered  = "Delivered"

	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// Shipment is one tracked package/delivery.
// CreatedAt is rewritten on every status update, so it doubles as the last-modified time.
type Shipment struct {
	ID          string    `json:"id" dynamodbav:"id"` // PK
	TrackingID  string    `json:"trackingId" dynamodbav:"trackingId"`
	Destination string    `json:"destination" dynamodbav:"destination"`
	Priority    string    `json:"priority" dynamodbav:"priority"`
	Status      string    `json:"status" dynamodbav:"status"`
	CreatedAt   time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

// NewShipment carries the caller-supplied fields of a shipment.
type NewShipment struct {
	TrackingID  string
	Destination string
	Priority    string
	Status      string
}

// Store is the persistence contract shared by the SQLite and DynamoDB backends.
type Store interface {
	// List returns every shipment in natural storage order.
	List(ctx context.Context) ([]Shipment, error)
	// Create persists a shipment with a fresh id and timestamp and returns the id.
	Create(ctx context.Context, s NewShipment) (string, error)
	// UpdateStatus rewrites status and createdAt; it reports whether a row matched id.
	UpdateStatus(ctx context.Context, id, status string) (bool, error)
	// Reset deletes every shipment and re-inserts the seed set.
	Reset(ctx context.Context) error
}

// SeedShipments is the fixed demo set inserted on first start and on every reset.
var SeedShipments = []NewShipment{
	{TrackingID: "TRK001", Destination: "456 Oak Lane, Dallas, TX", Priority: PriorityHigh, Status: StatusProcessing},
	{TrackingID: "TRK002", Destination: "101 Pine St, Miami, FL", Priority: PriorityMedium, Status: StatusScheduled},
	{TrackingID: "TRK003", Destination: "789 Birch Rd, Denver, CO", Priority: PriorityLow, Status: StatusDelivered},
	{TrackingID: "TRK999", Destination: "123 Main St, New York, NY", Priority: PriorityHigh, Status: StatusScheduled},
}

// timeLayout is the ISO-8601 layout used for stored timestamps.
const timeLayout = time.RFC3339Nano

func newShipment(id string, s NewShipment, now time.Time) Shipment {
	return Shipment{
		ID:          id,
		TrackingID:  s.TrackingID,
		Destination: s.Destination,
		Priority:    s.Priority,
		Status:      s.Status,
		CreatedAt:   now.UTC(),
	}
}
