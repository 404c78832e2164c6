package validation

// CreateShipmentRequest is the payload for POST /shipments.
// Every key must be sent; values are stored in their string form.
type CreateShipmentRequest struct {
	TrackingID  Value `json:"trackingId" validate:"required"`
	Destination Value `json:"destination" validate:"required"`
	Priority    Value `json:"priority" validate:"required"` // free-form, e.g. High/Medium/Low
	Status      Value `json:"status" validate:"required"`   // free-form, e.g. Processing/Scheduled/Delivered
}

// UpdateStatusRequest is the payload for PUT /shipments/:id.
// An empty, zero or false status counts as missing.
type UpdateStatusRequest struct {
	Status Value `json:"status"`
}
