package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/imrishuroy/go-shipment-tracker/internal/idempotency"
	"github.com/imrishuroy/go-shipment-tracker/internal/metrics"
	"github.com/imrishuroy/go-shipment-tracker/internal/obs"
	"github.com/imrishuroy/go-shipment-tracker/internal/shipments"
	"github.com/imrishuroy/go-shipment-tracker/internal/validation"
)

// HandlerConfig groups dependencies for the shipments handler.
type HandlerConfig struct {
	Shipments   shipments.Store
	Idempotency idempotency.Store // nil disables Idempotency-Key handling
	Metrics     metrics.Recorder  // nil records nothing
}

// CreateShipmentResponse is the 201 body of POST /shipments.
type CreateShipmentResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type shipmentHandler struct {
	store    shipments.Store
	idem     idempotency.Store
	metrics  metrics.Recorder
	validate *validatorv10.Validate
}

// RegisterShipmentRoutes registers routes for the shipments API.
func RegisterShipmentRoutes(r gin.IRouter, cfg HandlerConfig) {
	h := &shipmentHandler{
		store:    cfg.Shipments,
		idem:     cfg.Idempotency,
		metrics:  cfg.Metrics,
		validate: validation.New(),
	}
	if h.metrics == nil {
		h.metrics = metrics.Nop{}
	}

	r.GET("/shipments", h.list)
	r.POST("/shipments", h.create)
	r.PUT("/shipments/:id", h.updateStatus)
	r.DELETE("/shipments/clear", h.reset)
}

func (h *shipmentHandler) list(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		h.storageFailure(c, "Database query failed", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *shipmentHandler) create(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.CreateShipmentRequest
	if err := validation.BindAndValidate(c, &req, h.validate, "Missing required fields"); err != nil {
		// BindAndValidate already wrote a 400
		return
	}

	idempKey := ""
	if h.idem != nil {
		idempKey = c.GetHeader("Idempotency-Key")
	}
	if idempKey != "" {
		if done := h.claimIdempotencyKey(c, idempKey); done {
			return
		}
	}

	id, err := h.store.Create(ctx, shipments.NewShipment{
		TrackingID:  req.TrackingID.String(),
		Destination: req.Destination.String(),
		Priority:    req.Priority.String(),
		Status:      req.Status.String(),
	})
	if err != nil {
		if idempKey != "" {
			if merr := h.idem.MarkFailed(ctx, idempKey, err.Error()); merr != nil {
				log.Printf("req_id=%s idempotency mark failed key=%s err=%v", obs.RequestID(ctx), idempKey, merr)
			}
		}
		h.storageFailure(c, "Database insertion failed", err)
		return
	}
	h.metrics.Inc(ctx, metrics.EventShipmentCreated)

	res := CreateShipmentResponse{Message: "Shipment added successfully", ID: id}
	if idempKey != "" {
		body, _ := json.Marshal(res)
		if err := h.idem.MarkDone(ctx, idempKey, id, string(body), http.StatusCreated); err != nil {
			// release the key so a retry is not stuck on 409 until the record expires
			log.Printf("req_id=%s idempotency mark done key=%s shipment_id=%s err=%v", obs.RequestID(ctx), idempKey, id, err)
			note := fmt.Sprintf("shipment %s created but response not recorded: %v", id, err)
			if merr := h.idem.MarkFailed(ctx, idempKey, note); merr != nil {
				log.Printf("req_id=%s idempotency mark failed key=%s err=%v", obs.RequestID(ctx), idempKey, merr)
			}
		}
	}

	c.JSON(http.StatusCreated, res)
}

// claimIdempotencyKey reserves key for this request. It returns true when a
// response has already been written (replay, conflict or error).
func (h *shipmentHandler) claimIdempotencyKey(c *gin.Context, key string) bool {
	ctx := c.Request.Context()

	created, err := h.idem.CreateIfNotExists(ctx, key)
	if err != nil {
		h.storageFailure(c, "Idempotency check failed", err)
		return true
	}
	if created {
		return false
	}

	rec, err := h.idem.Get(ctx, key)
	if err != nil {
		h.storageFailure(c, "Idempotency check failed", err)
		return true
	}
	if rec == nil {
		// expired between the two calls
		c.JSON(http.StatusConflict, gin.H{"error": "Idempotency-Key is being reused, retry the request"})
		return true
	}

	switch rec.Status {
	case idempotency.StatusDone:
		h.metrics.Inc(ctx, metrics.EventIdempotentReplay)
		c.Header("Idempotent-Replayed", "true")
		c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
		return true
	case idempotency.StatusInProgress:
		c.JSON(http.StatusConflict, gin.H{"error": "A request with this Idempotency-Key is already in progress"})
		return true
	case idempotency.StatusFailed:
		if err := h.idem.Rearm(ctx, key); err != nil {
			if errors.Is(err, idempotency.ErrNotFailed) {
				c.JSON(http.StatusConflict, gin.H{"error": "A request with this Idempotency-Key is already in progress"})
				return true
			}
			h.storageFailure(c, "Idempotency check failed", err)
			return true
		}
		return false
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Unknown idempotency status %q", rec.Status)})
		return true
	}
}

func (h *shipmentHandler) updateStatus(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	var req validation.UpdateStatusRequest
	if err := validation.BindAndValidate(c, &req, h.validate, "Missing 'status' field"); err != nil {
		return
	}

	status := req.Status.String()
	ok, err := h.store.UpdateStatus(ctx, id, status)
	if err != nil {
		h.storageFailure(c, "Database update failed", err)
		return
	}
	if !ok {
		h.metrics.Inc(ctx, metrics.EventStatusNotFound)
		c.JSON(http.StatusNotFound, gin.H{"error": "Shipment not found"})
		return
	}
	h.metrics.Inc(ctx, metrics.EventStatusUpdated)

	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Shipment %s status updated to %s", id, status)})
}

func (h *shipmentHandler) reset(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.store.Reset(ctx); err != nil {
		h.storageFailure(c, "Database clear failed", err)
		return
	}
	h.metrics.Inc(ctx, metrics.EventShipmentsReset)

	c.JSON(http.StatusOK, gin.H{"message": "All shipments cleared and demo data reloaded."})
}

// storageFailure writes a 500 whose error text includes the underlying failure.
func (h *shipmentHandler) storageFailure(c *gin.Context, prefix string, err error) {
	ctx := c.Request.Context()
	h.metrics.Inc(ctx, metrics.EventStorageFailure)
	log.Printf("req_id=%s method=%s path=%s err=%v", obs.RequestID(ctx), c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", prefix, err)})
}
