package payments

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"photoshoot-backend/internal/shared/server/middleware"
	"photoshoot-backend/internal/shared/server/respond"
	"photoshoot-backend/internal/shared/telemetry"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes expects an authenticated group mounted at /payments.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/create", h.create)
	rg.GET("/orders/my", h.listMine)
}

// RegisterWebhook expects a public group mounted at /payments.
func (h *Handler) RegisterWebhook(rg *gin.RouterGroup) {
	rg.POST("/webhook", h.webhook)
}

type createRequest struct {
	PackageID string `json:"package_id" binding:"required"`
	ReturnURL string `json:"return_url" binding:"omitempty,url"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid request body", gin.H{"reason": err.Error()})
		return
	}
	order, url, err := h.Svc.Create(c.Request.Context(), middleware.UserIDFromContext(c), req.PackageID, req.ReturnURL)
	switch {
	case err == nil:
		respond.OK(c, gin.H{"payment_url": url, "order_id": order.ID})
	case errors.Is(err, ErrPackageNotFound):
		respond.NotFound(c, "Package not found")
	case errors.Is(err, ErrPaymentsDisabled):
		respond.Error(c, http.StatusServiceUnavailable, "payments_disabled", "payments are not available", nil)
	case errors.Is(err, ErrGateway):
		respond.Error(c, http.StatusBadGateway, "payment_gateway_error", "Failed to create payment", nil)
	default:
		respond.Internal(c, "failed to create payment")
	}
}

// webhook always answers 200 so the provider does not retry bodies this
// service cannot use; the outcome is in the status field.
func (h *Handler) webhook(c *gin.Context) {
	var n Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": "invalid payload"})
		return
	}
	if err := h.Svc.HandleNotification(c.Request.Context(), n); err != nil {
		msg := err.Error()
		switch {
		case errors.Is(err, ErrBadNotification):
			msg = "No payment object"
		case errors.Is(err, ErrNotFound):
			msg = "Order not found"
		}
		telemetry.Warn("payments.webhook_error", map[string]any{"event": n.Event, "error": err.Error()})
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) listMine(c *gin.Context) {
	orders, err := h.Svc.ListMine(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		respond.Internal(c, "failed to list orders")
		return
	}
	respond.OK(c, orders)
}
