package presets

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"photoshoot-backend/internal/shared/server/middleware"
	"photoshoot-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes expects an authenticated group mounted at /generation.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/style-presets", h.create)
	rg.DELETE("/style-presets/:id", h.delete)
}

// RegisterUserRoutes expects an authenticated group mounted at /users.
func (h *Handler) RegisterUserRoutes(rg *gin.RouterGroup) {
	rg.GET("/me/style-presets", h.list)
}

type createRequest struct {
	Name      string          `json:"name" binding:"required,max=100"`
	StyleData json.RawMessage `json:"style_data" binding:"required"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid request body", gin.H{"reason": err.Error()})
		return
	}
	p, err := h.Svc.Create(c.Request.Context(), middleware.UserIDFromContext(c), req.Name, req.StyleData)
	switch {
	case err == nil:
		respond.OK(c, p)
	case errors.Is(err, ErrLimitReached):
		respond.BadRequest(c, fmt.Sprintf("Maximum %d style presets allowed", h.Svc.Max), nil)
	case errors.Is(err, ErrInvalidInput):
		respond.BadRequest(c, err.Error(), nil)
	default:
		respond.Internal(c, "failed to save style preset")
	}
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		respond.Internal(c, "failed to list style presets")
		return
	}
	respond.OK(c, items)
}

func (h *Handler) delete(c *gin.Context) {
	err := h.Svc.Delete(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.NotFound(c, "style preset not found")
			return
		}
		respond.Internal(c, "failed to delete style preset")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"message": "Style preset deleted"})
}
