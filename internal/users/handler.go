package users

import (
	"errors"
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

// RegisterRoutes expects an authenticated group mounted at /users.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
}

func (h *Handler) me(c *gin.Context) {
	if h.Svc == nil {
		respond.Internal(c, "service unavailable")
		return
	}
	user, err := h.Svc.GetByID(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
			return
		}
		respond.Internal(c, "failed to load user")
		return
	}
	respond.OK(c, user)
}
