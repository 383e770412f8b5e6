package generations

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"photoshoot-backend/internal/shared/server/middleware"
	"photoshoot-backend/internal/shared/server/respond"
)

const (
	// MaxImageSize caps a decoded source photo.
	MaxImageSize = 10 << 20
	// maxCreateBody leaves room for base64 expansion and the other fields.
	maxCreateBody = MaxImageSize/3*4 + 64<<10
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	registerValidators()
	return &Handler{Svc: svc}
}

// RegisterRoutes expects an authenticated group mounted at /generation.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/create", h.create)
	rg.GET("/:id", h.get)
}

// RegisterUserRoutes expects an authenticated group mounted at /users.
func (h *Handler) RegisterUserRoutes(rg *gin.RouterGroup) {
	rg.GET("/me/images", h.listMine)
}

type createRequest struct {
	ImageBase64   string `json:"image_base64" binding:"required"`
	StyleName     string `json:"style_name"`
	CustomPrompt  string `json:"custom_prompt" binding:"max=2000"`
	AspectRatio   string `json:"aspect_ratio" binding:"omitempty,aspect_ratio"`
	StylePresetID string `json:"style_preset_id"`
}

var validatorsOnce sync.Once

func registerValidators() {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("aspect_ratio", func(fl validator.FieldLevel) bool {
			_, ok := AspectRatios[fl.Field().String()]
			return ok
		})
	})
}

func (h *Handler) create(c *gin.Context) {
	if h.Svc == nil {
		respond.Internal(c, "service unavailable")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCreateBody)
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondImageTooLarge(c)
			return
		}
		respond.BadRequest(c, "invalid request body", gin.H{"reason": err.Error()})
		return
	}
	image, err := decodeImage(req.ImageBase64)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_image", "Invalid image data", nil)
		return
	}
	if len(image) > MaxImageSize {
		respondImageTooLarge(c)
		return
	}

	gen, err := h.Svc.Create(c.Request.Context(), middleware.UserIDFromContext(c), CreateInput{
		Image:         image,
		StyleName:     req.StyleName,
		CustomPrompt:  req.CustomPrompt,
		AspectRatio:   req.AspectRatio,
		StylePresetID: req.StylePresetID,
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrPaymentRequired):
		respond.Error(c, http.StatusPaymentRequired, "payment_required", "No photoshoots remaining. Please purchase a package.", nil)
		return
	case errors.Is(err, ErrInvalidImage):
		respond.Error(c, http.StatusBadRequest, "invalid_image", "Invalid image data", nil)
		return
	case errors.Is(err, ErrInvalidInput):
		respond.BadRequest(c, err.Error(), nil)
		return
	default:
		respond.Internal(c, "failed to create generation")
		return
	}
	c.Set(middleware.GenerationIDKey, gen.ID)
	respond.OK(c, gen)
}

func respondImageTooLarge(c *gin.Context) {
	respond.Error(c, http.StatusRequestEntityTooLarge, "image_too_large",
		fmt.Sprintf("Image exceeds %d MB", MaxImageSize>>20), nil)
}

// decodeImage accepts raw base64 or a data URL.
func decodeImage(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "data:") {
		if i := strings.Index(raw, ","); i >= 0 {
			raw = raw[i+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrInvalidImage
	}
	return data, nil
}

func (h *Handler) get(c *gin.Context) {
	if h.Svc == nil {
		respond.Internal(c, "service unavailable")
		return
	}
	gen, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.NotFound(c, "generation not found")
			return
		}
		respond.Internal(c, "failed to load generation")
		return
	}
	c.Set(middleware.GenerationIDKey, gen.ID)
	respond.OK(c, gen)
}

func (h *Handler) listMine(c *gin.Context) {
	if h.Svc == nil {
		respond.Internal(c, "service unavailable")
		return
	}
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)
	items, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		respond.Internal(c, "failed to list generations")
		return
	}
	if items == nil {
		items = []Generation{}
	}
	respond.OK(c, items)
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
