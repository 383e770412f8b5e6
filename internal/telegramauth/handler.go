package telegramauth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"photoshoot-backend/internal/shared/server/respond"
	"photoshoot-backend/internal/users"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the login routes to a public group mounted at
// /auth. codeLimit guards the code endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, codeLimit gin.HandlerFunc) {
	if codeLimit == nil {
		codeLimit = func(c *gin.Context) { c.Next() }
	}
	rg.POST("/telegram-widget", h.widget)
	rg.POST("/request-code", codeLimit, h.requestCode)
	rg.POST("/verify-code", codeLimit, h.verifyCode)
	rg.GET("/bot-info", h.botInfo)
}

func (h *Handler) widget(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		respond.BadRequest(c, "invalid request body", nil)
		return
	}
	fields, err := widgetFields(raw)
	if err != nil {
		respond.BadRequest(c, "invalid request body", gin.H{"reason": err.Error()})
		return
	}
	telegramID, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil || telegramID == 0 || fields["auth_date"] == "" || fields["hash"] == "" {
		respond.BadRequest(c, "id, auth_date and hash are required", nil)
		return
	}

	result, err := h.Svc.LoginWidget(c.Request.Context(), fields, users.Identity{
		TelegramID: telegramID,
		Username:   fields["username"],
		FirstName:  fields["first_name"],
		LastName:   fields["last_name"],
	})
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) || errors.Is(err, ErrExpiredAuth) {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Invalid Telegram authentication data", nil)
			return
		}
		respond.Internal(c, "login failed")
		return
	}
	respond.OK(c, result)
}

// widgetFields flattens the widget payload to the strings Telegram signed.
func widgetFields(raw []byte) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(payload))
	for k, v := range payload {
		switch val := v.(type) {
		case nil:
		case string:
			fields[k] = val
		case json.Number:
			fields[k] = val.String()
		case bool:
			fields[k] = strconv.FormatBool(val)
		default:
			return nil, fmt.Errorf("field %s has unsupported type", k)
		}
	}
	return fields, nil
}

type codeRequest struct {
	Username string `json:"username" binding:"required,max=64"`
}

func (h *Handler) requestCode(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid request body", gin.H{"reason": err.Error()})
		return
	}
	err := h.Svc.RequestCode(c.Request.Context(), req.Username)
	switch {
	case err == nil:
		respond.OK(c, gin.H{
			"message":            "Verification code sent to your Telegram",
			"expires_in_minutes": int(h.Svc.CodeTTL.Minutes()),
		})
	case errors.Is(err, ErrUserNotFound):
		respond.NotFound(c, "User not found. Please start the bot first: @"+users.NormalizeUsername(req.Username))
	case errors.Is(err, ErrSendFailed):
		respond.Internal(c, "Failed to send verification code. Please try again.")
	default:
		respond.Internal(c, "failed to request code")
	}
}

type verifyRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Code     string `json:"code" binding:"required,len=6,numeric"`
}

func (h *Handler) verifyCode(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid request body", gin.H{"reason": err.Error()})
		return
	}
	result, err := h.Svc.VerifyCode(c.Request.Context(), req.Username, req.Code)
	switch {
	case err == nil:
		respond.OK(c, result)
	case errors.Is(err, ErrInvalidCode):
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "Invalid or expired verification code", nil)
	case errors.Is(err, ErrUserNotFound):
		respond.NotFound(c, "User not found")
	default:
		respond.Internal(c, "login failed")
	}
}

func (h *Handler) botInfo(c *gin.Context) {
	respond.OK(c, h.Svc.Info)
}
