package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"photoshoot-backend/internal/shared/auth"
	"photoshoot-backend/internal/shared/telemetry"
)

// TokenValidator verifies the access token passed as ?token=.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// UserChecker confirms the token's user still exists.
type UserChecker interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// StatusLookup answers a client's generation_status request with the
// persisted state of one of its jobs.
type StatusLookup func(ctx context.Context, userID, jobID string) (Event, error)

// ErrJobNotFound is returned by a StatusLookup for unknown or foreign jobs.
var ErrJobNotFound = errors.New("job not found")

// Handler serves the websocket endpoint.
type Handler struct {
	Registry *Registry
	Tokens   TokenValidator
	Users    UserChecker
	Status   StatusLookup
	upgrader websocket.Upgrader
}

// NewHandler builds a Handler accepting the given origins; an empty list accepts any origin.
func NewHandler(reg *Registry, tokens TokenValidator, users UserChecker, status StatusLookup, allowedOrigins []string) *Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimSpace(o)] = struct{}{}
	}
	return &Handler{
		Registry: reg,
		Tokens:   tokens,
		Users:    users,
		Status:   status,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowed) == 0 {
					return true
				}
				_, ok := allowed[origin]
				if !ok {
					_, ok = allowed["*"]
				}
				return ok
			},
		},
	}
}

// RegisterRoutes attaches the websocket route. It authenticates through the
// query string, so it must sit outside the bearer-auth group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ws", h.serve)
}

type clientMessage struct {
	Type      string          `json:"type"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
	JobID     string          `json:"job_id,omitempty"`
}

func (h *Handler) serve(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		telemetry.Warn("realtime.upgrade_failed", map[string]any{"error": err.Error()})
		return
	}
	conn := newWSConn(ws)
	defer conn.Close()

	userID, reason := h.authenticate(c.Request.Context(), c.Query("token"))
	if userID == "" {
		_ = conn.writeJSON(gin.H{"type": "error", "message": reason})
		return
	}

	h.Registry.Register(userID, conn)
	defer h.Registry.Unregister(userID, conn)
	telemetry.Info("realtime.connected", map[string]any{
		"user_id":     userID,
		"connections": h.Registry.Connections(userID),
	})

	if err := conn.writeJSON(gin.H{
		"type":    "connected",
		"message": "WebSocket connection established",
		"user_id": userID,
	}); err != nil {
		return
	}

	ws.SetReadLimit(maxReadBytes)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go keepAlive(conn, done)

	ctx := c.Request.Context()
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			telemetry.Debug("realtime.disconnected", map[string]any{"user_id": userID, "error": err.Error()})
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		if reply := h.reply(ctx, userID, raw); reply != nil {
			if err := conn.writeJSON(reply); err != nil {
				return
			}
		}
	}
}

func (h *Handler) authenticate(ctx context.Context, token string) (string, string) {
	if strings.TrimSpace(token) == "" {
		return "", "Authentication token required"
	}
	claims, err := h.Tokens.ValidateToken(token)
	if err != nil {
		return "", "Invalid authentication token"
	}
	if h.Users != nil {
		ok, err := h.Users.Exists(ctx, claims.UserID)
		if err != nil {
			telemetry.Error("realtime.auth_failed", map[string]any{"user_id": claims.UserID, "error": err.Error()})
			return "", "Authentication failed"
		}
		if !ok {
			return "", "User not found"
		}
	}
	return claims.UserID, ""
}

func (h *Handler) reply(ctx context.Context, userID string, raw []byte) any {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return gin.H{"type": "error", "message": "Invalid JSON format"}
	}
	switch msg.Type {
	case "ping":
		return gin.H{"type": "pong", "timestamp": msg.Timestamp}
	case "generation_status":
		if h.Status == nil || msg.JobID == "" {
			return gin.H{"type": "error", "message": "job_id is required"}
		}
		ev, err := h.Status(ctx, userID, msg.JobID)
		if err != nil {
			return gin.H{"type": "error", "message": "Generation not found"}
		}
		ev.Type = "generation_status"
		return ev
	default:
		return gin.H{"type": "echo", "data": json.RawMessage(raw)}
	}
}

func keepAlive(conn *wsConn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
