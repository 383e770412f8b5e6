package realtime

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoshoot-backend/internal/shared/auth"
)

type staticUsers map[string]bool

func (s staticUsers) Exists(ctx context.Context, userID string) (bool, error) {
	return s[userID], nil
}

func newWSServer(t *testing.T, reg *Registry, status StatusLookup) (*httptest.Server, *auth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	jwtSvc, err := auth.NewJWTService("ws-secret", time.Hour, "dev")
	require.NoError(t, err)

	h := NewHandler(reg, jwtSvc, staticUsers{"user-1": true}, status, nil)
	r := gin.New()
	h.RegisterRoutes(r.Group("/api"))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, jwtSvc
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, conn.ReadJSON(&out))
	return out
}

func TestWSRejectsMissingToken(t *testing.T) {
	srv, _ := newWSServer(t, NewRegistry(), nil)
	conn := dial(t, srv, "")

	msg := readJSON(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "Authentication token required", msg["message"])
}

func TestWSRejectsUnknownUser(t *testing.T) {
	srv, jwtSvc := newWSServer(t, NewRegistry(), nil)
	token, err := jwtSvc.GenerateToken("ghost")
	require.NoError(t, err)
	conn := dial(t, srv, token)

	msg := readJSON(t, conn)
	assert.Equal(t, "User not found", msg["message"])
}

func TestWSSessionFlow(t *testing.T) {
	reg := NewRegistry()
	status := func(ctx context.Context, userID, jobID string) (Event, error) {
		if jobID != "g-1" {
			return Event{}, ErrJobNotFound
		}
		return Event{JobID: "g-1", Status: "analyzing", Progress: 30}, nil
	}
	srv, jwtSvc := newWSServer(t, reg, status)
	token, err := jwtSvc.GenerateToken("user-1")
	require.NoError(t, err)
	conn := dial(t, srv, token)

	welcome := readJSON(t, conn)
	assert.Equal(t, "connected", welcome["type"])
	assert.Equal(t, "user-1", welcome["user_id"])
	assert.Equal(t, 1, reg.Connections("user-1"))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","timestamp":12345}`)))
	pong := readJSON(t, conn)
	assert.Equal(t, "pong", pong["type"])
	assert.EqualValues(t, 12345, pong["timestamp"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	bad := readJSON(t, conn)
	assert.Equal(t, "error", bad["type"])
	assert.Equal(t, "Invalid JSON format", bad["message"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"generation_status","job_id":"g-1"}`)))
	st := readJSON(t, conn)
	assert.Equal(t, "generation_status", st["type"])
	assert.Equal(t, "analyzing", st["status"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"hello"}`)))
	echo := readJSON(t, conn)
	assert.Equal(t, "echo", echo["type"])

	reg.Push("user-1", Event{Type: TypeGenerationUpdate, JobID: "g-1", Status: "generating_images", Progress: 70})
	pushed := readJSON(t, conn)
	assert.Equal(t, TypeGenerationUpdate, pushed["type"])
	assert.EqualValues(t, 70, pushed["progress"])
}

func TestWSUnregistersOnDisconnect(t *testing.T) {
	reg := NewRegistry()
	srv, jwtSvc := newWSServer(t, reg, nil)
	token, err := jwtSvc.GenerateToken("user-1")
	require.NoError(t, err)
	conn := dial(t, srv, token)
	_ = readJSON(t, conn)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return reg.Connections("user-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}
