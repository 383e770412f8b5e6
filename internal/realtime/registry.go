// Package realtime keeps the live push channels of connected users.
package realtime

import (
	"encoding/json"
	"sync"

	"photoshoot-backend/internal/shared/metrics"
	"photoshoot-backend/internal/shared/telemetry"
)

// Conn is one live channel to a client. Implementations serialize their own writes.
type Conn interface {
	WriteMessage(data []byte) error
	Close() error
}

// Pusher is the send side of the registry, consumed by the orchestrator and payments.
type Pusher interface {
	Push(userID string, payload any)
}

// Registry maps user IDs to their set of open connections.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[Conn]struct{}
	total int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]map[Conn]struct{})}
}

// Register makes conn reachable through Push(userID, ...). A user may hold
// several connections at once, one per open tab.
func (r *Registry) Register(userID string, conn Conn) {
	if userID == "" || conn == nil {
		return
	}
	r.mu.Lock()
	set := r.conns[userID]
	if set == nil {
		set = make(map[Conn]struct{})
		r.conns[userID] = set
	}
	if _, exists := set[conn]; !exists {
		set[conn] = struct{}{}
		r.total++
	}
	total := r.total
	r.mu.Unlock()
	metrics.SetRealtimeConnections(total)
}

// Unregister removes conn. Unknown users or connections are ignored.
func (r *Registry) Unregister(userID string, conn Conn) {
	r.mu.Lock()
	removed := r.removeLocked(userID, conn)
	total := r.total
	r.mu.Unlock()
	if removed {
		metrics.SetRealtimeConnections(total)
	}
}

func (r *Registry) removeLocked(userID string, conn Conn) bool {
	set := r.conns[userID]
	if set == nil {
		return false
	}
	if _, ok := set[conn]; !ok {
		return false
	}
	delete(set, conn)
	r.total--
	if len(set) == 0 {
		delete(r.conns, userID)
	}
	return true
}

// Connections returns how many connections userID currently holds.
func (r *Registry) Connections(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID])
}

// Push sends payload to every connection of userID. Connections that fail the
// write are unregistered and closed. Pushing to a user with no connection is a
// no-op; Push never reports errors to the caller.
func (r *Registry) Push(userID string, payload any) {
	targets := r.snapshot(userID)
	if len(targets) == 0 {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		telemetry.Error("realtime.marshal_failed", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return
	}
	for _, conn := range targets {
		if err := conn.WriteMessage(data); err != nil {
			telemetry.Warn("realtime.push_failed", map[string]any{
				"user_id": userID,
				"error":   err.Error(),
			})
			r.Unregister(userID, conn)
			_ = conn.Close()
			metrics.IncRealtimeDropped()
		}
	}
}

func (r *Registry) snapshot(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.conns[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}
