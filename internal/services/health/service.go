package health

import (
	"context"
	"time"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service encapsulates health-related checks.
type Service struct {
	DB      Pinger
	timeout time.Duration
}

// NewService constructs a health service. A nil db reports in-memory storage.
func NewService(db Pinger) *Service {
	return &Service{DB: db, timeout: 2 * time.Second}
}

// Status reports process and storage health. ok is false when the database
// is configured but unreachable.
func (s *Service) Status(ctx context.Context) (map[string]any, bool) {
	out := map[string]any{"status": "healthy", "database": "memory"}
	if s == nil || s.DB == nil {
		return out, true
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.DB.PingContext(ctx); err != nil {
		out["status"] = "unhealthy"
		out["database"] = "unreachable"
		return out, false
	}
	out["database"] = "ok"
	return out, true
}
