package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestStatusWithoutDatabase(t *testing.T) {
	body, ok := NewService(nil).Status(t.Context())
	assert.True(t, ok)
	assert.Equal(t, "memory", body["database"])
}

func TestStatusDatabaseUp(t *testing.T) {
	body, ok := NewService(pingFunc(func(context.Context) error { return nil })).Status(t.Context())
	assert.True(t, ok)
	assert.Equal(t, "ok", body["database"])
	assert.Equal(t, "healthy", body["status"])
}

func TestStatusDatabaseDown(t *testing.T) {
	body, ok := NewService(pingFunc(func(context.Context) error { return errors.New("refused") })).Status(t.Context())
	assert.False(t, ok)
	assert.Equal(t, "unhealthy", body["status"])
}
