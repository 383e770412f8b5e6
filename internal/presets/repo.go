package presets

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("style preset not found")
	ErrLimitReached = errors.New("style preset limit reached")
)

type Repo interface {
	// Create inserts p unless the user already has max active presets.
	Create(ctx context.Context, p Preset, max int) error
	GetActive(ctx context.Context, userID, presetID string) (Preset, error)
	ListActive(ctx context.Context, userID string) ([]Preset, error)
	Deactivate(ctx context.Context, userID, presetID string) error
}
