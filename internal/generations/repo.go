package generations

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("generation not found")
	// ErrTerminal is returned for writes to a completed or failed generation.
	ErrTerminal = errors.New("generation already finished")
)

// Repo persists generations.
type Repo interface {
	Create(ctx context.Context, gen Generation) error
	GetByID(ctx context.Context, generationID string) (Generation, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Generation, error)
	// SetStage records a non-terminal stage.
	SetStage(ctx context.Context, generationID, status string, progress int) error
	SetSourceKey(ctx context.Context, generationID, key string) error
	// Complete stores the prompt and images and charges the owner one
	// photoshoot crediting imagesProduced, atomically. It returns
	// credits.ErrInsufficientCredit when the charge cannot be applied, in
	// which case nothing is written.
	Complete(ctx context.Context, generationID, userID, prompt string, images []string, imagesProduced int) error
	// MarkFailed stores the failure marker on a non-terminal generation.
	MarkFailed(ctx context.Context, generationID, message string) error
}
