package generations

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"photoshoot-backend/internal/credits"
)

// MemoryRepo charges through the same MemoryLedger the users MemoryRepo reads.
type MemoryRepo struct {
	mu     sync.Mutex
	items  map[string]Generation
	ledger *credits.MemoryLedger
	now    func() time.Time
}

func NewMemoryRepo(ledger *credits.MemoryLedger) *MemoryRepo {
	if ledger == nil {
		ledger = credits.NewMemoryLedger()
	}
	return &MemoryRepo{
		items:  make(map[string]Generation),
		ledger: ledger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepo) Create(ctx context.Context, gen Generation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if gen.CreatedAt.IsZero() {
		gen.CreatedAt = now
	}
	gen.UpdatedAt = now
	r.items[gen.ID] = gen
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, generationID string) (Generation, error) {
	if err := ctx.Err(); err != nil {
		return Generation{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	gen, ok := r.items[generationID]
	if !ok {
		return Generation{}, ErrNotFound
	}
	gen.Images = slices.Clone(gen.Images)
	return gen, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	var out []Generation
	for _, gen := range r.items {
		if gen.UserID == userID {
			gen.Images = slices.Clone(gen.Images)
			out = append(out, gen)
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []Generation{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) SetStage(ctx context.Context, generationID, status string, progress int) error {
	return r.update(ctx, generationID, func(gen *Generation) error {
		gen.Status = status
		gen.Progress = progress
		return nil
	})
}

func (r *MemoryRepo) SetSourceKey(ctx context.Context, generationID, key string) error {
	return r.update(ctx, generationID, func(gen *Generation) error {
		gen.SourceKey = key
		return nil
	})
}

func (r *MemoryRepo) Complete(ctx context.Context, generationID, userID, prompt string, images []string, imagesProduced int) error {
	return r.update(ctx, generationID, func(gen *Generation) error {
		if err := r.ledger.Charge(userID, imagesProduced); err != nil {
			return err
		}
		now := r.now()
		gen.Status = StatusCompleted
		gen.Progress = stageCompleted.progress
		gen.PromptUsed = prompt
		gen.Images = append([]string{}, images...)
		gen.CompletedAt = &now
		return nil
	})
}

func (r *MemoryRepo) MarkFailed(ctx context.Context, generationID, message string) error {
	return r.update(ctx, generationID, func(gen *Generation) error {
		now := r.now()
		gen.Status = StatusFailed
		gen.Progress = 0
		gen.ErrorMessage = message
		gen.CompletedAt = &now
		return nil
	})
}

// update applies fn under the lock; fn's changes are discarded when it fails.
func (r *MemoryRepo) update(ctx context.Context, generationID string, fn func(gen *Generation) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	gen, ok := r.items[generationID]
	if !ok {
		return ErrNotFound
	}
	if IsTerminal(gen.Status) {
		return ErrTerminal
	}
	if err := fn(&gen); err != nil {
		return err
	}
	gen.UpdatedAt = r.now()
	r.items[generationID] = gen
	return nil
}
