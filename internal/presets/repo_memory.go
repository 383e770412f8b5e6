package presets

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu    sync.RWMutex
	items map[string]Preset
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: make(map[string]Preset)}
}

func (r *MemoryRepo) Create(ctx context.Context, p Preset, max int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	active := 0
	for _, existing := range r.items {
		if existing.UserID == p.UserID && existing.IsActive {
			active++
		}
	}
	if active >= max {
		return ErrLimitReached
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.IsActive = true
	r.items[p.ID] = p
	return nil
}

func (r *MemoryRepo) GetActive(ctx context.Context, userID, presetID string) (Preset, error) {
	if err := ctx.Err(); err != nil {
		return Preset{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[presetID]
	if !ok || p.UserID != userID || !p.IsActive {
		return Preset{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepo) ListActive(ctx context.Context, userID string) ([]Preset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := []Preset{}
	for _, p := range r.items {
		if p.UserID == userID && p.IsActive {
			out = append(out, p)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepo) Deactivate(ctx context.Context, userID, presetID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[presetID]
	if !ok || p.UserID != userID || !p.IsActive {
		return ErrNotFound
	}
	p.IsActive = false
	r.items[presetID] = p
	return nil
}
