package packages

import (
	"context"
	"sort"
	"sync"
)

type MemoryRepo struct {
	mu    sync.RWMutex
	items map[string]Package
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: make(map[string]Package)}
}

func (r *MemoryRepo) InsertMissing(ctx context.Context, pkgs []Package) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make(map[string]struct{}, len(r.items))
	for _, p := range r.items {
		names[p.Name] = struct{}{}
	}
	added := 0
	for _, p := range pkgs {
		if _, ok := names[p.Name]; ok {
			continue
		}
		names[p.Name] = struct{}{}
		r.items[p.ID] = p
		added++
	}
	return added, nil
}

func (r *MemoryRepo) ListActive(ctx context.Context) ([]Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := []Package{}
	for _, p := range r.items {
		if p.IsActive {
			out = append(out, p)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PriceRub < out[j].PriceRub })
	return out, nil
}

func (r *MemoryRepo) GetActive(ctx context.Context, packageID string) (Package, error) {
	if err := ctx.Err(); err != nil {
		return Package{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[packageID]
	if !ok || !p.IsActive {
		return Package{}, ErrNotFound
	}
	return p, nil
}
