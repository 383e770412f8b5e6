package users

import (
	"context"
	"sync"
	"time"

	"photoshoot-backend/internal/credits"
)

// MemoryRepo keeps identities in a map and balances in a shared
// credits.MemoryLedger, so charges made by other packages show up here.
type MemoryRepo struct {
	mu     sync.RWMutex
	users  map[string]User
	ledger *credits.MemoryLedger
}

func NewMemoryRepo(ledger *credits.MemoryLedger) *MemoryRepo {
	if ledger == nil {
		ledger = credits.NewMemoryLedger()
	}
	return &MemoryRepo{users: make(map[string]User), ledger: ledger}
}

func (r *MemoryRepo) Create(ctx context.Context, user User) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.ID == user.ID || existing.TelegramID == user.TelegramID {
			return User{}, ErrAlreadyExists
		}
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.TotalImagesProcessed = 0
	r.ledger.Open(user.ID, user.ImagesRemaining)
	r.users[user.ID] = user
	return r.withBalance(user), nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (User, error) {
	return r.find(ctx, func(u User) bool { return u.ID == userID })
}

func (r *MemoryRepo) GetByTelegramID(ctx context.Context, telegramID int64) (User, error) {
	return r.find(ctx, func(u User) bool { return u.TelegramID == telegramID })
}

func (r *MemoryRepo) GetByUsername(ctx context.Context, username string) (User, error) {
	want := NormalizeUsername(username)
	return r.find(ctx, func(u User) bool { return want != "" && NormalizeUsername(u.Username) == want })
}

func (r *MemoryRepo) find(ctx context.Context, match func(User) bool) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			return r.withBalance(u), nil
		}
	}
	return User{}, ErrNotFound
}

func (r *MemoryRepo) withBalance(u User) User {
	if acc, ok := r.ledger.Get(u.ID); ok {
		u.ImagesRemaining = acc.ImagesRemaining
		u.TotalImagesProcessed = acc.TotalImagesProcessed
	}
	return u
}
