package users

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrAlreadyExists = errors.New("user already exists")
)

// Repo stores users. Balance columns are written only through the credits
// package; Create sets the opening balance.
type Repo interface {
	Create(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, userID string) (User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
}
