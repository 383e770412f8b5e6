package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"photoshoot-backend/internal/shared/telemetry"
)

type Service struct {
	Repo Repo
	// FreeCredits is the opening balance of a new user.
	FreeCredits int
}

func NewService(repo Repo, freeCredits int) *Service {
	if freeCredits < 0 {
		freeCredits = 0
	}
	return &Service{Repo: repo, FreeCredits: freeCredits}
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.GetByID(ctx, userID)
}

func (s *Service) GetByTelegramID(ctx context.Context, telegramID int64) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	return s.Repo.GetByTelegramID(ctx, telegramID)
}

func (s *Service) GetByUsername(ctx context.Context, username string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if NormalizeUsername(username) == "" {
		return User{}, ErrNotFound
	}
	return s.Repo.GetByUsername(ctx, username)
}

// Exists reports whether userID names a stored user.
func (s *Service) Exists(ctx context.Context, userID string) (bool, error) {
	_, err := s.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Balance returns the remaining photoshoots.
func (s *Service) Balance(ctx context.Context, userID string) (int, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.ImagesRemaining, nil
}

// FindOrCreate returns the user bound to the Telegram account, creating it
// with the free balance on first login.
func (s *Service) FindOrCreate(ctx context.Context, id Identity) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if id.TelegramID == 0 {
		return User{}, errors.New("telegram id is required")
	}
	user, err := s.Repo.GetByTelegramID(ctx, id.TelegramID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}
	user, err = s.Repo.Create(ctx, User{
		ID:              uuid.NewString(),
		TelegramID:      id.TelegramID,
		Username:        NormalizeUsername(id.Username),
		FirstName:       strings.TrimSpace(id.FirstName),
		LastName:        strings.TrimSpace(id.LastName),
		ImagesRemaining: s.FreeCredits,
	})
	if errors.Is(err, ErrAlreadyExists) {
		// Lost a race with a concurrent first login.
		return s.Repo.GetByTelegramID(ctx, id.TelegramID)
	}
	if err != nil {
		return User{}, err
	}
	telemetry.Info("users.created", map[string]any{
		"user_id":          user.ID,
		"telegram_id":      user.TelegramID,
		"images_remaining": user.ImagesRemaining,
	})
	return user, nil
}
