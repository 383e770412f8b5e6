package users

import (
	"strings"
	"time"
)

// User is a Telegram identity with its photoshoot balance. ImagesRemaining
// counts photoshoots; TotalImagesProcessed counts produced images.
type User struct {
	ID                   string    `json:"id"`
	TelegramID           int64     `json:"telegram_id"`
	Username             string    `json:"username,omitempty"`
	FirstName            string    `json:"first_name,omitempty"`
	LastName             string    `json:"last_name,omitempty"`
	ImagesRemaining      int       `json:"images_remaining"`
	TotalImagesProcessed int       `json:"total_images_processed"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"-"`
}

// Identity is the profile data supplied by a Telegram login.
type Identity struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}

// NormalizeUsername strips a leading "@" and lowercases.
func NormalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "@"))
}
