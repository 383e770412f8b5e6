package users

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

type PGRepo struct {
	DB *sql.DB
}

const selectUser = `
SELECT id, telegram_id, username, first_name, last_name, images_remaining, total_images_processed, created_at, updated_at
FROM users`

func (r *PGRepo) Create(ctx context.Context, user User) (User, error) {
	const query = `
INSERT INTO users (id, telegram_id, username, first_name, last_name, images_remaining, total_images_processed, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 0, now(), now())
RETURNING created_at, updated_at`
	err := r.DB.QueryRowContext(ctx, query,
		user.ID,
		user.TelegramID,
		nullableString(user.Username),
		nullableString(user.FirstName),
		nullableString(user.LastName),
		user.ImagesRemaining,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrAlreadyExists
		}
		return User{}, err
	}
	user.TotalImagesProcessed = 0
	return user, nil
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	return r.getOne(ctx, selectUser+"\nWHERE id = $1\nLIMIT 1", userID)
}

func (r *PGRepo) GetByTelegramID(ctx context.Context, telegramID int64) (User, error) {
	return r.getOne(ctx, selectUser+"\nWHERE telegram_id = $1\nLIMIT 1", telegramID)
}

func (r *PGRepo) GetByUsername(ctx context.Context, username string) (User, error) {
	return r.getOne(ctx, selectUser+"\nWHERE lower(username) = $1\nLIMIT 1", NormalizeUsername(username))
}

func (r *PGRepo) getOne(ctx context.Context, query string, arg any) (User, error) {
	var user User
	var username, firstName, lastName sql.NullString
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.TelegramID,
		&username,
		&firstName,
		&lastName,
		&user.ImagesRemaining,
		&user.TotalImagesProcessed,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.Username = username.String
	user.FirstName = firstName.String
	user.LastName = lastName.String
	return user, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
