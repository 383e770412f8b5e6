package generations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"photoshoot-backend/internal/credits"
	"photoshoot-backend/internal/shared/storage/db"
)

type PGRepo struct {
	DB *sql.DB
}

const selectGeneration = `
SELECT id, user_id, order_id, style_name, custom_prompt, aspect_ratio, is_free, status, progress,
       prompt_used, images, source_key, error_message, created_at, updated_at, completed_at
FROM generations`

// notTerminal guards every write so finished rows stay immutable.
const notTerminal = `status NOT IN ('completed', 'failed')`

func (r *PGRepo) Create(ctx context.Context, gen Generation) error {
	const query = `
INSERT INTO generations (id, user_id, order_id, style_name, custom_prompt, aspect_ratio, is_free, status, progress, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())`
	_, err := r.DB.ExecContext(ctx, query,
		gen.ID,
		gen.UserID,
		nullableString(gen.OrderID),
		nullableString(gen.StyleName),
		nullableString(gen.CustomPrompt),
		gen.AspectRatio,
		gen.IsFree,
		gen.Status,
		gen.Progress,
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, generationID string) (Generation, error) {
	rows, err := r.DB.QueryContext(ctx, selectGeneration+"\nWHERE id = $1\nLIMIT 1", generationID)
	if err != nil {
		return Generation{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Generation{}, err
		}
		return Generation{}, ErrNotFound
	}
	return scanGeneration(rows)
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Generation, error) {
	query := selectGeneration + `
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Generation{}
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, gen)
	}
	return out, rows.Err()
}

func (r *PGRepo) SetStage(ctx context.Context, generationID, status string, progress int) error {
	query := `
UPDATE generations
SET status = $2, progress = $3, updated_at = now()
WHERE id = $1 AND ` + notTerminal
	return r.exec(ctx, r.DB, query, generationID, status, progress)
}

func (r *PGRepo) SetSourceKey(ctx context.Context, generationID, key string) error {
	query := `
UPDATE generations
SET source_key = $2, updated_at = now()
WHERE id = $1 AND ` + notTerminal
	return r.exec(ctx, r.DB, query, generationID, key)
}

func (r *PGRepo) Complete(ctx context.Context, generationID, userID, prompt string, images []string, imagesProduced int) error {
	if images == nil {
		images = []string{}
	}
	payload, err := json.Marshal(images)
	if err != nil {
		return err
	}
	query := `
UPDATE generations
SET status = 'completed', progress = 100, prompt_used = $2, images = $3, updated_at = now(), completed_at = now()
WHERE id = $1 AND ` + notTerminal
	return db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := r.exec(ctx, tx, query, generationID, prompt, payload); err != nil {
			return err
		}
		return credits.Charge(ctx, tx, userID, imagesProduced)
	})
}

func (r *PGRepo) MarkFailed(ctx context.Context, generationID, message string) error {
	query := `
UPDATE generations
SET status = 'failed', progress = 0, error_message = $2, updated_at = now(), completed_at = now()
WHERE id = $1 AND ` + notTerminal
	return r.exec(ctx, r.DB, query, generationID, message)
}

// exec runs a guarded update and tells a missing row from a terminal one.
func (r *PGRepo) exec(ctx context.Context, q db.DBTX, query string, args ...any) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var status string
	err = q.QueryRowContext(ctx, `SELECT status FROM generations WHERE id = $1`, args[0]).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrTerminal
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row rowScanner) (Generation, error) {
	var gen Generation
	var orderID, styleName, customPrompt, promptUsed, sourceKey, errorMessage sql.NullString
	var images []byte
	var completedAt sql.NullTime
	err := row.Scan(
		&gen.ID,
		&gen.UserID,
		&orderID,
		&styleName,
		&customPrompt,
		&gen.AspectRatio,
		&gen.IsFree,
		&gen.Status,
		&gen.Progress,
		&promptUsed,
		&images,
		&sourceKey,
		&errorMessage,
		&gen.CreatedAt,
		&gen.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return Generation{}, err
	}
	gen.OrderID = orderID.String
	gen.StyleName = styleName.String
	gen.CustomPrompt = customPrompt.String
	gen.PromptUsed = promptUsed.String
	gen.SourceKey = sourceKey.String
	gen.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		t := completedAt.Time
		gen.CompletedAt = &t
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &gen.Images); err != nil {
			return Generation{}, fmt.Errorf("decode images: %w", err)
		}
	}
	if gen.Status == StatusCompleted && gen.Images == nil {
		gen.Images = []string{}
	}
	return gen, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
