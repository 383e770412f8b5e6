package presets

import (
	"context"
	"database/sql"
	"errors"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, p Preset, max int) error {
	// The count and the insert are one statement so two saves cannot both
	// take the last slot.
	const query = `
INSERT INTO style_presets (id, user_id, name, style_data, is_active, created_at, updated_at)
SELECT $1, $2, $3, $4, TRUE, now(), now()
WHERE (SELECT count(*) FROM style_presets WHERE user_id = $2 AND is_active) < $5`
	res, err := r.DB.ExecContext(ctx, query, p.ID, p.UserID, p.Name, []byte(p.StyleData), max)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLimitReached
	}
	return nil
}

func (r *PGRepo) GetActive(ctx context.Context, userID, presetID string) (Preset, error) {
	const query = `
SELECT id, user_id, name, style_data, is_active, created_at
FROM style_presets
WHERE id = $1 AND user_id = $2 AND is_active
LIMIT 1`
	var p Preset
	var data []byte
	err := r.DB.QueryRowContext(ctx, query, presetID, userID).Scan(&p.ID, &p.UserID, &p.Name, &data, &p.IsActive, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Preset{}, ErrNotFound
	}
	if err != nil {
		return Preset{}, err
	}
	p.StyleData = data
	return p, nil
}

func (r *PGRepo) ListActive(ctx context.Context, userID string) ([]Preset, error) {
	const query = `
SELECT id, user_id, name, style_data, is_active, created_at
FROM style_presets
WHERE user_id = $1 AND is_active
ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Preset{}
	for rows.Next() {
		var p Preset
		var data []byte
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &data, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.StyleData = data
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PGRepo) Deactivate(ctx context.Context, userID, presetID string) error {
	const query = `
UPDATE style_presets
SET is_active = FALSE, updated_at = now()
WHERE id = $1 AND user_id = $2 AND is_active`
	res, err := r.DB.ExecContext(ctx, query, presetID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
