package packages

import (
	"context"
	"database/sql"
	"errors"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) InsertMissing(ctx context.Context, pkgs []Package) (int, error) {
	const query = `
INSERT INTO packages (id, name, photoshoots_count, price_rub, is_active)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (name) DO NOTHING`
	added := 0
	for _, p := range pkgs {
		res, err := r.DB.ExecContext(ctx, query, p.ID, p.Name, p.PhotoshootsCount, p.PriceRub, p.IsActive)
		if err != nil {
			return added, err
		}
		if n, err := res.RowsAffected(); err == nil {
			added += int(n)
		}
	}
	return added, nil
}

func (r *PGRepo) ListActive(ctx context.Context) ([]Package, error) {
	const query = `
SELECT id, name, photoshoots_count, price_rub, is_active
FROM packages
WHERE is_active
ORDER BY price_rub`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Package{}
	for rows.Next() {
		var p Package
		if err := rows.Scan(&p.ID, &p.Name, &p.PhotoshootsCount, &p.PriceRub, &p.IsActive); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PGRepo) GetActive(ctx context.Context, packageID string) (Package, error) {
	const query = `
SELECT id, name, photoshoots_count, price_rub, is_active
FROM packages
WHERE id = $1 AND is_active
LIMIT 1`
	var p Package
	err := r.DB.QueryRowContext(ctx, query, packageID).Scan(&p.ID, &p.Name, &p.PhotoshootsCount, &p.PriceRub, &p.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return Package{}, ErrNotFound
	}
	if err != nil {
		return Package{}, err
	}
	return p, nil
}
