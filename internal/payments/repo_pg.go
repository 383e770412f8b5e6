package payments

import (
	"context"
	"database/sql"
	"errors"

	"photoshoot-backend/internal/credits"
	"photoshoot-backend/internal/shared/storage/db"
)

type PGRepo struct {
	DB *sql.DB
}

const selectOrder = `
SELECT o.id, o.user_id, o.package_id, o.invoice_id, o.amount, p.photoshoots_count, o.status, o.created_at, o.paid_at
FROM orders o
JOIN packages p ON p.id = o.package_id`

func (r *PGRepo) Create(ctx context.Context, order Order) error {
	const query = `
INSERT INTO orders (id, user_id, package_id, amount, status, created_at)
VALUES ($1, $2, $3, $4, $5, now())`
	_, err := r.DB.ExecContext(ctx, query, order.ID, order.UserID, order.PackageID, order.Amount, order.Status)
	return err
}

func (r *PGRepo) SetInvoice(ctx context.Context, orderID, invoiceID string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE orders SET invoice_id = $2 WHERE id = $1`, orderID, invoiceID)
	if err != nil {
		return err
	}
	return expectOne(res, ErrNotFound)
}

func (r *PGRepo) GetByInvoice(ctx context.Context, invoiceID string) (Order, error) {
	rows, err := r.DB.QueryContext(ctx, selectOrder+"\nWHERE o.invoice_id = $1\nLIMIT 1", invoiceID)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Order{}, err
		}
		return Order{}, ErrNotFound
	}
	return scanOrder(rows)
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.DB.QueryContext(ctx, selectOrder+"\nWHERE o.user_id = $1\nORDER BY o.created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, rows.Err()
}

func (r *PGRepo) MarkPaid(ctx context.Context, orderID string) (Order, error) {
	const query = `
UPDATE orders o
SET status = 'paid', paid_at = now()
FROM packages p
WHERE o.id = $1 AND o.status = 'pending' AND p.id = o.package_id
RETURNING o.id, o.user_id, o.package_id, o.invoice_id, o.amount, p.photoshoots_count, o.status, o.created_at, o.paid_at`
	var order Order
	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, orderID)
		if err != nil {
			return err
		}
		if !rows.Next() {
			rows.Close()
			if err := rows.Err(); err != nil {
				return err
			}
			return ErrNotPending
		}
		order, err = scanOrder(rows)
		rows.Close()
		if err != nil {
			return err
		}
		return credits.TopUp(ctx, tx, order.UserID, order.Photoshoots)
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

func (r *PGRepo) SetFinalStatus(ctx context.Context, orderID, status string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE orders SET status = $2 WHERE id = $1 AND status = 'pending'`, orderID, status)
	if err != nil {
		return err
	}
	return expectOne(res, ErrNotPending)
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var order Order
	var invoiceID sql.NullString
	var paidAt sql.NullTime
	err := row.Scan(&order.ID, &order.UserID, &order.PackageID, &invoiceID, &order.Amount, &order.Photoshoots, &order.Status, &order.CreatedAt, &paidAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	order.InvoiceID = invoiceID.String
	if paidAt.Valid {
		t := paidAt.Time
		order.PaidAt = &t
	}
	return order, nil
}
