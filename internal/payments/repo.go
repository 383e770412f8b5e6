package payments

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrNotPending means the order already left the pending state.
	ErrNotPending = errors.New("order is not pending")
)

type Repo interface {
	Create(ctx context.Context, order Order) error
	SetInvoice(ctx context.Context, orderID, invoiceID string) error
	GetByInvoice(ctx context.Context, invoiceID string) (Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// MarkPaid moves a pending order to paid and credits its photoshoots in
	// one transaction. Returns ErrNotPending for any other state.
	MarkPaid(ctx context.Context, orderID string) (Order, error)
	// SetFinalStatus moves a pending order to cancelled or failed.
	SetFinalStatus(ctx context.Context, orderID, status string) error
}
