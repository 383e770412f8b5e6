package payments

import (
	"context"
	"sort"
	"sync"
	"time"

	"photoshoot-backend/internal/credits"
)

type MemoryRepo struct {
	mu     sync.Mutex
	orders map[string]Order
	ledger *credits.MemoryLedger
}

func NewMemoryRepo(ledger *credits.MemoryLedger) *MemoryRepo {
	if ledger == nil {
		ledger = credits.NewMemoryLedger()
	}
	return &MemoryRepo{orders: make(map[string]Order), ledger: ledger}
}

func (r *MemoryRepo) Create(ctx context.Context, order Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	r.orders[order.ID] = order
	return nil
}

func (r *MemoryRepo) SetInvoice(ctx context.Context, orderID, invoiceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	order.InvoiceID = invoiceID
	r.orders[orderID] = order
	return nil
}

func (r *MemoryRepo) GetByInvoice(ctx context.Context, invoiceID string) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		if invoiceID != "" && order.InvoiceID == invoiceID {
			return order, nil
		}
	}
	return Order{}, ErrNotFound
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	out := []Order{}
	for _, order := range r.orders {
		if order.UserID == userID {
			out = append(out, order)
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) MarkPaid(ctx context.Context, orderID string) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	if order.Status != StatusPending {
		return Order{}, ErrNotPending
	}
	if err := r.ledger.TopUp(order.UserID, order.Photoshoots); err != nil {
		return Order{}, err
	}
	now := time.Now().UTC()
	order.Status = StatusPaid
	order.PaidAt = &now
	r.orders[orderID] = order
	return order, nil
}

func (r *MemoryRepo) SetFinalStatus(ctx context.Context, orderID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if order.Status != StatusPending {
		return ErrNotPending
	}
	order.Status = status
	r.orders[orderID] = order
	return nil
}
