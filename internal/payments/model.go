package payments

import "time"

const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Order is one package purchase. Photoshoots is copied from the package at
// creation and is what the paid transition credits.
type Order struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	PackageID   string     `json:"package_id"`
	InvoiceID   string     `json:"-"`
	Amount      float64    `json:"amount"`
	Photoshoots int        `json:"-"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}

// Notification is the webhook body sent by the payment provider.
type Notification struct {
	Event  string `json:"event"`
	Object *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"object"`
}
