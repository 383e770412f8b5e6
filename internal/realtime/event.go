package realtime

// Event types pushed to clients.
const (
	TypeGenerationUpdate = "generation_update"
	TypePaymentUpdate    = "payment_update"
)

// Event is a generation progress message. It is never persisted.
type Event struct {
	Type     string   `json:"type"`
	JobID    string   `json:"job_id"`
	Status   string   `json:"status"`
	Progress int      `json:"progress"`
	Message  string   `json:"message"`
	Images   []string `json:"images"`
	ImageID  string   `json:"image_id,omitempty"`
}

// PaymentEvent tells the client a purchase changed state.
type PaymentEvent struct {
	Type        string  `json:"type"`
	OrderID     string  `json:"order_id"`
	Status      string  `json:"status"`
	Amount      float64 `json:"amount"`
	Photoshoots int     `json:"photoshoots,omitempty"`
}
