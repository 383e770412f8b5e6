package presets

import (
	"encoding/json"
	"time"
)

// Preset is a saved set of style parameters. Deleted presets stay in storage
// with IsActive false.
type Preset struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	StyleData json.RawMessage `json:"style_data"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
}
