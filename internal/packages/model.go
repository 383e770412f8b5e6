package packages

// Package is a purchasable bundle of photoshoots.
type Package struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	PhotoshootsCount int     `json:"photoshoots_count"`
	PriceRub         float64 `json:"price_rub"`
	IsActive         bool    `json:"is_active"`
}
