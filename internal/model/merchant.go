package model

import "time"

// Merchant is the per-merchant record keyed by normalized name.
type Merchant struct {
	CreatedAt      time.Time
	NormalizedName string
	DisplayName    string
	ID             int64
	CategoryID     int64
	Excluded       bool // Excluded from expense tracking aggregates
	UserDefined    bool // Category was chosen explicitly rather than by keyword
}
