package model

import "time"

// Default category names seeded by the initial migration.
const (
	CategoryFood          = "Food & Dining"
	CategoryTransport     = "Transportation"
	CategoryGroceries     = "Groceries"
	CategoryHealthcare    = "Healthcare"
	CategoryEntertainment = "Entertainment"
	CategoryShopping      = "Shopping"
	CategoryUtilities     = "Utilities"
	CategoryOther         = "Other"
)

// Category represents a transaction category.
type Category struct {
	CreatedAt    time.Time
	Name         string
	Emoji        string
	Color        string
	ID           int64
	DisplayOrder int
	IsSystem     bool
}
