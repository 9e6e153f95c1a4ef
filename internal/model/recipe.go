package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price limits: five digits in total, two of them fractional.
const (
	PriceDecimalPlaces = 2
	priceMaxDigits     = 5
)

var maxPrice = decimal.New(1, priceMaxDigits-PriceDecimalPlaces) // 1000

// Recipe is a user-owned recipe. TagIDs and IngredientIDs mirror the
// recipe_tags and recipe_ingredients join rows.
type Recipe struct {
	ID            int64
	UserID        int64
	Title         string
	TimeMinutes   int
	Price         decimal.Decimal
	Link          string
	Image         string // Storage key relative to the media root, empty if none
	TagIDs        []int64
	IngredientIDs []int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// String returns the recipe title.
func (r *Recipe) String() string {
	return r.Title
}

// HasImage reports whether an image is attached.
func (r *Recipe) HasImage() bool {
	return r.Image != ""
}

// ValidPrice reports whether p fits a NUMERIC(5,2) column and is not negative.
func ValidPrice(p decimal.Decimal) bool {
	if p.IsNegative() {
		return false
	}
	if p.GreaterThanOrEqual(maxPrice) {
		return false
	}
	// Trailing zeros beyond two places ("5.000") are accepted.
	return p.Equal(p.Truncate(PriceDecimalPlaces))
}
