// Package catalog holds the catalog item model shared by the ingestion
// pipeline, the product API and the Postgres stores.
package catalog

import (
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

var (
	// ErrNotFound is returned when an item does not exist.
	ErrNotFound = errors.New("catalog item not found")

	// ErrDuplicateSKU is returned when a create collides with an existing key.
	ErrDuplicateSKU = errors.New("sku already exists")
)

// Item is a stored catalog entry. SKU is unique and always upper case.
type Item struct {
	ID          int64          `json:"id"`
	SKU         string         `json:"sku"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Price       pgtype.Numeric `json:"price"`
	IsActive    bool           `json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Record is one canonical row ready for reconciliation.
type Record struct {
	SKU         string
	Name        string
	Description string
	Price       pgtype.Numeric
}

// ItemUpdate is the complete set of fields reconciliation overwrites on an
// existing item, addressed by SKU.
type ItemUpdate struct {
	SKU         string
	Name        string
	Description string
	Price       pgtype.Numeric
	UpdatedAt   time.Time
}

// UpdateFrom builds the update applied when r hits an existing item.
func UpdateFrom(r Record, at time.Time) ItemUpdate {
	return ItemUpdate{
		SKU:         r.SKU,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		UpdatedAt:   at,
	}
}

// NormalizeSKU trims and upper-cases a key so lookups are case-insensitive.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}
