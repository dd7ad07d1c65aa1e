package ingestion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/catalog"
)

// Column names recognised in the header (case-insensitive).
const (
	ColumnSKU         = "sku"
	ColumnName        = "name"
	ColumnDescription = "description"
	ColumnPrice       = "price"
)

// ErrMissingValue marks a required column left empty on a row that has a key.
var ErrMissingValue = errors.New("required value is empty")

// RowError is a decode failure tied to a line of the input file.
type RowError struct {
	Line  int
	Field string
	Err   error
}

func (e *RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Field, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Normalize turns one raw row into a canonical record. skip is true when the
// key is empty after trimming; that row is dropped without error. A keyed row
// with an empty name is an error, so it can never blank an existing item.
func Normalize(raw map[string]string, line int) (rec catalog.Record, skip bool, err error) {
	sku := catalog.NormalizeSKU(raw[ColumnSKU])
	if sku == "" {
		return catalog.Record{}, true, nil
	}

	name := strings.TrimSpace(raw[ColumnName])
	if name == "" {
		return catalog.Record{}, false, &RowError{Line: line, Field: ColumnName, Err: ErrMissingValue}
	}

	price, err := catalog.ParsePrice(raw[ColumnPrice])
	if err != nil {
		return catalog.Record{}, false, &RowError{Line: line, Field: ColumnPrice, Err: err}
	}

	return catalog.Record{
		SKU:         sku,
		Name:        name,
		Description: strings.TrimSpace(raw[ColumnDescription]),
		Price:       price,
	}, false, nil
}
