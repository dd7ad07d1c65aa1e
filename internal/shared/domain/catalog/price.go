package catalog

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// ErrInvalidPrice is returned for price text that is not a plain decimal.
var ErrInvalidPrice = errors.New("invalid price")

// Plain decimals that fit the NUMERIC(12,2) price column: at most ten integer
// digits and two fraction digits. NaN, Infinity and exponents are rejected.
var decimalPattern = regexp.MustCompile(`^[+-]?(\d{1,10}(\.\d{0,2})?|\.\d{1,2})$`)

// ZeroPrice is the price used when a row leaves the column empty.
func ZeroPrice() pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int), Valid: true}
}

// ParsePrice parses decimal text. Empty text is zero; anything else that is
// not a decimal number the price column can store exactly wraps ErrInvalidPrice.
func ParsePrice(s string) (pgtype.Numeric, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ZeroPrice(), nil
	}
	if !decimalPattern.MatchString(s) {
		return pgtype.Numeric{}, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{}, fmt.Errorf("%w: %q: %v", ErrInvalidPrice, s, err)
	}
	return n, nil
}
