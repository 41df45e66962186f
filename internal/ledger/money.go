package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// Scale is the number of fractional digits stored for every amount.
	Scale = 2
	// Precision is the total number of digits a stored amount may hold.
	Precision = 15
)

var (
	// MinAmount is the smallest amount accepted by any money movement.
	MinAmount = decimal.New(1, -Scale)
	// MaxAmount is the largest value representable as NUMERIC(15,2).
	MaxAmount = decimal.RequireFromString("9999999999999.99")
)

// ParseAmount parses user input into a validated amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, newError(KindInvalidAmount, "amount must be numeric", err)
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Decimal{}, err
	}
	return d, nil
}

// ValidateAmount checks that d is at least MinAmount, fits in the stored
// precision and carries no more than two fractional digits.
func ValidateAmount(d decimal.Decimal) error {
	if d.LessThan(MinAmount) || d.GreaterThan(MaxAmount) {
		return ErrInvalidAmount
	}
	if !d.Equal(d.Truncate(Scale)) {
		return ErrInvalidAmount
	}
	return nil
}

// FormatAmount renders an amount with exactly two fractional digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
