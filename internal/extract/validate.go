package extract

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/receiptworks/reconciler/internal/apperrors"
)

const dateLayout = "2006-01-02"

// parseAmount converts a model-reported number into an exact decimal
// magnitude. Negative values and values with more than 2 fractional digits
// are rejected outright; silent rounding would fabricate financial data.
func parseAmount(f float64) (decimal.Decimal, error) {
	d := decimal.NewFromFloat(f)
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: amount %s is negative", apperrors.ErrExtractionValidation, d)
	}
	if d.Exponent() < -2 {
		return decimal.Zero, fmt.Errorf("%w: amount %s has more than 2 fractional digits", apperrors.ErrExtractionValidation, d)
	}
	return d, nil
}

// parseDate validates a model-reported date string. Dates beyond now plus
// the clock-skew tolerance fail: a statement cannot report the far future.
func parseDate(raw string, now time.Time, futureTolerance time.Duration) (time.Time, error) {
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q: %v", apperrors.ErrExtractionValidation, raw, err)
	}
	if d.After(now.Add(futureTolerance)) {
		return time.Time{}, fmt.Errorf("%w: date %s is in the future", apperrors.ErrExtractionValidation, raw)
	}
	return d, nil
}

// balanceTolerance is how far the statement balance invariant may drift
// before the statement is flagged for review.
var balanceTolerance = decimal.NewFromFloat(0.01)

// checkBalanceInvariant verifies beginning + sum of signed amounts == ending.
// It returns the delta (ending minus computed) and whether the invariant
// holds within tolerance.
func checkBalanceInvariant(beginning, ending, sumSigned decimal.Decimal) (decimal.Decimal, bool) {
	delta := ending.Sub(beginning.Add(sumSigned))
	return delta, delta.Abs().LessThanOrEqual(balanceTolerance)
}
