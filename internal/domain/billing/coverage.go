package billing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Charge is a prospective line awaiting classification against coverage.
type Charge struct {
	ID          uuid.UUID
	ItemID      *uuid.UUID
	Description string
	Price       decimal.Decimal
}

// SplitByCoverage walks charges in order and consumes the remaining coverage
// greedily. A charge is covered only when the remaining amount still absorbs
// its full price; there is no partial coverage and no re-ordering to minimise
// the uncovered remainder. Both slices preserve input order.
func SplitByCoverage(remaining decimal.Decimal, charges []Charge) (covered, uncovered []Charge) {
	for _, c := range charges {
		if remaining.GreaterThanOrEqual(c.Price) {
			covered = append(covered, c)
			remaining = remaining.Sub(c.Price)
		} else {
			uncovered = append(uncovered, c)
		}
	}
	return covered, uncovered
}

// SumCharges totals the prices of a charge list.
func SumCharges(charges []Charge) decimal.Decimal {
	total := decimal.Zero
	for _, c := range charges {
		total = total.Add(c.Price)
	}
	return total
}
