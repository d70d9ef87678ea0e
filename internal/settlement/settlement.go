// Package settlement holds the arithmetic used to close a consignment bag:
// how many units sold, how much the reseller keeps and what the store receives.
// It performs no I/O.
package settlement

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRate     = errors.New("commission rate must be between 0 and 100")
	ErrInvalidQuantity = errors.New("sent quantity cannot be negative")

	hundred = decimal.NewFromInt(100)
)

// Line is one shipped item as seen by the settlement.
type Line struct {
	Sent      int
	Returned  int
	UnitPrice decimal.Decimal
}

// Sold is the number of units not returned, after clamping.
func (l Line) Sold() int {
	return l.Sent - Clamp(l.Returned, l.Sent)
}

// Summary is the outcome of settling a bag.
type Summary struct {
	TotalItems        int             `json:"total_items"`
	ReturnedItems     int             `json:"returned_items"`
	SoldItems         int             `json:"sold_items"`
	TotalValue        decimal.Decimal `json:"total_value"`
	TotalReturned     decimal.Decimal `json:"total_returned"`
	TotalSold         decimal.Decimal `json:"total_sold"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	Commission        decimal.Decimal `json:"commission"`
	NetToStore        decimal.Decimal `json:"net_to_store"`
}

// Clamp bounds a returned quantity to [0, sent].
func Clamp(returned, sent int) int {
	if returned < 0 {
		return 0
	}
	if returned > sent {
		return sent
	}
	return returned
}

// Adjust applies delta to returned and clamps the result.
func Adjust(returned, delta, sent int) int {
	return Clamp(returned+delta, sent)
}

// Compute settles lines at the given commission rate (percent of sold value
// kept by the reseller). Commission is rounded to cents; the store gets the rest.
func Compute(lines []Line, ratePercent decimal.Decimal) (Summary, error) {
	if ratePercent.IsNegative() || ratePercent.GreaterThan(hundred) {
		return Summary{}, ErrInvalidRate
	}

	s := Summary{
		TotalValue:        decimal.Zero,
		TotalReturned:     decimal.Zero,
		TotalSold:         decimal.Zero,
		CommissionPercent: ratePercent,
	}
	for _, l := range lines {
		if l.Sent < 0 {
			return Summary{}, ErrInvalidQuantity
		}
		returned := Clamp(l.Returned, l.Sent)
		sold := l.Sent - returned

		s.TotalItems += l.Sent
		s.ReturnedItems += returned
		s.SoldItems += sold
		s.TotalValue = s.TotalValue.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Sent))))
		s.TotalReturned = s.TotalReturned.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(returned))))
		s.TotalSold = s.TotalSold.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(sold))))
	}

	s.Commission = s.TotalSold.Mul(ratePercent).Div(hundred).Round(2)
	s.NetToStore = s.TotalSold.Sub(s.Commission)
	return s, nil
}
