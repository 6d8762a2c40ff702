package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PriceRule is one row of the price catalog: a price for a product/brand pair
// that applies between StartDate and EndDate, both inclusive.
type PriceRule struct {
	ID          int64
	BrandID     int64
	ProductID   int64
	PriceListID int64
	StartDate   time.Time
	EndDate     time.Time
	Priority    int
	Price       decimal.Decimal
	Currency    string
}

// ActiveAt reports whether t falls inside [StartDate, EndDate].
func (r PriceRule) ActiveAt(t time.Time) bool {
	return !t.Before(r.StartDate) && !t.After(r.EndDate)
}

// Outranks reports whether r wins over o when both are active at once.
// Higher priority wins; ties go to the lower price list, then the earlier
// start, then the lower row id, so the choice never depends on input order.
func (r PriceRule) Outranks(o PriceRule) bool {
	if r.Priority != o.Priority {
		return r.Priority > o.Priority
	}
	if r.PriceListID != o.PriceListID {
		return r.PriceListID < o.PriceListID
	}
	if !r.StartDate.Equal(o.StartDate) {
		return r.StartDate.Before(o.StartDate)
	}
	return r.ID < o.ID
}

// Validate checks the row-level invariants of a catalog entry.
func (r PriceRule) Validate() error {
	switch {
	case r.ProductID <= 0:
		return fmt.Errorf("price rule %d: product id must be positive", r.ID)
	case r.BrandID <= 0:
		return fmt.Errorf("price rule %d: brand id must be positive", r.ID)
	case r.EndDate.Before(r.StartDate):
		return fmt.Errorf("price rule %d: end date %s before start date %s", r.ID, r.EndDate, r.StartDate)
	case r.Priority < 0:
		return fmt.Errorf("price rule %d: negative priority", r.ID)
	case r.Price.IsNegative():
		return fmt.Errorf("price rule %d: negative price", r.ID)
	case len(r.Currency) != 3:
		return fmt.Errorf("price rule %d: currency %q is not an ISO 4217 code", r.ID, r.Currency)
	}
	return nil
}
