package services

import (
	"context"
	"time"

	"github.com/samber/lo"

	"prices/internal/domain"
)

// Catalog yields every price rule stored for a product/brand pair, in no
// particular order and without any date filtering.
type Catalog interface {
	CandidatesFor(ctx context.Context, productID, brandID int64) ([]domain.PriceRule, error)
}

// Query asks which price applies to a product of a brand at an instant.
type Query struct {
	At        time.Time
	ProductID int64
	BrandID   int64
}

func (q Query) validate() error {
	switch {
	case q.At.IsZero():
		return &ValidationError{Field: "date", Reason: "missing"}
	case q.ProductID <= 0:
		return &ValidationError{Field: "product", Reason: "must be a positive integer"}
	case q.BrandID <= 0:
		return &ValidationError{Field: "brand", Reason: "must be a positive integer"}
	}
	return nil
}

type Outcome int

const (
	OutcomeNotFound Outcome = iota
	OutcomeResolved
)

func (o Outcome) String() string {
	if o == OutcomeResolved {
		return "resolved"
	}
	return "not_found"
}

// Resolution is the answer to a Query. Rule is only meaningful when Outcome
// is OutcomeResolved; "no price" is an outcome, not an error.
type Resolution struct {
	Outcome Outcome
	Rule    domain.PriceRule
}

func (r Resolution) Found() bool { return r.Outcome == OutcomeResolved }

// PriceService picks the single applicable rule for a query. It holds no
// state besides its catalog and is safe for concurrent use.
type PriceService struct {
	Catalog Catalog
}

func NewPriceService(catalog Catalog) *PriceService {
	return &PriceService{Catalog: catalog}
}

// Resolve returns the rule active at q.At with the highest priority. Ties on
// priority are broken by domain.PriceRule.Outranks. Errors are either a
// *ValidationError or wrap ErrLookup.
func (s *PriceService) Resolve(ctx context.Context, q Query) (Resolution, error) {
	if err := q.validate(); err != nil {
		return Resolution{}, err
	}

	candidates, err := s.Catalog.CandidatesFor(ctx, q.ProductID, q.BrandID)
	if err != nil {
		return Resolution{}, &lookupError{cause: err}
	}
	// a cancelled call must not act on whatever the catalog managed to return
	if err := ctx.Err(); err != nil {
		return Resolution{}, &lookupError{cause: err}
	}

	matching := lo.Filter(candidates, func(r domain.PriceRule, _ int) bool {
		return r.ActiveAt(q.At)
	})
	if len(matching) == 0 {
		return Resolution{Outcome: OutcomeNotFound}, nil
	}

	winner := lo.MaxBy(matching, func(a, b domain.PriceRule) bool {
		return a.Outranks(b)
	})
	return Resolution{Outcome: OutcomeResolved, Rule: winner}, nil
}
