package repos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"prices/internal/domain"
)

const pricesTable = "prices"

// storedLayout is how zone-less timestamps are written to the catalog.
const storedLayout = "2006-01-02 15:04:05"

type priceRow struct {
	ID        int64           `db:"id"`
	BrandID   int64           `db:"brand_id"`
	ProductID int64           `db:"product_id"`
	PriceList int64           `db:"price_list"`
	StartDate string          `db:"start_date"`
	EndDate   string          `db:"end_date"`
	Priority  int             `db:"priority"`
	Price     decimal.Decimal `db:"price"`
	Currency  string          `db:"curr"`
}

func (r priceRow) toModel(loc *time.Location) (domain.PriceRule, error) {
	start, err := parseStored(r.StartDate, loc)
	if err != nil {
		return domain.PriceRule{}, errors.Wrapf(err, "price %d start_date", r.ID)
	}
	end, err := parseStored(r.EndDate, loc)
	if err != nil {
		return domain.PriceRule{}, errors.Wrapf(err, "price %d end_date", r.ID)
	}
	return domain.PriceRule{
		ID:          r.ID,
		BrandID:     r.BrandID,
		ProductID:   r.ProductID,
		PriceListID: r.PriceList,
		StartDate:   start,
		EndDate:     end,
		Priority:    r.Priority,
		Price:       r.Price,
		Currency:    r.Currency,
	}, nil
}

// parseStored reads a catalog timestamp as wall-clock time in loc. Postgres
// TIMESTAMP columns come back as RFC 3339 text whose offset is meaningless.
func parseStored(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{storedLayout, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognised timestamp %q", s)
}

// PriceRepo reads price rules from the catalog database.
type PriceRepo struct {
	db  *sqlx.DB
	loc *time.Location
}

// NewPriceRepo builds a repo whose zone-less timestamps are read in loc.
func NewPriceRepo(db *sqlx.DB, loc *time.Location) *PriceRepo {
	if loc == nil {
		loc = time.UTC
	}
	return &PriceRepo{db: db, loc: loc}
}

func (r *PriceRepo) builder() sq.StatementBuilderType {
	if r.db.DriverName() == DriverPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// CandidatesFor returns every rule for the product/brand pair, whatever its
// validity window. Order is not significant.
func (r *PriceRepo) CandidatesFor(ctx context.Context, productID, brandID int64) ([]domain.PriceRule, error) {
	q, args, err := r.builder().
		Select("id", "brand_id", "product_id", "price_list", "start_date", "end_date", "priority", "price", "curr").
		From(pricesTable).
		Where(sq.Eq{"product_id": productID, "brand_id": brandID}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql query")
	}

	var rows []priceRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "select prices")
	}

	out := make([]domain.PriceRule, 0, len(rows))
	for _, row := range rows {
		rule, err := row.toModel(r.loc)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

// Insert stores a rule and returns its row id. Used for seeding and fixtures.
func (r *PriceRepo) Insert(ctx context.Context, rule domain.PriceRule) (int64, error) {
	return r.insert(ctx, r.db, rule)
}

func (r *PriceRepo) insert(ctx context.Context, q sqlx.QueryerContext, rule domain.PriceRule) (int64, error) {
	query, args, err := r.builder().
		Insert(pricesTable).
		SetMap(map[string]any{
			"brand_id":   rule.BrandID,
			"product_id": rule.ProductID,
			"price_list": rule.PriceListID,
			"start_date": rule.StartDate.In(r.loc).Format(storedLayout),
			"end_date":   rule.EndDate.In(r.loc).Format(storedLayout),
			"priority":   rule.Priority,
			"price":      rule.Price.StringFixed(2),
			"curr":       rule.Currency,
		}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "build sql query")
	}

	var id int64
	if err := sqlx.GetContext(ctx, q, &id, query, args...); err != nil {
		return 0, errors.Wrap(err, "insert price")
	}
	return id, nil
}
