package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prices/internal/domain"
	"prices/internal/services"
)

// fakeCatalog serves a fixed rule set and counts calls.
type fakeCatalog struct {
	mu    sync.Mutex
	rules []domain.PriceRule
	err   error
	calls int
}

func (f *fakeCatalog) CandidatesFor(_ context.Context, productID, brandID int64) ([]domain.PriceRule, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.PriceRule
	for _, r := range f.rules {
		if r.ProductID == productID && r.BrandID == brandID {
			out = append(out, r)
		}
	}
	return out, nil
}

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return t
}

func rule(id, list int64, start, end string, priority int, price string) domain.PriceRule {
	return domain.PriceRule{
		ID: id, BrandID: 1, ProductID: 35455, PriceListID: list,
		StartDate: at(start), EndDate: at(end), Priority: priority,
		Price: decimal.RequireFromString(price), Currency: "EUR",
	}
}

var (
	base     = rule(1, 1, "2020-06-14 00:00:00", "2020-12-31 23:59:59", 0, "35.50")
	afternoon = rule(2, 2, "2020-06-14 15:00:00", "2020-06-14 18:30:00", 1, "25.45")
	morning  = rule(3, 3, "2020-06-15 00:00:00", "2020-06-15 11:00:00", 1, "30.50")
	evening  = rule(4, 4, "2020-06-15 16:00:00", "2020-12-31 23:59:59", 1, "38.95")
)

func resolve(t *testing.T, svc *services.PriceService, when string, product, brand int64) services.Resolution {
	t.Helper()
	res, err := svc.Resolve(context.Background(), services.Query{At: at(when), ProductID: product, BrandID: brand})
	require.NoError(t, err)
	return res
}

func TestResolveCatalogScenarios(t *testing.T) {
	svc := services.NewPriceService(&fakeCatalog{rules: []domain.PriceRule{base, afternoon, morning, evening}})

	cases := []struct {
		name      string
		when      string
		wantList  int64
		wantPrice string
	}{
		{"day 14 at 10:00 gets base price", "2020-06-14 10:00:00", 1, "35.50"},
		{"day 14 at 16:00 gets afternoon promo", "2020-06-14 16:00:00", 2, "25.45"},
		{"day 14 at 21:00 falls back to base", "2020-06-14 21:00:00", 1, "35.50"},
		{"day 15 at 10:00 gets morning promo", "2020-06-15 10:00:00", 3, "30.50"},
		{"day 16 at 21:00 gets evening list", "2020-06-16 21:00:00", 4, "38.95"},
		{"exact start of morning promo", "2020-06-15 00:00:00", 3, "30.50"},
		{"exact end of afternoon promo", "2020-06-14 18:30:00", 2, "25.45"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := resolve(t, svc, tc.when, 35455, 1)
			require.True(t, res.Found())
			assert.Equal(t, tc.wantList, res.Rule.PriceListID)
			assert.Equal(t, tc.wantPrice, res.Rule.Price.StringFixed(2))
			assert.Equal(t, "EUR", res.Rule.Currency)
		})
	}
}

func TestResolveNotFoundIsNotAnError(t *testing.T) {
	svc := services.NewPriceService(&fakeCatalog{rules: []domain.PriceRule{base}})

	res := resolve(t, svc, "2020-06-14 10:00:00", 1, 1)
	assert.Equal(t, services.OutcomeNotFound, res.Outcome)
	assert.False(t, res.Found())

	// a rule exists, but not at that instant
	res = resolve(t, svc, "2021-01-01 00:00:00", 35455, 1)
	assert.Equal(t, services.OutcomeNotFound, res.Outcome)
	res = resolve(t, svc, "2020-06-13 23:59:59", 35455, 1)
	assert.Equal(t, services.OutcomeNotFound, res.Outcome)
}

func TestResolveDisjointWindows(t *testing.T) {
	rules := []domain.PriceRule{
		rule(1, 1, "2020-01-01 00:00:00", "2020-01-31 23:59:59", 0, "10"),
		rule(2, 2, "2020-02-01 00:00:00", "2020-02-29 23:59:59", 0, "20"),
		rule(3, 3, "2020-04-01 00:00:00", "2020-04-30 23:59:59", 0, "40"),
	}
	svc := services.NewPriceService(&fakeCatalog{rules: rules})

	for _, r := range rules {
		for _, when := range []time.Time{r.StartDate, r.EndDate, r.StartDate.Add(36 * time.Hour)} {
			res, err := svc.Resolve(context.Background(), services.Query{At: when, ProductID: 35455, BrandID: 1})
			require.NoError(t, err)
			require.True(t, res.Found(), "at %s", when)
			assert.Equal(t, r.ID, res.Rule.ID)
		}
	}
	res := resolve(t, svc, "2020-03-15 12:00:00", 35455, 1)
	assert.False(t, res.Found())
}

func TestResolveIgnoresHigherPriorityOutsideWindow(t *testing.T) {
	svc := services.NewPriceService(&fakeCatalog{rules: []domain.PriceRule{
		rule(1, 1, "2020-06-01 00:00:00", "2020-06-30 23:59:59", 1, "15"),
		rule(2, 2, "2020-06-01 00:00:00", "2020-06-30 23:59:59", 3, "12"),
		rule(3, 3, "2020-07-01 00:00:00", "2020-07-31 23:59:59", 9, "5"),
		rule(4, 4, "2019-01-01 00:00:00", "2019-12-31 23:59:59", 8, "6"),
	}})

	res := resolve(t, svc, "2020-06-10 12:00:00", 35455, 1)
	require.True(t, res.Found())
	assert.Equal(t, int64(2), res.Rule.ID)
}

func TestResolveEqualPriorityPrefersLowestPriceList(t *testing.T) {
	a := rule(10, 7, "2020-06-01 00:00:00", "2020-06-30 23:59:59", 2, "11")
	b := rule(11, 5, "2020-06-10 00:00:00", "2020-06-20 23:59:59", 2, "12")
	c := rule(12, 6, "2020-06-01 00:00:00", "2020-06-30 23:59:59", 2, "13")

	// every input order gives the same winner
	orders := [][]domain.PriceRule{{a, b, c}, {c, b, a}, {b, a, c}, {c, a, b}}
	for _, rules := range orders {
		svc := services.NewPriceService(&fakeCatalog{rules: rules})
		res := resolve(t, svc, "2020-06-15 00:00:00", 35455, 1)
		require.True(t, res.Found())
		assert.Equal(t, int64(5), res.Rule.PriceListID)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	cat := &fakeCatalog{rules: []domain.PriceRule{base, afternoon, morning, evening}}
	svc := services.NewPriceService(cat)

	first := resolve(t, svc, "2020-06-14 16:00:00", 35455, 1)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, resolve(t, svc, "2020-06-14 16:00:00", 35455, 1))
	}
	assert.Equal(t, 11, cat.calls)
}

func TestResolveConcurrent(t *testing.T) {
	svc := services.NewPriceService(&fakeCatalog{rules: []domain.PriceRule{base, afternoon, morning, evening}})

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Resolve(context.Background(), services.Query{At: at("2020-06-15 10:00:00"), ProductID: 35455, BrandID: 1})
			if err != nil {
				errs <- err
				return
			}
			if res.Rule.PriceListID != 3 {
				errs <- errors.New("wrong rule under concurrency")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestResolveValidation(t *testing.T) {
	cat := &fakeCatalog{rules: []domain.PriceRule{base}}
	svc := services.NewPriceService(cat)

	cases := []struct {
		name  string
		q     services.Query
		field string
	}{
		{"missing date", services.Query{ProductID: 35455, BrandID: 1}, "date"},
		{"missing product", services.Query{At: at("2020-06-14 10:00:00"), BrandID: 1}, "product"},
		{"negative brand", services.Query{At: at("2020-06-14 10:00:00"), ProductID: 35455, BrandID: -1}, "brand"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Resolve(context.Background(), tc.q)
			require.Error(t, err)
			var ve *services.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
			assert.True(t, services.IsValidation(err))
			assert.NotErrorIs(t, err, services.ErrLookup)
		})
	}
	assert.Zero(t, cat.calls, "invalid queries never reach the catalog")
}

func TestResolveLookupFailure(t *testing.T) {
	boom := errors.New("storage unavailable")
	svc := services.NewPriceService(&fakeCatalog{err: boom})

	_, err := svc.Resolve(context.Background(), services.Query{At: at("2020-06-14 10:00:00"), ProductID: 35455, BrandID: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrLookup)
	assert.ErrorIs(t, err, boom)
	assert.False(t, services.IsValidation(err))
}

func TestResolveCancelledContextDiscardsResult(t *testing.T) {
	svc := services.NewPriceService(&fakeCatalog{rules: []domain.PriceRule{base}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.Resolve(ctx, services.Query{At: at("2020-06-14 10:00:00"), ProductID: 35455, BrandID: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrLookup)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, res.Found())
}
