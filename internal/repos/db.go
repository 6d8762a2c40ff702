package repos

import (
	"context"
	_ "embed"
	"log"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"prices/internal/domain"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

//go:embed seed/prices.yaml
var seedCatalog []byte

// OpenDB connects to the catalog database and makes sure the schema exists.
func OpenDB(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, errors.Errorf("unsupported db driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}
	if driver == DriverSQLite && strings.Contains(dsn, ":memory:") {
		// every new connection to :memory: is a fresh, empty database
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping db")
	}
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS prices(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  brand_id   INTEGER NOT NULL CHECK (brand_id > 0),
  product_id INTEGER NOT NULL CHECK (product_id > 0),
  price_list INTEGER NOT NULL,
  start_date TEXT NOT NULL,          -- yyyy-mm-dd hh:mm:ss, zone-less
  end_date   TEXT NOT NULL,
  priority   INTEGER NOT NULL DEFAULT 0 CHECK (priority >= 0),
  price      TEXT NOT NULL CHECK (CAST(price AS REAL) >= 0),
  curr       TEXT NOT NULL,
  CHECK (start_date <= end_date)
);
CREATE INDEX IF NOT EXISTS idx_prices_product_brand ON prices(product_id, brand_id);
`
	if db.DriverName() == DriverPostgres {
		schema = `
CREATE TABLE IF NOT EXISTS prices(
  id BIGSERIAL PRIMARY KEY,
  brand_id   BIGINT NOT NULL CHECK (brand_id > 0),
  product_id BIGINT NOT NULL CHECK (product_id > 0),
  price_list BIGINT NOT NULL,
  start_date TIMESTAMP NOT NULL,
  end_date   TIMESTAMP NOT NULL,
  priority   INTEGER NOT NULL DEFAULT 0 CHECK (priority >= 0),
  price      NUMERIC(12,2) NOT NULL CHECK (price >= 0),
  curr       CHAR(3) NOT NULL,
  CHECK (start_date <= end_date)
);
CREATE INDEX IF NOT EXISTS idx_prices_product_brand ON prices(product_id, brand_id);
`
	}
	_, err := db.Exec(schema)
	return errors.Wrap(err, "ensure schema")
}

type seedFile struct {
	Rules []struct {
		BrandID   int64           `yaml:"brand_id"`
		ProductID int64           `yaml:"product_id"`
		PriceList int64           `yaml:"price_list"`
		StartDate string          `yaml:"start_date"`
		EndDate   string          `yaml:"end_date"`
		Priority  int             `yaml:"priority"`
		Price     decimal.Decimal `yaml:"price"`
		Currency  string          `yaml:"curr"`
	} `yaml:"rules"`
}

// SeedIfEmpty loads the bundled demo catalog when the prices table has no rows.
// Zone-less seed timestamps are read in loc.
func SeedIfEmpty(ctx context.Context, db *sqlx.DB, loc *time.Location) error {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM prices`); err != nil {
		return errors.Wrap(err, "count prices")
	}
	if n > 0 {
		return nil
	}

	var f seedFile
	if err := yaml.Unmarshal(seedCatalog, &f); err != nil {
		return errors.Wrap(err, "decode seed catalog")
	}

	log.Printf("[seed] inserting %d demo price rules", len(f.Rules))

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin seed")
	}
	defer func() { _ = tx.Rollback() }()

	repo := &PriceRepo{db: db, loc: loc}
	for _, s := range f.Rules {
		start, err := parseStored(s.StartDate, loc)
		if err != nil {
			return err
		}
		end, err := parseStored(s.EndDate, loc)
		if err != nil {
			return err
		}
		rule := domain.PriceRule{
			BrandID: s.BrandID, ProductID: s.ProductID, PriceListID: s.PriceList,
			StartDate: start, EndDate: end, Priority: s.Priority,
			Price: s.Price, Currency: s.Currency,
		}
		if err := rule.Validate(); err != nil {
			return errors.Wrap(err, "seed catalog")
		}
		if _, err := repo.insert(ctx, tx, rule); err != nil {
			return err
		}
	}
	return errors.Wrap(tx.Commit(), "commit seed")
}
