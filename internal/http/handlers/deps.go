package handlers

import (
	"prices/internal/config"
	"prices/internal/repos"
	"prices/internal/services"

	"github.com/jmoiron/sqlx"
)

type Deps struct {
	PriceHandler *PriceHandler
	Health       *HealthHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config) (*Deps, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	priceRepo := repos.NewPriceRepo(db, loc)
	priceSvc := services.NewPriceService(priceRepo)

	return &Deps{
		PriceHandler: NewPriceHandler(priceSvc, loc, cfg.RequestTimeout),
		Health:       &HealthHandler{DB: db},
	}, nil
}
