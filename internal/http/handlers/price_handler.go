package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"prices/internal/log"
	"prices/internal/metrics"
	"prices/internal/services"
	"prices/internal/validate"
)

// PriceQueryRequest carries the raw query parameters of a price lookup.
type PriceQueryRequest struct {
	Date    string `query:"date" validate:"required,max=40"`
	Product string `query:"product" validate:"required,numeric,max=18"`
	Brand   string `query:"brand" validate:"required,numeric,max=18"`
}

// PriceResponse is the rendered form of the applicable price rule.
type PriceResponse struct {
	ProductID   int64       `json:"productId"`
	BrandID     int64       `json:"brandId"`
	PriceListID int64       `json:"priceListId"`
	StartDate   string      `json:"startDate"`
	EndDate     string      `json:"endDate"`
	Price       json.Number `json:"price"`
	Currency    string      `json:"currency"`
}

type PriceHandler struct {
	Prices   *services.PriceService
	Loc      *time.Location
	Timeout  time.Duration
	validate *validator.Validate
}

func NewPriceHandler(prices *services.PriceService, loc *time.Location, timeout time.Duration) *PriceHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &PriceHandler{Prices: prices, Loc: loc, Timeout: timeout, validate: validator.New()}
}

// outcome of one request, shared by the JSON and HTML renderings
type lookup struct {
	res    services.Resolution
	status int
	msg    string
}

func (h *PriceHandler) resolve(c *fiber.Ctx) lookup {
	var req PriceQueryRequest
	if err := c.QueryParser(&req); err != nil {
		log.Security(c, "validation.fail", map[string]any{"err": err.Error()})
		metrics.ObserveResolution("invalid")
		return lookup{status: fiber.StatusBadRequest, msg: "malformed query"}
	}
	if err := h.validate.Struct(&req); err != nil {
		field := "query"
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			field = queryName(ve[0].StructField())
		}
		log.Security(c, "validation.fail", map[string]any{"field": field})
		metrics.ObserveResolution("invalid")
		return lookup{status: fiber.StatusBadRequest, msg: "missing or malformed " + field}
	}

	q := services.Query{}
	var ok bool
	if q.At, ok = validate.Instant(req.Date, h.Loc); !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "date", "value": req.Date})
		metrics.ObserveResolution("invalid")
		return lookup{status: fiber.StatusBadRequest, msg: "date must look like 2020-06-14-10.00.00 or RFC 3339"}
	}
	if q.ProductID, ok = validate.ID(req.Product); !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "product"})
		metrics.ObserveResolution("invalid")
		return lookup{status: fiber.StatusBadRequest, msg: "product must be a positive integer"}
	}
	if q.BrandID, ok = validate.ID(req.Brand); !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "brand"})
		metrics.ObserveResolution("invalid")
		return lookup{status: fiber.StatusBadRequest, msg: "brand must be a positive integer"}
	}

	ctx := c.UserContext()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	res, err := h.Prices.Resolve(ctx, q)
	switch {
	case services.IsValidation(err):
		log.Security(c, "validation.fail", map[string]any{"err": err.Error()})
		metrics.ObserveResolution("invalid")
		return lookup{status: fiber.StatusBadRequest, msg: err.Error()}
	case err != nil:
		log.Error(c, "price.lookup.error", err, map[string]any{"product": q.ProductID, "brand": q.BrandID})
		metrics.ObserveResolution("lookup_error")
		return lookup{status: fiber.StatusInternalServerError, msg: "could not look up prices, please retry"}
	case !res.Found():
		log.Info(c, "price.not_found", map[string]any{"product": q.ProductID, "brand": q.BrandID, "date": q.At.Format(time.RFC3339)})
		metrics.ObserveResolution(res.Outcome.String())
		return lookup{res: res, status: fiber.StatusNotFound, msg: "no price available for this product and brand at that date"}
	}
	metrics.ObserveResolution(res.Outcome.String())
	return lookup{res: res, status: fiber.StatusOK}
}

func (h *PriceHandler) toResponse(res services.Resolution) PriceResponse {
	r := res.Rule
	return PriceResponse{
		ProductID:   r.ProductID,
		BrandID:     r.BrandID,
		PriceListID: r.PriceListID,
		StartDate:   r.StartDate.In(h.Loc).Format(validate.DateLayout),
		EndDate:     r.EndDate.In(h.Loc).Format(validate.DateLayout),
		Price:       json.Number(r.Price.StringFixed(2)),
		Currency:    r.Currency,
	}
}

// Lookup serves GET /api/prices?date=&product=&brand=.
func (h *PriceHandler) Lookup(c *fiber.Ctx) error {
	l := h.resolve(c)
	if l.status != fiber.StatusOK {
		return c.Status(l.status).JSON(fiber.Map{"error": l.msg})
	}
	return c.JSON(h.toResponse(l.res))
}

// Page serves GET /prices, the same lookup rendered as HTML.
func (h *PriceHandler) Page(c *fiber.Ctx) error {
	data := fiber.Map{
		"Layout":  "2020-06-14-10.00.00",
		"Date":    c.Query("date"),
		"Product": c.Query("product"),
		"Brand":   c.Query("brand"),
		"Err":     "",
		"P":       nil,
	}
	if data["Date"] == "" && data["Product"] == "" && data["Brand"] == "" {
		return render(c, "prices", data)
	}
	l := h.resolve(c)
	if l.status != fiber.StatusOK {
		data["Err"] = l.msg
		c.Status(l.status)
		return render(c, "prices", data)
	}
	data["P"] = h.toResponse(l.res)
	return render(c, "prices", data)
}

func queryName(structField string) string {
	switch structField {
	case "Date":
		return "date"
	case "Product":
		return "product"
	case "Brand":
		return "brand"
	}
	return "query"
}
