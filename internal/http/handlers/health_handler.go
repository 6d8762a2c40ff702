package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"

	"prices/internal/log"
)

type HealthHandler struct {
	DB *sqlx.DB
}

// Healthz reports ok when the catalog database answers a ping.
func (h *HealthHandler) Healthz(c *fiber.Ctx) error {
	if err := h.DB.PingContext(c.UserContext()); err != nil {
		log.Error(c, "health.db", err, nil)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"ok": false})
	}
	return c.JSON(fiber.Map{"ok": true})
}
