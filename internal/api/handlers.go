// Package api exposes the snapshot store read-only over HTTP.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/shadowhunt/loxone-monitor/internal/store"
)

const defaultHistoryLimit = 1000

func Register(app *fiber.App, st *store.Store) {
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })

	app.Get("/schema", func(c *fiber.Ctx) error {
		version, err := st.SchemaVersion(c.Context())
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"version": version})
	})

	app.Get("/rooms", func(c *fiber.Ctx) error {
		items, err := st.LatestRooms(c.Context())
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(items)
	})

	app.Get("/rooms/:id/history", func(c *fiber.Ctx) error {
		since, limit, err := historyParams(c)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		items, err := st.RoomHistory(c.Context(), c.Params("id"), since, limit)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(items)
	})

	app.Get("/electricity", func(c *fiber.Ctx) error {
		items, err := st.LatestElectricity(c.Context())
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(items)
	})

	app.Get("/electricity/:id/history", func(c *fiber.Ctx) error {
		since, limit, err := historyParams(c)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		items, err := st.ElectricityHistory(c.Context(), c.Params("id"), since, limit)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(items)
	})
}

func historyParams(c *fiber.Ctx) (time.Time, int, error) {
	since := time.Now().Add(-24 * time.Hour)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, 0, err
		}
		since = parsed
	}
	return since, c.QueryInt("limit", defaultHistoryLimit), nil
}
