package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/trelay/trelay/pkg/stations"
)

type StationsRouter struct {
	Lookup *stations.Lookup
}

func (r *StationsRouter) Router(router fiber.Router) {
	router.Get("/:code", r.stationName)
}

func (r *StationsRouter) stationName(c *fiber.Ctx) error {
	code := c.Params("code")

	return c.JSON(fiber.Map{
		"code": code,
		"name": r.Lookup.Name(code),
	})
}
