package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/trelay/trelay/pkg/cache"
)

type CacheRouter struct {
	Store *cache.Store
}

func (r *CacheRouter) Router(router fiber.Router) {
	router.Get("/stats", r.stats)
	router.Get("/metrics", r.allMetrics)
	router.Get("/metrics/:rid", r.metricsByRID)
	router.Get("/services", r.listServices)
	router.Get("/services/:name", r.serviceByName)
	router.Get("/search", r.search)
}

func (r *CacheRouter) stats(c *fiber.Ctx) error {
	return c.JSON(r.Store.Stats())
}

func (r *CacheRouter) allMetrics(c *fiber.Ctx) error {
	return c.JSON(r.Store.AllMetrics())
}

func (r *CacheRouter) metricsByRID(c *fiber.Ctx) error {
	rid := c.Params("rid")

	metrics := r.Store.MetricsByRID(rid)
	if metrics == nil {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{"error": "No metrics found for RID " + rid})
	}

	return c.JSON(metrics)
}

func (r *CacheRouter) listServices(c *fiber.Ctx) error {
	listings := r.Store.ListServices()

	return c.JSON(fiber.Map{
		"services": listings,
		"count":    len(listings),
	})
}

func (r *CacheRouter) serviceByName(c *fiber.Ctx) error {
	name := c.Params("name")

	record := r.Store.LatestByName(name)
	if record == nil {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{"error": "No cached service named " + name})
	}

	return c.JSON(record)
}

func (r *CacheRouter) search(c *fiber.Ctx) error {
	fromLoc := c.Query("from_loc")
	toLoc := c.Query("to_loc")

	results := r.Store.SearchByRoute(fromLoc, toLoc)

	return c.JSON(fiber.Map{
		"route":   fromLoc + " → " + toLoc,
		"results": results,
		"count":   len(results),
	})
}
