package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/trelay/trelay/pkg/analysis"
	"github.com/trelay/trelay/pkg/api/routes"
	"github.com/trelay/trelay/pkg/cache"
	"github.com/trelay/trelay/pkg/narrative"
	"github.com/trelay/trelay/pkg/reportcache"
	"github.com/trelay/trelay/pkg/stations"
)

// Dependencies carries everything the web API needs, constructed once in the
// CLI action and passed in explicitly.
type Dependencies struct {
	Analyser *analysis.Analyser
	Narrator narrative.Narrator
	Store    *cache.Store
	Stations *stations.Lookup

	// Reports may be nil when no redis connection is configured.
	Reports *reportcache.Cache
}

func SetupServer(listen string, deps Dependencies) error {
	webApp := fiber.New()
	webApp.Use(NewLogger())

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	analysisRouter := routes.AnalysisRouter{
		Analyser: deps.Analyser,
		Narrator: deps.Narrator,
		Reports:  deps.Reports,
	}
	analysisRouter.Router(group.Group("/analysis"))

	cacheRouter := routes.CacheRouter{Store: deps.Store}
	cacheRouter.Router(group.Group("/cache"))

	stationsRouter := routes.StationsRouter{Lookup: deps.Stations}
	stationsRouter.Router(group.Group("/stations"))

	return webApp.Listen(listen)
}
