package api

import (
	"github.com/rs/zerolog/log"
	"github.com/trelay/trelay/pkg/analysis"
	"github.com/trelay/trelay/pkg/cache"
	"github.com/trelay/trelay/pkg/config"
	"github.com/trelay/trelay/pkg/hsp"
	"github.com/trelay/trelay/pkg/narrative"
	"github.com/trelay/trelay/pkg/redis_client"
	"github.com/trelay/trelay/pkg/reportcache"
	"github.com/trelay/trelay/pkg/stations"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "web-api",
		Usage: "Provides the journey analysis web API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}

					if err := cfg.RequireCredentials(); err != nil {
						return err
					}

					store, err := cache.NewStore(cfg.CacheDirectory, cfg.CacheMaxSizeMB)
					if err != nil {
						return err
					}
					defer store.Close()

					stationNames, err := stations.Load(cfg.StationCodesPath)
					if err != nil {
						return err
					}

					client := hsp.NewClient(cfg, store)
					analyser := analysis.NewAnalyser(client, stationNames, cfg.DetailFanout)

					var reports *reportcache.Cache
					if cfg.RedisAddress != "" {
						redisClient, err := redis_client.Connect(cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDatabase)
						if err != nil {
							return err
						}

						reports = reportcache.New(redisClient)
					} else {
						log.Info().Msg("Skipping report cache setup, no redis configured")
					}

					return SetupServer(c.String("listen"), Dependencies{
						Analyser: analyser,
						Narrator: narrative.NewNarrator(cfg),
						Store:    store,
						Stations: stationNames,
						Reports:  reports,
					})
				},
			},
		},
	}
}
