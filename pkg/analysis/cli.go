package analysis

import (
	"context"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/trelay/trelay/pkg/cache"
	"github.com/trelay/trelay/pkg/config"
	"github.com/trelay/trelay/pkg/hsp"
	"github.com/trelay/trelay/pkg/stations"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "analyse",
		Usage: "Run journey delay analysis",
		Subcommands: []*cli.Command{
			{
				Name:  "route",
				Usage: "analyse one route over a date range",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "origin CRS code", Required: true},
					&cli.StringFlag{Name: "to", Usage: "destination CRS code", Required: true},
					&cli.StringFlag{Name: "from-time", Value: "0000", Usage: "window start (HHMM)"},
					&cli.StringFlag{Name: "to-time", Value: "2359", Usage: "window end (HHMM)"},
					&cli.StringFlag{Name: "from-date", Usage: "first date (YYYY-MM-DD)", Required: true},
					&cli.StringFlag{Name: "to-date", Usage: "last date (YYYY-MM-DD)", Required: true},
					&cli.StringFlag{Name: "days", Value: "WEEKDAY", Usage: "day filter (WEEKDAY, SATURDAY, SUNDAY)"},
					&cli.StringSliceFlag{Name: "toc", Usage: "restrict to operator codes"},
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
					analyser := NewAnalyser(client, stationNames, cfg.DetailFanout)

					request := hsp.MetricsRequest{
						FromLoc:   c.String("from"),
						ToLoc:     c.String("to"),
						FromTime:  c.String("from-time"),
						ToTime:    c.String("to-time"),
						FromDate:  c.String("from-date"),
						ToDate:    c.String("to-date"),
						Days:      c.String("days"),
						TOCFilter: c.StringSlice("toc"),
					}

					report, err := analyser.Analyze(context.Background(), request, func(event ProgressEvent) {
						if event.Total > 0 {
							log.Info().
								Int("current", event.Current).
								Int("total", event.Total).
								Msg(event.Message)
						}
					})
					if err != nil {
						return err
					}

					pretty.Println(report)

					return nil
				},
			},
		},
	}
}
