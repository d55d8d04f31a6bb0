package cache

import (
	"github.com/kr/pretty"
	"github.com/trelay/trelay/pkg/config"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the request cache",
		Subcommands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "show cache size and usage",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}

					store, err := NewStore(cfg.CacheDirectory, cfg.CacheMaxSizeMB)
					if err != nil {
						return err
					}
					defer store.Close()

					pretty.Println(store.Stats())

					return nil
				},
			},
			{
				Name:  "services",
				Usage: "list cached logical service names",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}

					store, err := NewStore(cfg.CacheDirectory, cfg.CacheMaxSizeMB)
					if err != nil {
						return err
					}
					defer store.Close()

					pretty.Println(store.ListServices())

					return nil
				},
			},
		},
	}
}
