package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "sitesearch",
		Usage:   "Search and highlight a static documentation site",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format: text or json",
				Value: "text",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: "sitesearch.toml",
			},
			&cli.StringFlag{
				Name:  "index",
				Usage: "Search index payload file, overrides index_file",
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			return ctx, setupLogger(c.Root().ErrWriter, c.Bool("debug"), c.String("log-format"))
		},
		Commands: []*cli.Command{
			initCommand(),
			queryCommand(),
			markCommand(),
			watchCommand(),
			mcpCommand(),
		},
	}
}
