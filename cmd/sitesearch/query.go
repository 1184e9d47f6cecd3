package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jonwraymond/sitesearch/registry"
)

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Search the site index",
		ArgsUsage: "<term>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results, 0 for all",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print results as JSON",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			term := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(term) == "" {
				return errors.New("query needs a search term")
			}

			a, err := openApp(ctx, c)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.load(ctx); err != nil {
				return err
			}

			if c.Bool("json") {
				reg := registry.New(registry.Config{Session: a.session, Logger: a.logger})
				limit := c.Int("limit")
				if limit <= 0 {
					limit = a.session.Index().Len()
				}
				resp, err := reg.SearchSite(ctx, term, limit)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(c.Root().Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			found, err := a.session.Query(ctx, term)
			if err != nil {
				return err
			}
			printResults(c.Root().Writer, a.session.Presenter(), term, found, c.Int("limit"))
			return nil
		},
	}
}
