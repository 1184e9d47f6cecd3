package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jonwraymond/sitesearch/config"
)

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write a commented sample configuration",
		Action: func(ctx context.Context, c *cli.Command) error {
			path := c.String("config")
			if err := config.SaveTemplate(path); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			fmt.Fprintf(c.Root().Writer, "Configuration initialized at %s\n", path)
			return nil
		},
	}
}
