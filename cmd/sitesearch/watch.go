package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jonwraymond/sitesearch/index"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Reload the index payload on change and repeat a query",
		ArgsUsage: "[term]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results, 0 for all",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, c)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if a.cfg.IndexFile == "" {
				return errors.New("watch needs a local index file, set index_file or pass --index")
			}
			if err := a.load(ctx); err != nil {
				return err
			}

			term := strings.Join(c.Args().Slice(), " ")
			w := c.Root().Writer
			show := func(version uint64) {
				fmt.Fprintf(w, "index version %d, %d records\n", version, a.session.Index().Len())
				if term == "" {
					return
				}
				found, err := a.session.Query(ctx, term)
				if err != nil {
					a.logger.Warn("query failed", "term", term, "error", err)
					return
				}
				printResults(w, a.session.Presenter(), term, found, c.Int("limit"))
			}

			if n, ok := a.session.Index().(index.ChangeNotifier); ok {
				unsubscribe := n.OnChange(func(ev index.ChangeEvent) { show(ev.Version) })
				defer unsubscribe()
			}
			show(a.session.Index().Version())

			err = a.session.Watch(ctx, a.cfg.IndexFile)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
