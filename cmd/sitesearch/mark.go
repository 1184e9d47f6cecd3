package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/net/html"

	"github.com/jonwraymond/sitesearch/navstate"
	"github.com/jonwraymond/sitesearch/session"
)

func markCommand() *cli.Command {
	return &cli.Command{
		Name:      "mark",
		Usage:     "Highlight a search term in an HTML page",
		ArgsUsage: "<page.html|->",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "term",
				Usage: "Term to search and highlight",
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "Address the page is loaded from; its search-by parameter is restored",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the page here instead of stdout",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("mark needs exactly one page")
			}
			doc, err := readPage(c.Args().First())
			if err != nil {
				return err
			}

			a, err := openApp(ctx, c)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			// Marking works without an index; only the results panel needs one.
			if a.source != nil {
				if err := a.load(ctx); err != nil {
					a.logger.Warn("search index unavailable", "error", err)
				}
			}

			location := c.String("url")
			if location == "" {
				location = a.cfg.BaseURI + "/"
			}
			page := a.session.Attach(session.PageOptions{
				Root:    doc,
				History: navstate.NewMemoryHistory(location),
			})
			page.Load(ctx)
			if term := c.String("term"); term != "" {
				page.Input(ctx, term)
			}
			a.logger.Info("page marked", "term", page.Term(), "marks", len(a.session.Engine().Marks(doc)))

			var w io.Writer = c.Root().Writer
			if path := c.String("output"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("creating output: %w", err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}
			return html.Render(w, doc)
		},
	}
}

func readPage(path string) (*html.Node, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening page: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}
	return doc, nil
}
