package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/jonwraymond/sitesearch/config"
	"github.com/jonwraymond/sitesearch/index"
	"github.com/jonwraymond/sitesearch/results"
	"github.com/jonwraymond/sitesearch/session"
	"github.com/jonwraymond/sitesearch/storage"
)

var errNoIndex = errors.New("no search index configured, set index_file or index_url or pass --index")

func setupLogger(w io.Writer, debug bool, format string) error {
	if w == nil {
		w = os.Stderr
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// app bundles what every command opens from the configuration.
type app struct {
	cfg     *config.Config
	store   storage.Store
	session *session.Session
	source  index.Source
	logger  *slog.Logger
}

func openApp(ctx context.Context, c *cli.Command) (*app, error) {
	logger := slog.Default()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if path := c.String("index"); path != "" {
		cfg.IndexFile = path
	}

	store, err := storage.Open(ctx, cfg.StoreConfig(logger))
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	sess, err := session.New(cfg.SessionOptions(store, logger))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return &app{
		cfg:     cfg,
		store:   store,
		session: sess,
		source:  cfg.Source(&http.Client{Timeout: 30 * time.Second}),
		logger:  logger,
	}, nil
}

// load reads the search index synchronously.
func (a *app) load(ctx context.Context) error {
	if a.source == nil {
		return errNoIndex
	}
	return a.session.Load(ctx, a.source)
}

func (a *app) Close() error {
	return errors.Join(a.session.Close(), a.store.Close())
}

func printResults(w io.Writer, p *results.Presenter, term string, found []results.Result, limit int) {
	fmt.Fprintln(w, p.Hint(term, len(found)))
	for i, r := range found {
		if limit > 0 && i == limit {
			break
		}
		fmt.Fprintf(w, "%d. %s (%s)\n", i+1, r.Record.Title, r.URI)
		if r.Record.Breadcrumb != "" {
			fmt.Fprintf(w, "   %s\n", r.Record.Breadcrumb)
		}
		if r.Context != "" {
			fmt.Fprintf(w, "   %s\n", r.Context)
		}
	}
}
