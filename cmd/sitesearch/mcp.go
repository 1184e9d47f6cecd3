package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/jonwraymond/sitesearch/registry"
)

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the site search as MCP tools",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "transport",
				Usage: "stdio or http",
				Value: "stdio",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address for the http transport",
				Value: "127.0.0.1:8765",
			},
			&cli.DurationFlag{
				Name:  "query-timeout",
				Usage: "How long a tool call waits for the index to load",
				Value: 10 * time.Second,
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

			if a.source == nil {
				return errNoIndex
			}
			a.session.Start(ctx, a.source)
			if a.cfg.IndexFile != "" {
				go func() {
					if err := a.session.Watch(ctx, a.cfg.IndexFile); err != nil && !errors.Is(err, context.Canceled) {
						a.logger.Warn("index watcher stopped", "error", err)
					}
				}()
			}

			reg := registry.New(registry.Config{
				ServerInfo:   registry.ServerInfo{Name: "sitesearch", Version: version},
				Session:      a.session,
				QueryTimeout: c.Duration("query-timeout"),
				Logger:       a.logger,
			})
			if err := reg.RegisterSiteTools(); err != nil {
				return err
			}
			if err := reg.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = reg.Stop() }()

			switch c.String("transport") {
			case "stdio":
				return registry.ServeStdio(ctx, reg)
			case "http":
				return serveHTTP(ctx, reg, c.String("addr"), a)
			default:
				return fmt.Errorf("unknown transport %q", c.String("transport"))
			}
		},
	}
}

func serveHTTP(ctx context.Context, reg *registry.Registry, addr string, a *app) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", registry.ServeHTTP(reg))
	mux.Handle("/sse", registry.ServeSSE(reg))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := reg.HealthCheck(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.logger.Info("serving MCP over http", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
