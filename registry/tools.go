package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonwraymond/sitesearch/index"
	"github.com/jonwraymond/toolfoundation/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Namespace groups the site tools.
const Namespace = "site"

// Site tool names.
const (
	SearchToolName = "search_site"
	PageToolName   = "get_page"
)

// ToolHandler executes a tool with the arguments of a tools/call request.
// The result is encoded as the JSON-RPC result.
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

// LocalToolOption configures tool registration.
type LocalToolOption func(*localToolConfig)

type localToolConfig struct {
	namespace string
	tags      []string
	version   string
}

// WithNamespace sets the namespace of a tool.
func WithNamespace(ns string) LocalToolOption {
	return func(c *localToolConfig) { c.namespace = ns }
}

// WithTags sets the tags of a tool.
func WithTags(tags ...string) LocalToolOption {
	return func(c *localToolConfig) { c.tags = tags }
}

// WithVersion sets the version of a tool.
func WithVersion(v string) LocalToolOption {
	return func(c *localToolConfig) { c.version = v }
}

func applyLocalToolOptions(opts []LocalToolOption) localToolConfig {
	var cfg localToolConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func buildLocalTool(name, description string, inputSchema map[string]any, cfg localToolConfig) model.Tool {
	return model.Tool{
		Tool: mcp.Tool{
			Name:        name,
			Description: description,
			InputSchema: inputSchema,
		},
		Namespace: cfg.namespace,
		Version:   cfg.version,
		Tags:      model.NormalizeTags(cfg.tags),
	}
}

// SearchResult is one page returned by search_site.
type SearchResult struct {
	URI        string `json:"uri"`
	Title      string `json:"title"`
	Breadcrumb string `json:"breadcrumb,omitempty"`
	Context    string `json:"context,omitempty"`
}

// SearchResponse is the result of search_site.
type SearchResponse struct {
	Query   string         `json:"query"`
	Count   int            `json:"count"`
	Results []SearchResult `json:"results"`
}

// RegisterSiteTools registers search_site and get_page against the
// configured session.
func (r *Registry) RegisterSiteTools() error {
	if r.config.Session == nil {
		return ErrNoSession
	}

	err := r.RegisterLocalFunc(
		SearchToolName,
		"Searches the site's pages and returns the best matches with a snippet of surrounding text.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "Search terms"},
				"limit": map[string]any{"type": "integer", "minimum": 1},
			},
			"required": []string{"query"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			q, err := stringArg(args, "query")
			if err != nil {
				return nil, err
			}
			limit, err := intArg(args, "limit")
			if err != nil {
				return nil, err
			}
			return r.SearchSite(ctx, q, limit)
		},
		WithNamespace(Namespace),
		WithTags("search", "docs"),
	)
	if err != nil {
		return err
	}

	return r.RegisterLocalFunc(
		PageToolName,
		"Returns the indexed content of a site page by its address.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"uri": map[string]any{"type": "string", "description": "Page address as returned by search_site"},
			},
			"required": []string{"uri"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			uri, err := stringArg(args, "uri")
			if err != nil {
				return nil, err
			}
			return r.Page(ctx, uri)
		},
		WithNamespace(Namespace),
		WithTags("docs"),
	)
}

// SearchSite runs q against the session's index. A limit of 0 or less
// uses the configured default.
func (r *Registry) SearchSite(ctx context.Context, q string, limit int) (SearchResponse, error) {
	s := r.config.Session
	if s == nil {
		return SearchResponse{}, ErrNoSession
	}
	if limit <= 0 {
		limit = r.config.DefaultLimit
	}
	if r.config.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.QueryTimeout)
		defer cancel()
	}

	found, err := s.Query(ctx, q)
	if err != nil {
		return SearchResponse{}, err
	}
	resp := SearchResponse{Query: q, Count: len(found), Results: []SearchResult{}}
	for i, res := range found {
		if i == limit {
			break
		}
		resp.Results = append(resp.Results, SearchResult{
			URI:        res.URI,
			Title:      res.Record.Title,
			Breadcrumb: res.Record.Breadcrumb,
			Context:    res.Context,
		})
	}
	return resp, nil
}

// Page returns the record whose address is uri. A trailing slash is not
// significant.
func (r *Registry) Page(ctx context.Context, uri string) (index.PageRecord, error) {
	s := r.config.Session
	if s == nil {
		return index.PageRecord{}, ErrNoSession
	}
	if err := s.Gate().Wait(ctx); err != nil {
		return index.PageRecord{}, err
	}

	want := strings.TrimSuffix(uri, "/")
	idx := s.Index()
	for id := 0; id < idx.Len(); id++ {
		rec, err := idx.Record(id)
		if err != nil {
			continue
		}
		if strings.TrimSuffix(rec.URI, "/") == want {
			return rec, nil
		}
	}
	return index.PageRecord{}, fmt.Errorf("%w: page %s", index.ErrNotFound, uri)
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", ErrInvalidRequest, key)
	}
	return v, nil
}

func intArg(args map[string]any, key string) (int, error) {
	switch v := args[key].(type) {
	case nil:
		return 0, nil
	case float64:
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidRequest, key)
	}
}
