package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonwraymond/sitesearch/readiness"
	"github.com/jonwraymond/sitesearch/session"
	"github.com/jonwraymond/toolfoundation/model"
)

// DefaultLimit caps search_site results when the caller gives no limit.
const DefaultLimit = 10

// Config configures the registry.
type Config struct {
	// ServerInfo identifies this server in MCP responses.
	ServerInfo ServerInfo

	// Session answers the site tools. If nil, RegisterSiteTools fails.
	Session *session.Session

	// DefaultLimit caps search_site results. Defaults to DefaultLimit.
	DefaultLimit int

	// QueryTimeout bounds how long a tool call waits for the search index.
	// 0 waits for the caller's context only.
	QueryTimeout time.Duration

	Logger *slog.Logger
}

// ServerInfo contains server identification.
type ServerInfo struct {
	Name    string
	Version string
}

type localTool struct {
	tool    model.Tool
	handler ToolHandler
}

// Registry exposes a site search session as MCP tools.
type Registry struct {
	config Config
	logger *slog.Logger

	mu      sync.RWMutex
	tools   map[string]localTool
	order   []string
	started bool
}

// New creates a new Registry with the given configuration.
func New(cfg Config) *Registry {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		config: cfg,
		logger: logger.With("component", "registry"),
		tools:  make(map[string]localTool),
	}
}

// RegisterLocal registers a tool with a handler. Registering a tool ID
// again replaces the earlier tool in place.
func (r *Registry) RegisterLocal(tool model.Tool, handler ToolHandler) error {
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrInvalidRequest, tool.Name)
	}
	if err := tool.Validate(); err != nil {
		return err
	}

	id := tool.ToolID()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[id]; !ok {
		r.order = append(r.order, id)
	}
	r.tools[id] = localTool{tool: tool, handler: handler}
	return nil
}

// RegisterLocalFunc is a convenience method for registering a tool with
// just name, description, schema, and handler.
func (r *Registry) RegisterLocalFunc(
	name, description string,
	inputSchema map[string]any,
	handler ToolHandler,
	opts ...LocalToolOption,
) error {
	cfg := applyLocalToolOptions(opts)
	return r.RegisterLocal(buildLocalTool(name, description, inputSchema, cfg), handler)
}

// ListAll returns all registered tools in registration order.
func (r *Registry) ListAll(ctx context.Context) ([]model.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]model.Tool, 0, len(r.order))
	for _, id := range r.order {
		tools = append(tools, r.tools[id].tool)
	}
	return tools, nil
}

// GetTool returns a tool by ID, or by bare name when no ID matches.
func (r *Registry) GetTool(ctx context.Context, id string) (model.Tool, error) {
	lt, ok := r.lookup(id)
	if !ok {
		return model.Tool{}, fmt.Errorf("%w: %s", ErrToolNotFound, id)
	}
	return lt.tool, nil
}

func (r *Registry) lookup(name string) (localTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if lt, ok := r.tools[name]; ok {
		return lt, true
	}
	for _, id := range r.order {
		if lt := r.tools[id]; lt.tool.Name == name {
			return lt, true
		}
	}
	return localTool{}, false
}

// Execute runs a tool by ID or name.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	lt, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if args == nil {
		args = map[string]any{}
	}

	result, err := lt.handler(ctx, args)
	if err != nil {
		r.logger.Debug("tool failed", "tool", name, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrExecutionFailed, name, err)
	}
	return result, nil
}

// Start marks the registry as serving.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrAlreadyStarted
	}
	r.started = true
	r.logger.Info("registry started", "tools", len(r.tools))
	return nil
}

// Stop marks the registry as stopped. The session is not closed.
func (r *Registry) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return ErrNotStarted
	}
	r.started = false
	return nil
}

// RegistryStats returns registry statistics.
type RegistryStats struct {
	TotalTools   int
	IndexRecords int
	IndexVersion uint64
	IndexStatus  string
}

// Stats returns registry statistics.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	stats := RegistryStats{TotalTools: len(r.tools)}
	r.mu.RUnlock()

	if s := r.config.Session; s != nil {
		stats.IndexRecords = s.Index().Len()
		stats.IndexVersion = s.Index().Version()
		stats.IndexStatus = s.Gate().Status().String()
	}
	return stats
}

// HealthCheck reports whether the registry is started and its search
// index loaded.
func (r *Registry) HealthCheck(ctx context.Context) error {
	r.mu.RLock()
	started := r.started
	r.mu.RUnlock()

	if !started {
		return ErrNotStarted
	}
	s := r.config.Session
	if s == nil {
		return nil
	}
	switch s.Gate().Status() {
	case readiness.Failed:
		return fmt.Errorf("%w: %w", ErrIndexNotReady, s.Gate().Err())
	case readiness.Pending:
		return ErrIndexNotReady
	}
	return nil
}
