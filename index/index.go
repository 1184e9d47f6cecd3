package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonwraymond/sitesearch/query"
)

// Searcher ranks records against a search expression.
//
// limit is the maximum number of hits to return; implementations must treat
// limit <= 0 as "no limit".
type Searcher interface {
	Search(ctx context.Context, expr query.Expression, limit int, records []PageRecord) ([]SearchHit, error)
}

// Index is the read side of a loaded site index.
type Index interface {
	// Load replaces the record set. Record ids are reassigned to positions.
	Load(records []PageRecord) error
	// Query runs expr and returns ranked hits. An empty expression yields no hits.
	Query(ctx context.Context, expr query.Expression) ([]SearchHit, error)
	// Record returns the record with the given id.
	Record(id int) (PageRecord, error)
	// Len returns the number of loaded records.
	Len() int
	// Version increases every time the record set changes.
	Version() uint64
}

// ChangeNotifier is implemented by indexes that report reloads.
type ChangeNotifier interface {
	OnChange(listener ChangeListener) func()
}

// ChangeType describes an index change.
type ChangeType string

const (
	// ChangeLoaded is emitted when a new record set replaces the old one.
	ChangeLoaded ChangeType = "loaded"
)

// ChangeEvent is delivered to change listeners.
type ChangeEvent struct {
	Type    ChangeType
	Records int
	Version uint64
}

// ChangeListener receives change events.
type ChangeListener func(ChangeEvent)

// IndexOptions configures an InMemoryIndex.
type IndexOptions struct {
	// Searcher ranks records. Query returns ErrNoSearcher when nil.
	Searcher Searcher

	// ResultLimit caps the hits of one query. 0 means unlimited.
	ResultLimit int

	// Logger receives debug output. Defaults to slog.Default().
	Logger *slog.Logger
}

// InMemoryIndex keeps all page records in memory. It is safe for concurrent
// use.
type InMemoryIndex struct {
	mu       sync.RWMutex
	records  []PageRecord
	searcher Searcher
	limit    int
	version  uint64
	logger   *slog.Logger

	listenerMu sync.Mutex
	listeners  map[int]ChangeListener
	nextID     int
}

// NewInMemoryIndex creates an empty index.
func NewInMemoryIndex(opts ...IndexOptions) *InMemoryIndex {
	var o IndexOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := o.ResultLimit
	if limit < 0 {
		limit = 0
	}
	return &InMemoryIndex{
		searcher:  o.Searcher,
		limit:     limit,
		logger:    logger,
		listeners: make(map[int]ChangeListener),
	}
}

// Load replaces the record set and notifies change listeners.
func (idx *InMemoryIndex) Load(records []PageRecord) error {
	loaded := make([]PageRecord, len(records))
	for i, r := range records {
		loaded[i] = r.Clone()
		loaded[i].ID = i
	}

	idx.mu.Lock()
	idx.records = loaded
	idx.version++
	version := idx.version
	idx.mu.Unlock()

	idx.logger.Info("search index loaded", "records", len(loaded), "version", version)
	idx.notify(ChangeEvent{Type: ChangeLoaded, Records: len(loaded), Version: version})
	return nil
}

// Query runs expr against the loaded records.
func (idx *InMemoryIndex) Query(ctx context.Context, expr query.Expression) ([]SearchHit, error) {
	if expr.Empty() {
		return nil, nil
	}

	idx.mu.RLock()
	records := idx.records
	searcher := idx.searcher
	limit := idx.limit
	idx.mu.RUnlock()

	if searcher == nil {
		return nil, ErrNoSearcher
	}

	hits, err := searcher.Search(ctx, expr, limit, records)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", expr.Raw, err)
	}
	idx.logger.Debug("search index queried", "expression", expr.String(), "hits", len(hits))
	return hits, nil
}

// Record returns the record with the given id.
func (idx *InMemoryIndex) Record(id int) (PageRecord, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if id < 0 || id >= len(idx.records) {
		return PageRecord{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return idx.records[id].Clone(), nil
}

// Records returns a copy of all loaded records in id order.
func (idx *InMemoryIndex) Records() []PageRecord {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]PageRecord, len(idx.records))
	for i, r := range idx.records {
		out[i] = r.Clone()
	}
	return out
}

// Len returns the number of loaded records.
func (idx *InMemoryIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

// Version returns the current record set version. It is 0 until the first Load.
func (idx *InMemoryIndex) Version() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.version
}

// OnChange registers a listener and returns a function that removes it.
func (idx *InMemoryIndex) OnChange(listener ChangeListener) func() {
	if listener == nil {
		return func() {}
	}

	idx.listenerMu.Lock()
	id := idx.nextID
	idx.nextID++
	idx.listeners[id] = listener
	idx.listenerMu.Unlock()

	return func() {
		idx.listenerMu.Lock()
		delete(idx.listeners, id)
		idx.listenerMu.Unlock()
	}
}

func (idx *InMemoryIndex) notify(event ChangeEvent) {
	idx.listenerMu.Lock()
	listeners := make([]ChangeListener, 0, len(idx.listeners))
	for _, l := range idx.listeners {
		listeners = append(listeners, l)
	}
	idx.listenerMu.Unlock()

	for _, l := range listeners {
		l(event)
	}
}
