package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jonwraymond/sitesearch/highlight"
	"github.com/jonwraymond/sitesearch/index"
	"github.com/jonwraymond/sitesearch/query"
	"github.com/jonwraymond/sitesearch/readiness"
	"github.com/jonwraymond/sitesearch/results"
	"github.com/jonwraymond/sitesearch/search"
	"github.com/jonwraymond/sitesearch/storage"
)

// ErrInvalidOptions is returned by New for inconsistent options.
var ErrInvalidOptions = errors.New("invalid session options")

// Options configures a Session.
type Options struct {
	// AbsBaseURI is the absolute base address of the site. It scopes the
	// stored search term.
	AbsBaseURI string

	// Index holds the page records. If nil, an InMemoryIndex ranked by
	// Searcher is created.
	Index index.Index

	// Searcher ranks records of the created index. If nil, a BleveSearcher
	// configured with Bleve is used. Ignored when Index is set.
	Searcher index.Searcher

	// Bleve configures the default searcher.
	Bleve search.BleveConfig

	// ResultLimit caps hits per query of the created index. 0 is unlimited.
	ResultLimit int

	// Transformer builds search expressions. If nil, query.NewTransformer.
	Transformer *query.Transformer

	Presenter results.Options
	Highlight highlight.EngineOptions
	Readiness readiness.Options

	// Store is the session tier. If nil, an in-memory store owned by the
	// session is used.
	Store storage.Store

	Logger *slog.Logger
}

// Session is the page controller. See the package documentation.
type Session struct {
	idx         index.Index
	transformer *query.Transformer
	presenter   *results.Presenter
	engine      *highlight.Engine
	gate        *readiness.Gate
	store       storage.Store
	absBase     string
	logger      *slog.Logger

	// closers release components owned by the session.
	closers     []io.Closer
	unsubscribe func()

	// domMu serializes mutations of the attached page.
	domMu sync.Mutex

	mu          sync.Mutex
	page        *Page
	deferred    bool
	pendingTerm string
	closed      bool
}

// New creates a session. The index starts empty and the readiness gate
// pending until Load or Start succeeds.
func New(opts Options) (*Session, error) {
	if opts.ResultLimit < 0 {
		return nil, fmt.Errorf("%w: negative result limit %d", ErrInvalidOptions, opts.ResultLimit)
	}
	if opts.Index != nil && opts.Searcher != nil {
		return nil, fmt.Errorf("%w: Searcher is ignored when Index is set", ErrInvalidOptions)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		transformer: opts.Transformer,
		absBase:     opts.AbsBaseURI,
		logger:      logger,
	}

	// Setup index
	if opts.Index != nil {
		s.idx = opts.Index
	} else {
		searcher := opts.Searcher
		if searcher == nil {
			bs := search.NewBleveSearcher(opts.Bleve)
			s.closers = append(s.closers, bs)
			searcher = bs
		}
		s.idx = index.NewInMemoryIndex(index.IndexOptions{
			Searcher:    searcher,
			ResultLimit: opts.ResultLimit,
			Logger:      logger,
		})
	}
	if s.transformer == nil {
		s.transformer = query.NewTransformer()
	}

	// Setup presentation
	po := opts.Presenter
	if po.Logger == nil {
		po.Logger = logger
	}
	s.presenter = results.NewPresenter(s.idx, po)

	ho := opts.Highlight
	if ho.Logger == nil {
		ho.Logger = logger
	}
	s.engine = highlight.NewEngine(ho)

	ro := opts.Readiness
	if ro.Name == "" {
		ro.Name = "search index"
	}
	if ro.Logger == nil {
		ro.Logger = logger
	}
	s.gate = readiness.New(ro)

	// Setup session tier
	if opts.Store != nil {
		s.store = opts.Store
	} else {
		mem := storage.NewMemory()
		s.closers = append(s.closers, mem)
		s.store = mem
	}

	s.unsubscribe = func() {}
	if notifier, ok := s.idx.(index.ChangeNotifier); ok {
		s.unsubscribe = notifier.OnChange(s.onIndexChange)
	}
	return s, nil
}

// Load fetches the payload from src and loads it. On failure the gate is
// failed and search stays inert for the rest of the session.
func (s *Session) Load(ctx context.Context, src index.Source) error {
	if src == nil {
		return s.fail(index.ErrEmptySource)
	}
	records, err := src(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return s.fail(err)
	}
	return s.Reload(records)
}

// Start loads src in the background. The gate polls for the load at the
// configured interval; when its attempts run out first, the gate fails with
// readiness.ErrUnavailable and the load is abandoned.
func (s *Session) Start(ctx context.Context, src index.Source) {
	loadCtx, cancel := context.WithCancel(ctx)
	var loaded atomic.Bool
	go func() {
		if err := s.Load(loadCtx, src); err == nil {
			loaded.Store(true)
		}
	}()
	go func() {
		defer cancel()
		if err := s.gate.Poll(ctx, loaded.Load); err != nil && ctx.Err() == nil {
			s.logger.Debug("search index wait ended", "error", err)
		}
	}()
}

// Reload replaces the loaded records and opens the gate if it is still
// pending. Pages showing results re-render them against the new records.
func (s *Session) Reload(records []index.PageRecord) error {
	if err := s.idx.Load(records); err != nil {
		return s.fail(err)
	}
	s.gate.MarkReady()
	return nil
}

// Watch reloads the payload file at path whenever it changes. It blocks
// until ctx is cancelled.
func (s *Session) Watch(ctx context.Context, path string) error {
	return index.WatchPayload(ctx, path, func(records []index.PageRecord) {
		if err := s.Reload(records); err != nil {
			s.logger.Error("reloading search index", "path", path, "error", err)
		}
	}, s.logger)
}

func (s *Session) fail(err error) error {
	s.logger.Error("search index unavailable", "error", err)
	s.gate.Fail(err)
	return fmt.Errorf("load search index: %w", err)
}

// Query runs term once the index is ready and returns the presented
// results. An empty term yields no results.
func (s *Session) Query(ctx context.Context, term string) ([]results.Result, error) {
	if err := s.gate.Wait(ctx); err != nil {
		return nil, err
	}
	expr := s.transformer.Transform(term)
	if expr.Empty() {
		return nil, nil
	}
	hits, err := s.idx.Query(ctx, expr)
	if err != nil {
		return nil, err
	}
	return s.presenter.Present(term, hits), nil
}

// Run searches term and renders the results into the attached page. Before
// the index is ready the latest term is kept and replayed once it is. Run
// implements navstate.Pipeline.
func (s *Session) Run(ctx context.Context, term string) error {
	switch s.gate.Status() {
	case readiness.Failed:
		return s.gate.Err()
	case readiness.Pending:
		if s.deferRun(ctx, term) {
			return nil
		}
	}
	return s.render(ctx, term)
}

// deferRun records term for replay. It reports false when the gate became
// ready in the meantime.
func (s *Session) deferRun(ctx context.Context, term string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pendingTerm = term
	if s.deferred {
		return true
	}
	replayCtx := context.WithoutCancel(ctx)
	if !s.gate.Defer(func() { s.replay(replayCtx) }) {
		return false
	}
	s.deferred = true
	s.logger.Debug("search deferred until index is ready", "term", term)
	return true
}

func (s *Session) replay(ctx context.Context) {
	s.mu.Lock()
	term := s.pendingTerm
	s.deferred = false
	s.pendingTerm = ""
	s.mu.Unlock()

	s.domMu.Lock()
	defer s.domMu.Unlock()
	if err := s.render(ctx, term); err != nil {
		s.logger.Warn("deferred search failed", "term", term, "error", err)
	}
}

// render runs term and replaces the results of the attached page. The
// caller holds domMu or runs inside a page event.
func (s *Session) render(ctx context.Context, term string) error {
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()

	expr := s.transformer.Transform(term)
	if expr.Empty() {
		if page != nil {
			s.presenter.Clear(page.results, page.hint)
		}
		return nil
	}

	hits, err := s.idx.Query(ctx, expr)
	if err != nil {
		return err
	}
	if page == nil {
		return nil
	}
	res := s.presenter.Render(page.results, page.hint, term, hits)
	s.logger.Debug("search results rendered", "term", term, "results", len(res))
	return nil
}

func (s *Session) onIndexChange(ev index.ChangeEvent) {
	if ev.Type != index.ChangeLoaded || s.gate.Status() != readiness.Ready {
		return
	}
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()
	if page == nil {
		return
	}

	s.domMu.Lock()
	defer s.domMu.Unlock()
	term := page.sync.Term()
	if term == "" {
		return
	}
	if err := s.render(context.Background(), term); err != nil {
		s.logger.Warn("re-rendering results after reload failed", "term", term, "error", err)
	}
}

// Index returns the underlying index.
func (s *Session) Index() index.Index {
	return s.idx
}

// Gate returns the readiness gate of the index payload.
func (s *Session) Gate() *readiness.Gate {
	return s.gate
}

// Engine returns the highlight engine.
func (s *Session) Engine() *highlight.Engine {
	return s.engine
}

// Presenter returns the result presenter.
func (s *Session) Presenter() *results.Presenter {
	return s.presenter
}

// Store returns the session tier.
func (s *Session) Store() storage.Store {
	return s.store
}

// Close releases the components owned by the session. Stores and searchers
// passed in through Options are left open.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.unsubscribe()
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
