package navstate

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonwraymond/sitesearch/highlight"
	"github.com/jonwraymond/sitesearch/storage"
	"golang.org/x/net/html"
)

// InputSelector selects the search inputs whose values are kept mirrored.
const InputSelector = "input.search-by"

// State is the search state of a page.
type State int

const (
	// Idle means no search is in effect.
	Idle State = iota
	// Active means a term is persisted and marked.
	Active
	// Restoring is held while a history entry or a page load is replayed.
	Restoring
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Restoring:
		return "restoring"
	default:
		return "unknown"
	}
}

// Marker highlights a term in the content tree. *highlight.Engine
// implements it.
type Marker interface {
	Mark(root *html.Node, term string) []*html.Node
	Unmark(root *html.Node) int
	FirstMark(root *html.Node) *html.Node
}

// Pipeline runs a search for term and renders its results. An empty term
// clears them.
type Pipeline interface {
	Run(ctx context.Context, term string) error
}

// PipelineFunc adapts a function to Pipeline.
type PipelineFunc func(ctx context.Context, term string) error

// Run calls f.
func (f PipelineFunc) Run(ctx context.Context, term string) error { return f(ctx, term) }

// Options configures a Sync. Only AbsBaseURI is needed; missing surfaces
// are replaced by headless ones.
type Options struct {
	// AbsBaseURI scopes the session tier key, see storage.SearchValueKey.
	AbsBaseURI string

	Store    storage.Store
	Marker   Marker
	Pipeline Pipeline

	History  History
	Viewport Viewport
	// Frames throttles scroll recording. Nil records every scroll event.
	Frames FrameScheduler
	Focus  Focus

	// Root is the page holding the search inputs and content.
	Root *html.Node

	// ResultsPage makes term changes push history entries. Set it on the
	// page that shows the search results panel.
	ResultsPage bool

	Logger *slog.Logger
}

// Sync keeps search state, history entries and the page in step. Its
// methods are safe for concurrent use, though events are expected to arrive
// one at a time.
type Sync struct {
	key         string
	store       storage.Store
	marker      Marker
	pipeline    Pipeline
	history     History
	viewport    Viewport
	frames      FrameScheduler
	focus       Focus
	root        *html.Node
	resultsPage bool
	logger      *slog.Logger

	mu       sync.Mutex
	state    State
	term     string
	restored string

	ticking atomic.Bool
}

// New creates a Sync in the Idle state.
func New(opts Options) *Sync {
	s := &Sync{
		key:         storage.SearchValueKey(opts.AbsBaseURI),
		store:       opts.Store,
		marker:      opts.Marker,
		pipeline:    opts.Pipeline,
		history:     opts.History,
		viewport:    opts.Viewport,
		frames:      opts.Frames,
		focus:       opts.Focus,
		root:        opts.Root,
		resultsPage: opts.ResultsPage,
		logger:      opts.Logger,
	}
	if s.store == nil {
		s.store = storage.NewMemory()
	}
	if s.marker == nil {
		s.marker = highlight.NewEngine(highlight.EngineOptions{Logger: opts.Logger})
	}
	if s.pipeline == nil {
		s.pipeline = PipelineFunc(func(context.Context, string) error { return nil })
	}
	if s.history == nil {
		s.history = NewMemoryHistory("")
	}
	if s.viewport == nil {
		s.viewport = &MemoryViewport{}
	}
	if s.focus == nil {
		s.focus = FocusFunc(func() {})
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// State returns the current state.
func (s *Sync) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Term returns the term in effect.
func (s *Sync) Term() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.term
}

// Restored returns the term replayed from history or the session tier, or
// "" once the user changed it.
func (s *Sync) Restored() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restored
}

// Input handles a typed term: it marks the content, persists the term,
// mirrors it into every input and re-runs the pipeline. On a results page a
// history entry is pushed when the term differs from the one in the address.
func (s *Sync) Input(ctx context.Context, term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input(ctx, term)
}

// Clear empties every input and the results, and unmarks the content.
func (s *Sync) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input(ctx, "")
}

func (s *Sync) input(ctx context.Context, term string) {
	s.restored = ""
	s.mirror(term)
	s.apply(ctx, term)
	if s.resultsPage {
		s.pushIfChanged(term)
	}
	s.settle()
}

// Escape handles the Escape key in a search input. A term restored from
// history survives and only focus is released; otherwise the inputs are
// cleared and the content unmarked.
func (s *Sync) Escape(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.restored != "" && s.restored == s.term {
		s.focus.Blur()
		return
	}
	wasEmpty := s.term == ""
	s.mirror("")
	s.apply(ctx, "")
	s.settle()
	if wasEmpty {
		s.focus.Blur()
	}
}

// Scroll records the content scroll offset into the current history entry,
// at most once per animation frame.
func (s *Sync) Scroll() {
	if !s.ticking.CompareAndSwap(false, true) {
		return
	}
	if s.frames == nil {
		s.savePosition()
		s.ticking.Store(false)
		return
	}
	s.frames.RequestAnimationFrame(func() {
		s.savePosition()
		s.ticking.Store(false)
	})
}

// Click records the content scroll offset into the current history entry.
func (s *Sync) Click() {
	s.savePosition()
}

// PopState replays a history entry: its term is mirrored, marked and
// searched again, then the scroll position is restored.
func (s *Sync) PopState(ctx context.Context, raw any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Restoring
	st := s.parse(raw)
	if term, ok := st.Term(); ok {
		s.logger.Debug("restoring search from history", "term", term)
		s.mirror(term)
		s.apply(ctx, term)
		s.restored = term
	}
	s.restoreScroll(ctx, st)
	s.settle()
}

// Load initializes the page: the term in the address, or else the stored
// one, is mirrored, marked and then persisted, and the scroll position is
// restored.
func (s *Sync) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Restoring
	location := s.history.Location()
	term, ok := TermFromAddress(location)
	if !ok || term == "" {
		term = s.stored(ctx)
	}
	if term != "" {
		s.logger.Debug("restoring search on load", "term", term)
		s.mirror(term)
		s.apply(ctx, term)
		s.restored = term
	}

	st := s.current()
	if s.resultsPage {
		st = st.WithSearch(location)
		s.history.ReplaceState(st, location)
	}
	s.restoreScroll(ctx, st)
	s.settle()
}

// apply marks term and persists it, strictly in that order. An empty term
// unmarks and forgets the stored one.
func (s *Sync) apply(ctx context.Context, term string) {
	s.marker.Unmark(s.root)
	if term != "" {
		s.marker.Mark(s.root, term)
		s.persist(ctx, term)
	} else {
		s.forget(ctx)
	}
	s.term = term

	if err := s.pipeline.Run(ctx, term); err != nil {
		s.logger.Warn("search pipeline failed", "term", term, "error", err)
	}
}

func (s *Sync) settle() {
	if s.term == "" {
		s.state = Idle
	} else {
		s.state = Active
	}
}

func (s *Sync) pushIfChanged(term string) {
	location := s.history.Location()
	if old, _ := TermFromAddress(location); old == term {
		return
	}
	address, err := AddressWithTerm(location, term)
	if err != nil {
		s.logger.Warn("cannot build search address", "location", location, "error", err)
		return
	}
	st := s.current().WithSearch(address).WithScrollTop(s.viewport.ScrollTop())
	s.history.PushState(st, address)
}

func (s *Sync) savePosition() {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.current().WithScrollTop(s.viewport.ScrollTop())
	s.history.ReplaceState(st, s.history.Location())
}

// restoreScroll applies the first available of: the recorded offset, the
// first mark of the stored term, the address fragment.
func (s *Sync) restoreScroll(ctx context.Context, st EntryState) {
	if st.HasScrollTop() {
		s.viewport.SetScrollTop(*st.ContentScrollTop)
		return
	}
	if s.stored(ctx) != "" {
		if first := s.marker.FirstMark(s.root); first != nil {
			s.viewport.ScrollIntoView(first)
		}
		return
	}
	if id := Fragment(s.history.Location()); id != "" {
		if target := s.elementByID(id); target != nil {
			s.viewport.ScrollIntoView(target)
		}
	}
}

func (s *Sync) mirror(term string) {
	if s.root == nil {
		return
	}
	goquery.NewDocumentFromNode(s.root).Find(InputSelector).SetAttr("value", term)
}

func (s *Sync) elementByID(id string) *html.Node {
	if s.root == nil {
		return nil
	}
	match := goquery.NewDocumentFromNode(s.root).Find("[id]").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		v, _ := sel.Attr("id")
		return v == id
	})
	if match.Length() == 0 {
		return nil
	}
	return match.Get(0)
}

func (s *Sync) current() EntryState {
	return s.parse(s.history.State())
}

func (s *Sync) parse(raw any) EntryState {
	st, err := ParseEntryState(raw)
	if err != nil {
		s.logger.Warn("ignoring history state", "error", err)
		return EntryState{}
	}
	return st
}

func (s *Sync) stored(ctx context.Context) string {
	v, ok, err := s.store.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("reading stored search term failed", "key", s.key, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

func (s *Sync) persist(ctx context.Context, term string) {
	if err := s.store.Set(ctx, s.key, term); err != nil {
		s.logger.Warn("storing search term failed", "key", s.key, "error", err)
	}
}

func (s *Sync) forget(ctx context.Context) {
	if err := s.store.Remove(ctx, s.key); err != nil {
		s.logger.Warn("removing search term failed", "key", s.key, "error", err)
	}
}
