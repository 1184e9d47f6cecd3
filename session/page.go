package session

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonwraymond/sitesearch/navstate"
	"github.com/jonwraymond/sitesearch/results"
	"golang.org/x/net/html"
)

// Page affordances located by Attach.
const (
	ResultsSelector     = "#R-searchresults"
	HintSelector        = ".searchhint"
	DetailInputSelector = "#R-search-by-detail"
)

// PageOptions describes the page a session is attached to. Nil surfaces
// are replaced by the headless ones of package navstate.
type PageOptions struct {
	Root *html.Node

	History  navstate.History
	Viewport navstate.Viewport
	Frames   navstate.FrameScheduler
	Focus    navstate.Focus

	// Navigator follows selected result rows.
	Navigator results.Navigator
}

// Page is a page attached to a session. Its event methods mirror the
// browser events they handle.
type Page struct {
	s       *Session
	root    *html.Node
	results *html.Node
	hint    *html.Node
	nav     results.Navigator
	sync    *navstate.Sync
}

// Attach binds the session to a page, replacing any earlier one. The page
// is a results page when it holds the detail search input; only then do
// searches push history entries.
func (s *Session) Attach(opts PageOptions) *Page {
	p := &Page{s: s, root: opts.Root, nav: opts.Navigator}

	resultsPage := false
	if opts.Root != nil {
		doc := goquery.NewDocumentFromNode(opts.Root)
		p.results = first(doc.Find(ResultsSelector))
		p.hint = first(doc.Find(HintSelector))
		resultsPage = doc.Find(DetailInputSelector).Length() > 0
	}

	p.sync = navstate.New(navstate.Options{
		AbsBaseURI:  s.absBase,
		Store:       s.store,
		Marker:      s.engine,
		Pipeline:    s,
		History:     opts.History,
		Viewport:    opts.Viewport,
		Frames:      opts.Frames,
		Focus:       opts.Focus,
		Root:        opts.Root,
		ResultsPage: resultsPage,
		Logger:      s.logger,
	})

	s.domMu.Lock()
	s.mu.Lock()
	s.page = p
	s.mu.Unlock()
	s.domMu.Unlock()
	return p
}

func first(sel *goquery.Selection) *html.Node {
	if sel.Length() == 0 {
		return nil
	}
	return sel.Get(0)
}

// Load restores the search of a freshly loaded page.
func (p *Page) Load(ctx context.Context) {
	p.s.domMu.Lock()
	defer p.s.domMu.Unlock()
	p.sync.Load(ctx)
}

// Input handles a term typed into any search input.
func (p *Page) Input(ctx context.Context, term string) {
	p.s.domMu.Lock()
	defer p.s.domMu.Unlock()
	p.sync.Input(ctx, term)
}

// PopState handles a back/forward navigation to an entry with state raw.
func (p *Page) PopState(ctx context.Context, raw any) {
	p.s.domMu.Lock()
	defer p.s.domMu.Unlock()
	p.sync.PopState(ctx, raw)
}

// Escape handles the Escape key in a search input.
func (p *Page) Escape(ctx context.Context) {
	p.s.domMu.Lock()
	defer p.s.domMu.Unlock()
	p.sync.Escape(ctx)
}

// Clear handles the clear control.
func (p *Page) Clear(ctx context.Context) {
	p.s.domMu.Lock()
	defer p.s.domMu.Unlock()
	p.sync.Clear(ctx)
}

// Scroll handles a scroll of the content area.
func (p *Page) Scroll() {
	p.sync.Scroll()
}

// Click handles a click anywhere on the page.
func (p *Page) Click() {
	p.sync.Click()
}

// Select follows the result row containing node.
func (p *Page) Select(node *html.Node) bool {
	return p.s.presenter.Select(node, p.nav)
}

// Term returns the term in effect on the page.
func (p *Page) Term() string {
	return p.sync.Term()
}

// State returns the navigation state of the page.
func (p *Page) State() navstate.State {
	return p.sync.State()
}

// Root returns the page tree.
func (p *Page) Root() *html.Node {
	return p.root
}
