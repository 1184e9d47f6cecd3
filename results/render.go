package results

import (
	"log/slog"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jonwraymond/sitesearch/index"
)

// RowClass is the class of every rendered result row.
const RowClass = "autocomplete-suggestion"

// Mode selects the row shape and context width.
type Mode int

const (
	// ModePanel renders anchors with breadcrumbs into the results panel.
	ModePanel Mode = iota
	// ModeSuggestion renders compact autocomplete rows.
	ModeSuggestion
)

// RecordSource resolves hit ids to page records.
type RecordSource interface {
	Record(id int) (index.PageRecord, error)
}

// Navigator performs the navigation of a selected row.
type Navigator interface {
	Navigate(uri string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(uri string)

// Navigate calls f(uri).
func (f NavigatorFunc) Navigate(uri string) { f(uri) }

// Options configures a Presenter.
type Options struct {
	Mode Mode

	// RelBaseURI prefixes every record uri.
	RelBaseURI string

	// ContextWords overrides the context window width of the mode.
	ContextWords int

	// Messages overrides the hint templates. Empty templates fall back to
	// DefaultMessages.
	Messages Messages

	Logger *slog.Logger
}

// Result is one presented hit.
type Result struct {
	Record  index.PageRecord
	Term    string
	Context string
	URI     string
}

// Presenter renders hits. It keeps no per-query state, so every render fully
// replaces the previous one.
type Presenter struct {
	records  RecordSource
	mode     Mode
	relBase  string
	words    int
	messages Messages
	logger   *slog.Logger
}

// NewPresenter creates a presenter resolving records through src.
func NewPresenter(src RecordSource, opts ...Options) *Presenter {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}

	words := o.ContextWords
	if words <= 0 {
		words = PanelContextWords
		if o.Mode == ModeSuggestion {
			words = SuggestionContextWords
		}
	}

	msgs := DefaultMessages()
	if o.Messages.ResultsFound != "" {
		msgs.ResultsFound = o.Messages.ResultsFound
	}
	if o.Messages.NoResultsFound != "" {
		msgs.NoResultsFound = o.Messages.NoResultsFound
	}

	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Presenter{
		records:  src,
		mode:     o.Mode,
		relBase:  o.RelBaseURI,
		words:    words,
		messages: msgs,
		logger:   logger,
	}
}

// Present resolves hits in rank order. Hits whose record cannot be resolved
// are skipped.
func (p *Presenter) Present(term string, hits []index.SearchHit) []Result {
	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		rec, err := p.records.Record(hit.RecordID)
		if err != nil {
			p.logger.Debug("skipping unresolved hit", "id", hit.RecordID, "error", err)
			continue
		}

		words := hit.MatchedTerms
		if len(words) == 0 {
			words = hit.MatchedFields
		}

		out = append(out, Result{
			Record:  rec,
			Term:    term,
			Context: Snippet(rec.Content, words, p.words),
			URI:     p.relBase + rec.URI,
		})
	}
	return out
}

// Hint returns the hint text for count results of term. It is empty for an
// empty term without results.
func (p *Presenter) Hint(term string, count int) string {
	switch {
	case count > 0:
		return ResolvePlaceholders(p.messages.ResultsFound, term, strconv.Itoa(count))
	case term != "":
		return ResolvePlaceholders(p.messages.NoResultsFound, term)
	default:
		return ""
	}
}

// Render replaces the children of container with one row per resolved hit
// and sets the hint text. Either node may be nil.
func (p *Presenter) Render(container, hint *html.Node, term string, hits []index.SearchHit) []Result {
	res := p.Present(term, hits)

	if hint != nil {
		goquery.NewDocumentFromNode(hint).SetText(p.Hint(term, len(res)))
	}
	if container != nil {
		sel := goquery.NewDocumentFromNode(container).Selection
		sel.Empty()
		for _, r := range res {
			sel.AppendNodes(p.Row(r))
		}
	}
	return res
}

// Clear removes all rows and the hint text.
func (p *Presenter) Clear(container, hint *html.Node) {
	p.Render(container, hint, "", nil)
}

// Row builds the row element for r.
func (p *Presenter) Row(r Result) *html.Node {
	var row *html.Node
	attrs := []html.Attribute{
		{Key: "class", Val: RowClass},
		{Key: "data-term", Val: r.Term},
		{Key: "data-title", Val: r.Record.Title},
	}
	if p.mode == ModeSuggestion {
		attrs = append(attrs, html.Attribute{Key: "data-uri", Val: r.URI})
		attrs = append(attrs, html.Attribute{Key: "data-context", Val: r.Context})
		row = element(atom.Div, attrs...)
	} else {
		attrs = append(attrs, html.Attribute{Key: "href", Val: r.URI})
		attrs = append(attrs, html.Attribute{Key: "data-context", Val: r.Context})
		row = element(atom.A, attrs...)
	}

	row.AppendChild(textDiv("title", "» "+r.Record.Title))
	if p.mode == ModePanel {
		row.AppendChild(textDiv("breadcrumbs", r.Record.Breadcrumb))
	}
	if r.Context != "" {
		row.AppendChild(textDiv("context", r.Context))
	}
	return row
}

// Select navigates to the row containing node. It reports false when node
// is not inside a result row.
func (p *Presenter) Select(node *html.Node, nav Navigator) bool {
	if node == nil || nav == nil {
		return false
	}
	row := goquery.NewDocumentFromNode(node).Closest("." + RowClass)
	if row.Length() == 0 {
		return false
	}
	uri, ok := row.Attr("href")
	if !ok {
		uri, ok = row.Attr("data-uri")
	}
	if !ok {
		return false
	}
	nav.Navigate(uri)
	return true
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     attrs,
	}
}

func textDiv(class, text string) *html.Node {
	div := element(atom.Div, html.Attribute{Key: "class", Val: class})
	div.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return div
}
