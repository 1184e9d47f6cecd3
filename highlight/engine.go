package highlight

import (
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Disclosure classes.
const (
	ExpandClass          = "expand"
	ExpandMarkedClass    = "expand-marked"
	CollapsibleMenuClass = "collapsible-menu"
	MenuMarkedClass      = "menu-marked"
)

// DefaultContainers selects the content regions search marks are placed in.
const DefaultContainers = ".highlightable"

// EngineOptions configures an Engine.
type EngineOptions struct {
	// Options selects marker element and matching. Zero fields default to
	// SearchOptions.
	Options Options

	// Containers is the CSS selector of highlightable regions.
	Containers string

	Logger *slog.Logger
}

// toggleState is the original state of a disclosure input forced open by
// Mark.
type toggleState struct {
	checked    string
	hasChecked bool
	class      string
	hasClass   bool
}

// Engine marks search terms inside the highlightable regions of a page.
// It is not safe for concurrent use.
type Engine struct {
	opts       Options
	containers string
	logger     *slog.Logger

	toggles map[*html.Node]toggleState
}

// NewEngine creates an engine.
func NewEngine(opts ...EngineOptions) *Engine {
	var o EngineOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	mo := SearchOptions()
	if o.Options.Element != "" {
		mo.Element = o.Options.Element
	}
	if o.Options.ClassName != "" {
		mo.ClassName = o.Options.ClassName
	}
	mo.CaseSensitive = o.Options.CaseSensitive
	mo.WordsOnly = o.Options.WordsOnly

	containers := o.Containers
	if containers == "" {
		containers = DefaultContainers
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		opts:       mo.withDefaults(),
		containers: containers,
		logger:     logger,
		toggles:    make(map[*html.Node]toggleState),
	}
}

// Options returns the marker options in use.
func (e *Engine) Options() Options {
	return e.opts
}

// Containers returns the highlightable regions of root, including root
// itself when it matches.
func (e *Engine) Containers(root *html.Node) []*html.Node {
	if root == nil {
		return nil
	}
	doc := goquery.NewDocumentFromNode(root)
	var nodes []*html.Node
	if doc.Is(e.containers) {
		nodes = append(nodes, root)
	}
	return append(nodes, doc.Find(e.containers).Nodes...)
}

// Mark highlights term inside root and opens the disclosures holding a
// mark. It returns the inserted marks in document order. Mark completes all
// tree mutation before returning, so callers may restore scroll positions
// right after it.
func (e *Engine) Mark(root *html.Node, term string) []*html.Node {
	if root == nil || term == "" {
		return nil
	}
	marks := Highlight(e.Containers(root), term, e.opts)
	opened := e.openDisclosures(e.Marks(root))
	e.logger.Debug("search term marked", "term", term, "marks", len(marks), "opened", opened)
	return marks
}

// Unmark removes all marks below root and restores every disclosure Mark
// forced open. It is a no-op on an unmarked tree.
func (e *Engine) Unmark(root *html.Node) int {
	restored := e.restoreDisclosures()
	if root == nil {
		return 0
	}
	removed := Unhighlight(e.Containers(root), e.opts)
	if removed > 0 || restored > 0 {
		e.logger.Debug("search marks removed", "marks", removed, "restored", restored)
	}
	return removed
}

// Marks returns all marks below root in document order.
func (e *Engine) Marks(root *html.Node) []*html.Node {
	if root == nil {
		return nil
	}
	var marks []*html.Node
	for _, n := range goquery.NewDocumentFromNode(root).Find(e.opts.selector()).Nodes {
		if isMarker(n, e.opts) {
			marks = append(marks, n)
		}
	}
	return marks
}

// FirstMark returns the first mark below root, or nil.
func (e *Engine) FirstMark(root *html.Node) *html.Node {
	marks := e.Marks(root)
	if len(marks) == 0 {
		return nil
	}
	return marks[0]
}

// openDisclosures forces open the toggle of every ".expand" block and every
// collapsible menu entry that contains one of marks.
func (e *Engine) openDisclosures(marks []*html.Node) int {
	opened := 0
	for _, m := range marks {
		for p := m.Parent; p != nil; p = p.Parent {
			if p.Type != html.ElementNode {
				continue
			}
			if hasClass(p, ExpandClass) && e.force(firstInput(p), ExpandMarkedClass) {
				opened++
			}
			if isMenuEntry(p) && e.force(firstInput(p), MenuMarkedClass) {
				opened++
			}
		}
	}
	return opened
}

func (e *Engine) force(input *html.Node, markerClass string) bool {
	if input == nil {
		return false
	}
	if _, done := e.toggles[input]; done {
		return false
	}

	class, hasClassAttr := attr(input, "class")
	checked, hasChecked := attr(input, "checked")
	e.toggles[input] = toggleState{
		checked:    checked,
		hasChecked: hasChecked,
		class:      class,
		hasClass:   hasClassAttr,
	}

	if class == "" {
		setAttr(input, "class", markerClass)
	} else {
		setAttr(input, "class", class+" "+markerClass)
	}
	if !hasChecked {
		setAttr(input, "checked", "")
	}
	return true
}

func (e *Engine) restoreDisclosures() int {
	n := len(e.toggles)
	for input, st := range e.toggles {
		if st.hasClass {
			setAttr(input, "class", st.class)
		} else {
			removeAttr(input, "class")
		}
		if st.hasChecked {
			setAttr(input, "checked", st.checked)
		} else {
			removeAttr(input, "checked")
		}
	}
	clear(e.toggles)
	return n
}

func isMenuEntry(n *html.Node) bool {
	return isElement(n, atom.Li) && isElement(n.Parent, atom.Ul) && hasClass(n.Parent, CollapsibleMenuClass)
}

func firstInput(n *html.Node) *html.Node {
	inputs := goquery.NewDocumentFromNode(n).Find("input").Nodes
	if len(inputs) == 0 {
		return nil
	}
	return inputs[0]
}
