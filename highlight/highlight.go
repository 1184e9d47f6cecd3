package highlight

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Pattern compiles the expression matching any word of term. It returns nil
// when term has no words.
func Pattern(term string, opts Options) *regexp.Regexp {
	words := strings.Fields(term)
	if len(words) == 0 {
		return nil
	}
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}

	pattern := "(" + strings.Join(words, "|") + ")"
	if opts.WordsOnly {
		pattern = `\b` + pattern + `\b`
	}
	if !opts.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	return regexp.MustCompile(pattern)
}

// Highlight marks every occurrence of the words of term below each node and
// returns the inserted marker elements in document order. An empty term is a
// no-op.
func Highlight(nodes []*html.Node, term string, opts Options) []*html.Node {
	opts = opts.withDefaults()
	re := Pattern(term, opts)
	if re == nil {
		return nil
	}

	var marks []*html.Node
	for _, n := range nodes {
		marks = append(marks, highlightTree(n, re, opts)...)
	}
	return marks
}

// Unhighlight removes every marker element below each node, merging the
// unwrapped text with its neighbours. It returns the number of markers
// removed.
func Unhighlight(nodes []*html.Node, opts Options) int {
	opts = opts.withDefaults()
	sel := opts.selector()

	removed := 0
	for _, n := range nodes {
		for _, m := range goquery.NewDocumentFromNode(n).Find(sel).Nodes {
			if !isMarker(m, opts) {
				continue
			}
			if unwrap(m) {
				removed++
			}
		}
	}
	return removed
}

// highlightTree walks root depth first. Each text node is split at its first
// match; the remainder is pushed back on the stack so later matches in the
// same text are marked too, while the inserted marker itself is never
// visited.
func highlightTree(root *html.Node, re *regexp.Regexp, opts Options) []*html.Node {
	var marks []*html.Node
	stack := []*html.Node{root}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n.Type {
		case html.TextNode:
			if !inHTMLElement(n) {
				continue
			}
			loc := re.FindStringIndex(n.Data)
			if loc == nil || loc[0] == loc[1] {
				continue
			}
			mark, after := splitText(n, loc[0], loc[1], opts)
			marks = append(marks, mark)
			stack = append(stack, after)

		case html.ElementNode, html.DocumentNode:
			if skipElement(n, opts) {
				continue
			}
			for c := n.LastChild; c != nil; c = c.PrevSibling {
				stack = append(stack, c)
			}
		}
	}
	return marks
}

// splitText turns n into before / marker / after. n keeps the text before the
// match; the after node always exists, possibly empty.
func splitText(n *html.Node, start, end int, opts Options) (mark, after *html.Node) {
	text := n.Data
	n.Data = text[:start]

	mark = newElement(opts.Element, opts.ClassName)
	mark.AppendChild(&html.Node{Type: html.TextNode, Data: text[start:end]})
	after = &html.Node{Type: html.TextNode, Data: text[end:]}

	parent := n.Parent
	next := n.NextSibling
	parent.InsertBefore(mark, next)
	parent.InsertBefore(after, next)
	return mark, after
}

func inHTMLElement(n *html.Node) bool {
	p := n.Parent
	return p != nil && p.Type == html.ElementNode && p.Namespace == ""
}

func skipElement(n *html.Node, opts Options) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if n.Namespace != "" {
		return true
	}
	tag := strings.ToLower(n.Data)
	if strings.Contains(tag, "script") || strings.Contains(tag, "style") {
		return true
	}
	return isMarker(n, opts)
}

// isMarker reports whether n is a marker element made with opts.
func isMarker(n *html.Node, opts Options) bool {
	if n.Type != html.ElementNode || strings.ToLower(n.Data) != opts.Element {
		return false
	}
	class, _ := attr(n, "class")
	return class == opts.ClassName
}

// unwrap replaces m by its children and normalizes the parent.
func unwrap(m *html.Node) bool {
	parent := m.Parent
	if parent == nil {
		return false
	}
	for c := m.FirstChild; c != nil; {
		next := c.NextSibling
		m.RemoveChild(c)
		parent.InsertBefore(c, m)
		c = next
	}
	parent.RemoveChild(m)
	normalize(parent)
	return true
}

// normalize merges adjacent text children of n and drops empty ones.
func normalize(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type != html.TextNode {
			c = next
			continue
		}
		for next != nil && next.Type == html.TextNode {
			c.Data += next.Data
			following := next.NextSibling
			n.RemoveChild(next)
			next = following
		}
		if c.Data == "" {
			n.RemoveChild(c)
		}
		c = next
	}
}
