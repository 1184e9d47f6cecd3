package highlight

import "strings"

// Options selects the marker element and the matching rules.
type Options struct {
	// Element is the tag name of marker elements.
	Element string
	// ClassName is the class attribute of marker elements.
	ClassName string
	// CaseSensitive disables case folding.
	CaseSensitive bool
	// WordsOnly only matches whole words.
	WordsOnly bool
}

// DefaultOptions returns the generic marker settings: <span class="highlight">,
// case-insensitive, substring matching.
func DefaultOptions() Options {
	return Options{Element: "span", ClassName: "highlight"}
}

// SearchOptions returns the settings used for search marks:
// <mark class="search">.
func SearchOptions() Options {
	return Options{Element: "mark", ClassName: "search"}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Element == "" {
		o.Element = d.Element
	}
	if o.ClassName == "" {
		o.ClassName = d.ClassName
	}
	o.Element = strings.ToLower(o.Element)
	return o
}

// selector returns the CSS selector matching marker elements.
func (o Options) selector() string {
	return o.Element + "." + strings.Join(strings.Fields(o.ClassName), ".")
}
