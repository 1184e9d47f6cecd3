// Package highlight marks occurrences of search terms inside a content tree
// and removes those marks again.
//
// Marking wraps every matched run of text in a marker element (by default
// <mark class="search">). It walks the tree depth first with an explicit
// stack, never descends into script or style elements, foreign content
// (SVG, MathML) or existing marks, and continues after each inserted mark
// without re-visiting it. Marking the same tree twice therefore never nests
// markers.
//
// Unmarking unwraps every marker and merges the surrounding text back into
// a single text node, so for any tree t and term T:
//
//	Unmark(Mark(t, T)) == t
//
// The [Engine] additionally forces collapsed disclosures (".expand" blocks
// and collapsible menu entries) open when they contain a mark, remembers
// their previous toggle state and restores it on Unmark.
//
// Content trees are not safe for concurrent mutation; callers serialize
// access.
package highlight
