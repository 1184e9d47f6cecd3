// Package query turns free-text search input into a typo-tolerant search
// expression for the index package.
//
// Input is cleaned of index operator characters, tokenized with the same
// unicode word-boundary rules the bleve index applies to page content, and
// every token is expanded into four weighted clauses:
//
//	hello^100    exact term
//	hello*^10    prefix wildcard
//	*hello^10    suffix wildcard
//	hello~0^1    edit-distance fuzzy match
//
// The boosts guarantee that exact and prefix matches always outrank fuzzy
// ones. The tolerated edit count is a step function of the token length
// (see [EditDistance]) so that long tokens do not blow up query cost.
//
// # Usage
//
//	expr := query.Transform("hello world")
//	if expr.Empty() {
//	    // nothing to search for
//	}
//	fmt.Println(expr) // hello^100 hello*^10 *hello^10 hello~0^1 world^100 ...
//
// A [Transformer] is safe for concurrent use.
package query
