package query

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
)

// ReservedChars are the index operator characters stripped from raw input.
const ReservedChars = "*:^~+-"

// Clause boosts. Exact matches always outrank wildcard matches, which in
// turn outrank fuzzy matches.
const (
	BoostExact  = 100
	BoostPrefix = 10
	BoostSuffix = 10
	BoostFuzzy  = 1
)

// Kind identifies the matching strategy of a clause.
type Kind int

const (
	KindExact Kind = iota
	KindPrefix
	KindSuffix
	KindFuzzy
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindPrefix:
		return "prefix"
	case KindSuffix:
		return "suffix"
	case KindFuzzy:
		return "fuzzy"
	default:
		return "unknown"
	}
}

// Clause is one weighted sub-expression generated for a token.
type Clause struct {
	Term  string
	Kind  Kind
	Boost float64

	// Edits is the tolerated edit distance. Only meaningful for KindFuzzy.
	Edits int
}

// String renders the clause in index query syntax, e.g. "term*^10".
func (c Clause) String() string {
	boost := "^" + strconv.FormatFloat(c.Boost, 'f', -1, 64)
	switch c.Kind {
	case KindPrefix:
		return c.Term + "*" + boost
	case KindSuffix:
		return "*" + c.Term + boost
	case KindFuzzy:
		return c.Term + "~" + strconv.Itoa(c.Edits) + boost
	default:
		return c.Term + boost
	}
}

// Expression is the fuzzy search expression for one raw input.
// Clauses are OR-ed, both within a token and across tokens.
type Expression struct {
	// Raw is the unmodified user input.
	Raw string

	// Tokens are the words extracted from Raw, in input order.
	Tokens []string

	// Clauses holds four clauses per token, grouped by token.
	Clauses []Clause
}

// Empty reports whether the expression has nothing to search for.
func (e Expression) Empty() bool {
	return len(e.Clauses) == 0
}

// String joins all clauses with spaces, which the index query language
// treats as a logical OR.
func (e Expression) String() string {
	parts := make([]string, len(e.Clauses))
	for i, c := range e.Clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

// editStep maps a minimum token length to a tolerated edit count.
type editStep struct {
	minLen int
	edits  int
}

// editSteps is ordered from the longest threshold down; the first step the
// token length reaches wins.
var editSteps = []editStep{
	{minLen: 60, edits: 2},
	{minLen: 40, edits: 3},
	{minLen: 20, edits: 4},
	{minLen: 16, edits: 3},
	{minLen: 12, edits: 2},
	{minLen: 8, edits: 1},
	{minLen: 4, edits: 0},
}

const defaultEdits = 1

// EditDistance returns the number of edits tolerated for token, measured in
// characters.
func EditDistance(token string) int {
	n := utf8.RuneCountInString(token)
	for _, step := range editSteps {
		if n >= step.minLen {
			return step.edits
		}
	}
	return defaultEdits
}

// Patterns expands a single token into its four weighted clauses.
func Patterns(token string) []Clause {
	return []Clause{
		{Term: token, Kind: KindExact, Boost: BoostExact},
		{Term: token, Kind: KindPrefix, Boost: BoostPrefix},
		{Term: token, Kind: KindSuffix, Boost: BoostSuffix},
		{Term: token, Kind: KindFuzzy, Boost: BoostFuzzy, Edits: EditDistance(token)},
	}
}

// Clean replaces every reserved operator character with a space so word
// boundaries survive.
func Clean(raw string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(ReservedChars, r) {
			return ' '
		}
		return r
	}, raw)
}

// Transformer builds search expressions from raw input.
type Transformer struct {
	tokenizer analysis.Tokenizer
	filter    analysis.TokenFilter
}

// NewTransformer returns a Transformer using the unicode word tokenizer and
// lowercase filter that the index applies to page content.
func NewTransformer() *Transformer {
	return &Transformer{
		tokenizer: unicode.NewUnicodeTokenizer(),
		filter:    lowercase.NewLowerCaseFilter(),
	}
}

var defaultTransformer = NewTransformer()

// Tokenize splits s into lowercased words.
func (t *Transformer) Tokenize(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	stream := t.filter.Filter(t.tokenizer.Tokenize([]byte(s)))
	tokens := make([]string, 0, len(stream))
	for _, tok := range stream {
		if len(tok.Term) == 0 {
			continue
		}
		tokens = append(tokens, string(tok.Term))
	}
	return tokens
}

// Transform cleans, tokenizes and expands raw into a search expression.
// Empty or whitespace-only input yields an empty expression.
func (t *Transformer) Transform(raw string) Expression {
	expr := Expression{Raw: raw}
	expr.Tokens = t.Tokenize(Clean(raw))
	for _, tok := range expr.Tokens {
		expr.Clauses = append(expr.Clauses, Patterns(tok)...)
	}
	return expr
}

// Tokenize splits s into lowercased words using the default transformer.
func Tokenize(s string) []string {
	return defaultTransformer.Tokenize(s)
}

// Transform builds a search expression using the default transformer.
func Transform(raw string) Expression {
	return defaultTransformer.Transform(raw)
}
