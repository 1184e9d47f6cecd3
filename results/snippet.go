package results

import (
	"regexp"
	"strconv"
	"strings"
)

// Context window widths, in words on each side of the match.
const (
	PanelContextWords      = 10
	SuggestionContextWords = 2
)

// ContextPattern builds the case-insensitive pattern that captures up to n
// words before and after any occurrence of one of words. It returns nil when
// words is empty.
func ContextPattern(words []string, n int) *regexp.Regexp {
	alts := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		alts = append(alts, regexp.QuoteMeta(w))
	}
	if len(alts) == 0 {
		return nil
	}
	if n < 0 {
		n = 0
	}
	count := strconv.Itoa(n)

	var b strings.Builder
	b.WriteString(`(?i)(?:\S+ +){0,`)
	b.WriteString(count)
	b.WriteString(`}\S*\b(?:`)
	b.WriteString(strings.Join(alts, "|"))
	b.WriteString(`)\b\S*(?: +\S+){0,`)
	b.WriteString(count)
	b.WriteString(`}`)
	return regexp.MustCompile(b.String())
}

// Snippet returns the first context window of content around words, or ""
// when nothing matches.
func Snippet(content string, words []string, n int) string {
	re := ContextPattern(words, n)
	if re == nil {
		return ""
	}
	return re.FindString(content)
}
