package results

import (
	"regexp"
	"strconv"
)

// Messages holds the hint templates. {0} is replaced by the query and {1}
// by the number of results.
type Messages struct {
	ResultsFound   string
	NoResultsFound string
}

// DefaultMessages returns the English hint templates.
func DefaultMessages() Messages {
	return Messages{
		ResultsFound:   `{1} results found for "{0}"`,
		NoResultsFound: `No results found for "{0}"`,
	}
}

var placeholderRE = regexp.MustCompile(`\{([0-9]+)\}`)

// ResolvePlaceholders replaces every {N} in s with args[N]. Placeholders
// without a matching argument are left as they are.
func ResolvePlaceholders(s string, args ...string) string {
	return placeholderRE.ReplaceAllStringFunc(s, func(m string) string {
		i, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil || i >= len(args) {
			return m
		}
		return args[i]
	})
}
