package navstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"strconv"
	"strings"
)

// SearchParam is the address query parameter carrying the search term.
const SearchParam = "search-by"

// ErrMalformedState is returned by ParseEntryState for history state that
// is not a state object.
var ErrMalformedState = errors.New("malformed history state")

const (
	keySearch    = "search"
	keyScrollTop = "contentScrollTop"
)

// EntryState is the state attached to one history entry.
type EntryState struct {
	// Search is the address of the search that was active, empty when none.
	Search string

	// ContentScrollTop is the scroll offset of the content area, nil when
	// it was never recorded.
	ContentScrollTop *int

	// Extra holds unrelated keys written by other scripts. They are kept so
	// replacing the state does not drop them.
	Extra map[string]any
}

// HasScrollTop reports whether a scroll offset was recorded.
func (s EntryState) HasScrollTop() bool {
	return s.ContentScrollTop != nil
}

// WithScrollTop returns a copy of s recording offset.
func (s EntryState) WithScrollTop(offset int) EntryState {
	c := s.clone()
	c.ContentScrollTop = &offset
	return c
}

// WithSearch returns a copy of s recording the search address.
func (s EntryState) WithSearch(address string) EntryState {
	c := s.clone()
	c.Search = address
	return c
}

// Term returns the search term encoded in Search.
func (s EntryState) Term() (string, bool) {
	if s.Search == "" {
		return "", false
	}
	return TermFromAddress(s.Search)
}

func (s EntryState) clone() EntryState {
	c := EntryState{Search: s.Search, Extra: maps.Clone(s.Extra)}
	if s.ContentScrollTop != nil {
		v := *s.ContentScrollTop
		c.ContentScrollTop = &v
	}
	return c
}

// MarshalJSON writes the state as a flat object, extra keys included.
func (s EntryState) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(s.Extra)+2)
	maps.Copy(m, s.Extra)
	if s.Search != "" {
		m[keySearch] = s.Search
	}
	if s.ContentScrollTop != nil {
		m[keyScrollTop] = *s.ContentScrollTop
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads a flat state object.
func (s *EntryState) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedState, err)
	}
	st, err := fromMap(m)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ParseEntryState converts a raw history state into an EntryState. A nil
// state is the empty state. Anything that is not a state object yields the
// empty state and ErrMalformedState, so callers can log and carry on.
func ParseEntryState(v any) (EntryState, error) {
	switch st := v.(type) {
	case nil:
		return EntryState{}, nil
	case EntryState:
		return st.clone(), nil
	case *EntryState:
		if st == nil {
			return EntryState{}, nil
		}
		return st.clone(), nil
	case map[string]any:
		return fromMap(st)
	case json.RawMessage:
		return parseJSON(st)
	case []byte:
		return parseJSON(st)
	case string:
		return parseJSON([]byte(st))
	default:
		return EntryState{}, fmt.Errorf("%w: unexpected type %T", ErrMalformedState, v)
	}
}

func parseJSON(data []byte) (EntryState, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return EntryState{}, nil
	}
	var st EntryState
	if err := json.Unmarshal(data, &st); err != nil {
		if errors.Is(err, ErrMalformedState) {
			return EntryState{}, err
		}
		return EntryState{}, fmt.Errorf("%w: %v", ErrMalformedState, err)
	}
	return st, nil
}

func fromMap(m map[string]any) (EntryState, error) {
	var st EntryState
	for k, v := range m {
		switch k {
		case keySearch:
			s, ok := v.(string)
			if !ok && v != nil {
				return EntryState{}, fmt.Errorf("%w: search is %T", ErrMalformedState, v)
			}
			st.Search = s
		case keyScrollTop:
			if v == nil {
				continue
			}
			n, err := scrollOffset(v)
			if err != nil {
				return EntryState{}, err
			}
			st.ContentScrollTop = &n
		default:
			if st.Extra == nil {
				st.Extra = make(map[string]any)
			}
			st.Extra[k] = v
		}
	}
	return st, nil
}

// scrollOffset accepts the numeric forms a scroll offset is stored in,
// including numeric strings.
func scrollOffset(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: contentScrollTop %q", ErrMalformedState, n)
		}
		return int(f), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: contentScrollTop %q", ErrMalformedState, n)
		}
		return int(f), nil
	default:
		return 0, fmt.Errorf("%w: contentScrollTop is %T", ErrMalformedState, v)
	}
}

// TermFromAddress returns the search term carried by address. ok is false
// when the address has no search parameter or cannot be parsed.
func TermFromAddress(address string) (term string, ok bool) {
	u, err := url.Parse(address)
	if err != nil {
		return "", false
	}
	q := u.Query()
	if !q.Has(SearchParam) {
		return "", false
	}
	return q.Get(SearchParam), true
}

// AddressWithTerm returns address with its search parameter set to term.
// An empty term keeps an empty parameter so that returning to the entry
// clears the search.
func AddressWithTerm(address, term string) (string, error) {
	u, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("parse address: %w", err)
	}
	q := u.Query()
	q.Set(SearchParam, term)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fragment returns the fragment of address without the leading '#'.
func Fragment(address string) string {
	u, err := url.Parse(address)
	if err != nil {
		return ""
	}
	return u.Fragment
}
