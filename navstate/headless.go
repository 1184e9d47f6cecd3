package navstate

import (
	"sync"

	"golang.org/x/net/html"
)

// History is the navigation history of the page.
type History interface {
	// State returns the raw state of the current entry.
	State() any
	// Location returns the address of the current entry.
	Location() string
	// PushState adds an entry after the current one.
	PushState(state EntryState, address string)
	// ReplaceState overwrites the current entry.
	ReplaceState(state EntryState, address string)
}

// Viewport is the scrollable content area.
type Viewport interface {
	ScrollTop() int
	SetScrollTop(offset int)
	ScrollIntoView(n *html.Node)
}

// FrameScheduler runs a callback before the next repaint.
type FrameScheduler interface {
	RequestAnimationFrame(fn func())
}

// Focus releases keyboard focus from the search input.
type Focus interface {
	Blur()
}

// FocusFunc adapts a function to Focus.
type FocusFunc func()

// Blur calls f.
func (f FocusFunc) Blur() { f() }

type historyEntry struct {
	state    any
	location string
}

// MemoryHistory is a History kept in memory with back/forward support.
// It is safe for concurrent use.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []historyEntry
	current int
}

// NewMemoryHistory creates a history with one stateless entry at location.
func NewMemoryHistory(location string) *MemoryHistory {
	return &MemoryHistory{entries: []historyEntry{{location: location}}}
}

func (h *MemoryHistory) State() any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.current].state
}

func (h *MemoryHistory) Location() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.current].location
}

// PushState drops any forward entries, like a browser does.
func (h *MemoryHistory) PushState(state EntryState, address string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.current+1], historyEntry{state: state, location: address})
	h.current++
}

func (h *MemoryHistory) ReplaceState(state EntryState, address string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.current] = historyEntry{state: state, location: address}
}

// Len returns the number of entries.
func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Back moves to the previous entry and returns its state, the value a
// popstate handler receives. ok is false at the first entry.
func (h *MemoryHistory) Back() (state any, ok bool) {
	return h.Go(-1)
}

// Forward moves to the next entry and returns its state.
func (h *MemoryHistory) Forward() (state any, ok bool) {
	return h.Go(1)
}

// Go moves delta entries through the history.
func (h *MemoryHistory) Go(delta int) (state any, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := h.current + delta
	if delta == 0 || next < 0 || next >= len(h.entries) {
		return nil, false
	}
	h.current = next
	return h.entries[next].state, true
}

// MemoryViewport records scroll operations.
type MemoryViewport struct {
	mu       sync.Mutex
	top      int
	revealed *html.Node
}

func (v *MemoryViewport) ScrollTop() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.top
}

func (v *MemoryViewport) SetScrollTop(offset int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.top = offset
}

func (v *MemoryViewport) ScrollIntoView(n *html.Node) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.revealed = n
}

// Revealed returns the last node scrolled into view.
func (v *MemoryViewport) Revealed() *html.Node {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.revealed
}

// FrameQueue is a FrameScheduler whose callbacks run on Flush.
type FrameQueue struct {
	mu  sync.Mutex
	fns []func()
}

func (q *FrameQueue) RequestAnimationFrame(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fns = append(q.fns, fn)
}

// Flush runs the queued callbacks and returns how many ran.
func (q *FrameQueue) Flush() int {
	q.mu.Lock()
	fns := q.fns
	q.fns = nil
	q.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}
