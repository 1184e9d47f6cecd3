package navstate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonwraymond/sitesearch/highlight"
	"github.com/jonwraymond/sitesearch/storage"
	"golang.org/x/net/html"
)

const testPage = `<div id="body">
<input class="search-by" type="search"/>
<div class="highlightable">
<h2 id="intro">Intro</h2>
<p>The quick brown fox jumps over the lazy dog.</p>
</div>
<input class="search-by" id="R-search-by-detail" type="search"/>
</div>`

const searchPage = "https://example.com/search/"

type fixture struct {
	sync     *Sync
	root     *html.Node
	store    storage.Store
	history  *MemoryHistory
	viewport *recordingViewport
	frames   *FrameQueue
	events   *[]string
	runs     *[]string
	blurs    *int
}

// recordingMarker logs Mark calls so tests can check ordering against
// scroll restoration.
type recordingMarker struct {
	*highlight.Engine
	events *[]string
}

func (m recordingMarker) Mark(root *html.Node, term string) []*html.Node {
	*m.events = append(*m.events, "mark:"+term)
	return m.Engine.Mark(root, term)
}

type recordingViewport struct {
	MemoryViewport
	events *[]string
}

func (v *recordingViewport) SetScrollTop(offset int) {
	*v.events = append(*v.events, "scroll")
	v.MemoryViewport.SetScrollTop(offset)
}

type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Get(context.Context, string) (string, bool, error) { return "", false, errStoreDown }
func (failingStore) Set(context.Context, string, string) error         { return errStoreDown }
func (failingStore) Remove(context.Context, string) error              { return errStoreDown }
func (failingStore) Close() error                                      { return nil }

// Helper to build a Sync over the test page
func newFixture(t *testing.T, location string, mutate ...func(*Options)) *fixture {
	t.Helper()
	root, err := html.Parse(strings.NewReader(testPage))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	var events, runs []string
	blurs := 0
	f := &fixture{
		root:     root,
		store:    storage.NewMemory(),
		history:  NewMemoryHistory(location),
		viewport: &recordingViewport{events: &events},
		frames:   &FrameQueue{},
		events:   &events,
		runs:     &runs,
		blurs:    &blurs,
	}
	opts := Options{
		AbsBaseURI: "https://example.com",
		Store:      f.store,
		Marker:     recordingMarker{Engine: highlight.NewEngine(), events: &events},
		Pipeline: PipelineFunc(func(_ context.Context, term string) error {
			runs = append(runs, term)
			return nil
		}),
		History:  f.history,
		Viewport: f.viewport,
		Frames:   f.frames,
		Focus:    FocusFunc(func() { blurs++ }),
		Root:     root,
		Logger:   slog.New(slog.DiscardHandler),
	}
	for _, m := range mutate {
		m(&opts)
	}
	f.sync = New(opts)
	return f
}

func (f *fixture) inputValues() []string {
	var values []string
	goquery.NewDocumentFromNode(f.root).Find(InputSelector).Each(func(_ int, s *goquery.Selection) {
		v, _ := s.Attr("value")
		values = append(values, v)
	})
	return values
}

func (f *fixture) assertInputs(t *testing.T, want string) {
	t.Helper()
	values := f.inputValues()
	if len(values) != 2 {
		t.Fatalf("expected 2 inputs, got %d", len(values))
	}
	for i, v := range values {
		if v != want {
			t.Errorf("input %d: got %q, want %q", i, v, want)
		}
	}
}

func (f *fixture) marks() int {
	return goquery.NewDocumentFromNode(f.root).Find("mark.search").Length()
}

func (f *fixture) storedTerm(t *testing.T) (string, bool) {
	t.Helper()
	v, ok, err := f.store.Get(context.Background(), storage.SearchValueKey("https://example.com"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	return v, ok
}

func resultsPage(o *Options) { o.ResultsPage = true }

// ============================================================
// Tests for Input
// ============================================================

func TestSync_InputMarksPersistsAndMirrors(t *testing.T) {
	f := newFixture(t, searchPage)
	f.sync.Input(context.Background(), "fox")

	f.assertInputs(t, "fox")
	if f.marks() != 1 {
		t.Errorf("expected 1 mark, got %d", f.marks())
	}
	if v, ok := f.storedTerm(t); !ok || v != "fox" {
		t.Errorf("expected stored fox, got %q ok=%v", v, ok)
	}
	if f.sync.State() != Active {
		t.Errorf("expected Active, got %v", f.sync.State())
	}
	if len(*f.runs) != 1 || (*f.runs)[0] != "fox" {
		t.Errorf("expected pipeline run for fox, got %v", *f.runs)
	}
	if f.history.Len() != 1 {
		t.Error("history must not change outside the results page")
	}
}

func TestSync_InputEmptyReturnsToIdle(t *testing.T) {
	f := newFixture(t, searchPage)
	ctx := context.Background()
	f.sync.Input(ctx, "fox")
	f.sync.Input(ctx, "")

	f.assertInputs(t, "")
	if f.marks() != 0 {
		t.Errorf("expected no marks, got %d", f.marks())
	}
	if _, ok := f.storedTerm(t); ok {
		t.Error("stored term not removed")
	}
	if f.sync.State() != Idle {
		t.Errorf("expected Idle, got %v", f.sync.State())
	}
}

func TestSync_InputPushesOnlyWhenTermChanges(t *testing.T) {
	f := newFixture(t, searchPage, resultsPage)
	ctx := context.Background()
	f.viewport.MemoryViewport.SetScrollTop(100)

	f.sync.Input(ctx, "fox")
	if f.history.Len() != 2 {
		t.Fatalf("expected a pushed entry, len=%d", f.history.Len())
	}
	if got := f.history.Location(); got != searchPage+"?search-by=fox" {
		t.Errorf("unexpected location %q", got)
	}
	st, err := ParseEntryState(f.history.State())
	if err != nil {
		t.Fatalf("ParseEntryState failed: %v", err)
	}
	if st.Search != searchPage+"?search-by=fox" || !st.HasScrollTop() || *st.ContentScrollTop != 100 {
		t.Errorf("unexpected pushed state %+v", st)
	}

	f.sync.Input(ctx, "fox")
	if f.history.Len() != 2 {
		t.Errorf("same term must not push, len=%d", f.history.Len())
	}

	f.sync.Input(ctx, "dog")
	if f.history.Len() != 3 {
		t.Errorf("changed term must push, len=%d", f.history.Len())
	}
}

// ============================================================
// Tests for PopState
// ============================================================

func TestSync_PopStateRestoresTermThenOffset(t *testing.T) {
	f := newFixture(t, searchPage)
	f.sync.PopState(context.Background(), map[string]any{
		"search":           searchPage + "?search-by=fox",
		"contentScrollTop": 420.0,
	})

	f.assertInputs(t, "fox")
	if f.marks() != 1 {
		t.Errorf("expected fox to be marked, got %d marks", f.marks())
	}
	if f.viewport.ScrollTop() != 420 {
		t.Errorf("expected offset 420, got %d", f.viewport.ScrollTop())
	}
	events := *f.events
	if len(events) != 2 || events[0] != "mark:fox" || events[1] != "scroll" {
		t.Errorf("expected mark before scroll, got %v", events)
	}
	if f.sync.Restored() != "fox" || f.sync.State() != Active {
		t.Errorf("unexpected state %v restored=%q", f.sync.State(), f.sync.Restored())
	}
}

func TestSync_PopStateScrollsToFirstMark(t *testing.T) {
	f := newFixture(t, searchPage)
	f.sync.PopState(context.Background(), EntryState{Search: searchPage + "?search-by=lazy"})

	revealed := f.viewport.Revealed()
	if revealed == nil {
		t.Fatal("expected the first mark to be scrolled into view")
	}
	if got := goquery.NewDocumentFromNode(revealed).Text(); got != "lazy" {
		t.Errorf("revealed %q", got)
	}
	if len(*f.events) != 1 {
		t.Errorf("offset must not be set without a recorded one: %v", *f.events)
	}
}

func TestSync_PopStateScrollsToFragment(t *testing.T) {
	f := newFixture(t, "https://example.com/docs/#intro")
	f.sync.PopState(context.Background(), nil)

	revealed := f.viewport.Revealed()
	if revealed == nil {
		t.Fatal("expected the fragment target to be scrolled into view")
	}
	if id, _ := goquery.NewDocumentFromNode(revealed).Attr("id"); id != "intro" {
		t.Errorf("revealed element with id %q", id)
	}
	if f.sync.State() != Idle {
		t.Errorf("expected Idle, got %v", f.sync.State())
	}
}

func TestSync_PopStateMalformedState(t *testing.T) {
	f := newFixture(t, searchPage)
	for _, raw := range []any{42, "{broken", map[string]any{"contentScrollTop": "x"}} {
		f.sync.PopState(context.Background(), raw)
	}
	if f.sync.State() != Idle {
		t.Errorf("expected Idle, got %v", f.sync.State())
	}
	if f.marks() != 0 || len(*f.events) != 0 {
		t.Errorf("malformed state must be treated as empty: %v", *f.events)
	}
}

func TestSync_BackRestoresEarlierSearch(t *testing.T) {
	f := newFixture(t, searchPage, resultsPage)
	ctx := context.Background()

	f.sync.Input(ctx, "fox")
	f.sync.Input(ctx, "dog")

	state, ok := f.history.Back()
	if !ok {
		t.Fatal("Back failed")
	}
	f.sync.PopState(ctx, state)

	f.assertInputs(t, "fox")
	if f.sync.Term() != "fox" {
		t.Errorf("expected fox, got %q", f.sync.Term())
	}
	if v, _ := f.storedTerm(t); v != "fox" {
		t.Errorf("session tier not updated on restore: %q", v)
	}
}

func TestSync_BackToClearedSearch(t *testing.T) {
	f := newFixture(t, searchPage, resultsPage)
	ctx := context.Background()

	f.sync.Input(ctx, "fox")
	f.sync.Clear(ctx)
	if got := f.history.Location(); got != searchPage+"?search-by=" {
		t.Fatalf("clearing must keep an empty search parameter, got %q", got)
	}
	f.sync.Input(ctx, "dog")

	state, ok := f.history.Back()
	if !ok {
		t.Fatal("Back failed")
	}
	f.sync.PopState(ctx, state)

	f.assertInputs(t, "")
	if f.sync.Term() != "" || f.sync.State() != Idle {
		t.Errorf("expected a cleared Idle page, got term %q state %v", f.sync.Term(), f.sync.State())
	}
	if f.marks() != 0 {
		t.Errorf("expected no marks, got %d", f.marks())
	}
	if _, ok := f.storedTerm(t); ok {
		t.Error("stored term not removed")
	}
	runs := *f.runs
	if runs[len(runs)-1] != "" {
		t.Errorf("results not cleared, last run %q", runs[len(runs)-1])
	}
}

// ============================================================
// Tests for Escape and Clear
// ============================================================

func TestSync_EscapeKeepsRestoredTerm(t *testing.T) {
	f := newFixture(t, searchPage)
	ctx := context.Background()
	f.sync.PopState(ctx, EntryState{Search: searchPage + "?search-by=fox"})

	f.sync.Escape(ctx)

	if *f.blurs != 1 {
		t.Errorf("expected one blur, got %d", *f.blurs)
	}
	f.assertInputs(t, "fox")
	if f.marks() != 1 {
		t.Error("restored term must stay marked")
	}
	if v, ok := f.storedTerm(t); !ok || v != "fox" {
		t.Error("restored term must stay stored")
	}
}

func TestSync_EscapeOnEmptyInputBlurs(t *testing.T) {
	f := newFixture(t, searchPage)
	f.sync.Escape(context.Background())

	if *f.blurs != 1 {
		t.Errorf("expected one blur, got %d", *f.blurs)
	}
	if f.sync.State() != Idle {
		t.Errorf("expected Idle, got %v", f.sync.State())
	}
}

func TestSync_EscapeClearsTypedTerm(t *testing.T) {
	f := newFixture(t, searchPage)
	ctx := context.Background()
	f.sync.Input(ctx, "fox")

	f.sync.Escape(ctx)

	f.assertInputs(t, "")
	if f.marks() != 0 {
		t.Error("marks not removed")
	}
	if _, ok := f.storedTerm(t); ok {
		t.Error("stored term not removed")
	}
	if *f.blurs != 0 {
		t.Error("clearing a typed term keeps focus")
	}
	if f.sync.State() != Idle {
		t.Errorf("expected Idle, got %v", f.sync.State())
	}
}

func TestSync_EscapeAfterEditingRestoredTerm(t *testing.T) {
	f := newFixture(t, searchPage)
	ctx := context.Background()
	f.sync.PopState(ctx, EntryState{Search: searchPage + "?search-by=fox"})
	f.sync.Input(ctx, "dog")

	f.sync.Escape(ctx)
	f.assertInputs(t, "")
}

func TestSync_Clear(t *testing.T) {
	f := newFixture(t, searchPage)
	ctx := context.Background()
	f.sync.Input(ctx, "quick fox")

	f.sync.Clear(ctx)

	f.assertInputs(t, "")
	if f.marks() != 0 {
		t.Errorf("expected no marks, got %d", f.marks())
	}
	runs := *f.runs
	if runs[len(runs)-1] != "" {
		t.Errorf("results not cleared, last run %q", runs[len(runs)-1])
	}
}

// ============================================================
// Tests for scroll recording
// ============================================================

func TestSync_ScrollThrottledPerFrame(t *testing.T) {
	f := newFixture(t, searchPage)
	f.viewport.MemoryViewport.SetScrollTop(50)

	f.sync.Scroll()
	f.sync.Scroll()
	f.sync.Scroll()
	if n := f.frames.Flush(); n != 1 {
		t.Fatalf("expected one frame callback, got %d", n)
	}

	st, _ := ParseEntryState(f.history.State())
	if !st.HasScrollTop() || *st.ContentScrollTop != 50 {
		t.Errorf("offset not recorded: %+v", st)
	}
	if f.history.Len() != 1 {
		t.Error("scroll must replace, not push")
	}

	f.viewport.MemoryViewport.SetScrollTop(80)
	f.sync.Scroll()
	if n := f.frames.Flush(); n != 1 {
		t.Fatalf("expected a new frame after the previous one ran, got %d", n)
	}
	st, _ = ParseEntryState(f.history.State())
	if *st.ContentScrollTop != 80 {
		t.Errorf("expected 80, got %d", *st.ContentScrollTop)
	}
}

func TestSync_ScrollWithoutScheduler(t *testing.T) {
	f := newFixture(t, searchPage, func(o *Options) { o.Frames = nil })
	f.viewport.MemoryViewport.SetScrollTop(30)

	f.sync.Scroll()
	st, _ := ParseEntryState(f.history.State())
	if !st.HasScrollTop() || *st.ContentScrollTop != 30 {
		t.Errorf("offset not recorded: %+v", st)
	}
}

func TestSync_ClickKeepsSearchAddress(t *testing.T) {
	f := newFixture(t, searchPage, resultsPage)
	ctx := context.Background()
	f.sync.Input(ctx, "fox")
	f.viewport.MemoryViewport.SetScrollTop(12)

	f.sync.Click()

	st, _ := ParseEntryState(f.history.State())
	if st.Search != searchPage+"?search-by=fox" {
		t.Errorf("search address lost: %q", st.Search)
	}
	if *st.ContentScrollTop != 12 {
		t.Errorf("expected 12, got %d", *st.ContentScrollTop)
	}
}

// ============================================================
// Tests for Load
// ============================================================

func TestSync_LoadFromAddress(t *testing.T) {
	f := newFixture(t, searchPage+"?search-by=dog", resultsPage)
	f.sync.Load(context.Background())

	f.assertInputs(t, "dog")
	if v, ok := f.storedTerm(t); !ok || v != "dog" {
		t.Errorf("expected stored dog, got %q ok=%v", v, ok)
	}
	if f.marks() != 1 {
		t.Errorf("expected 1 mark, got %d", f.marks())
	}
	st, _ := ParseEntryState(f.history.State())
	if st.Search != searchPage+"?search-by=dog" {
		t.Errorf("entry not replaced with the search address: %+v", st)
	}
	if f.history.Len() != 1 {
		t.Error("load must not push")
	}
	if f.viewport.Revealed() == nil {
		t.Error("expected the first mark to be scrolled into view")
	}
}

// orderedStore logs writes next to the marker's events.
type orderedStore struct {
	*storage.Memory
	events *[]string
}

func (s orderedStore) Set(ctx context.Context, key, value string) error {
	*s.events = append(*s.events, "set:"+value)
	return s.Memory.Set(ctx, key, value)
}

func TestSync_LoadPersistsAfterMarking(t *testing.T) {
	f := newFixture(t, searchPage+"?search-by=dog", func(o *Options) {
		o.Store = orderedStore{Memory: storage.NewMemory(), events: o.Marker.(recordingMarker).events}
	})
	f.sync.Load(context.Background())

	events := *f.events
	if len(events) < 2 || events[0] != "mark:dog" || events[1] != "set:dog" {
		t.Errorf("expected mark before the session tier write, got %v", events)
	}
}

func TestSync_LoadFromSessionTier(t *testing.T) {
	f := newFixture(t, "https://example.com/docs/")
	ctx := context.Background()
	if err := f.store.Set(ctx, storage.SearchValueKey("https://example.com"), "quick"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	f.sync.Load(ctx)

	f.assertInputs(t, "quick")
	if f.sync.Restored() != "quick" || f.sync.State() != Active {
		t.Errorf("unexpected state %v restored=%q", f.sync.State(), f.sync.Restored())
	}
	if f.history.State() != nil {
		t.Error("content pages must not rewrite history")
	}
}

func TestSync_LoadWithoutTerm(t *testing.T) {
	f := newFixture(t, "https://example.com/docs/")
	f.sync.Load(context.Background())

	if f.sync.State() != Idle {
		t.Errorf("expected Idle, got %v", f.sync.State())
	}
	if len(*f.runs) != 0 {
		t.Errorf("pipeline should not run without a term: %v", *f.runs)
	}
}

// ============================================================
// Tests for degraded collaborators
// ============================================================

func TestSync_StorageFailuresAreRecovered(t *testing.T) {
	f := newFixture(t, searchPage, func(o *Options) { o.Store = failingStore{} })
	ctx := context.Background()

	f.sync.Input(ctx, "fox")
	if f.marks() != 1 {
		t.Error("marking must not depend on the session tier")
	}
	f.sync.Load(ctx)
	f.sync.Escape(ctx)
}

func TestSync_PipelineErrorIsLogged(t *testing.T) {
	f := newFixture(t, searchPage, func(o *Options) {
		o.Pipeline = PipelineFunc(func(context.Context, string) error { return errors.New("index unavailable") })
	})
	f.sync.Input(context.Background(), "fox")
	if f.sync.State() != Active {
		t.Errorf("expected Active, got %v", f.sync.State())
	}
}

func TestSync_MissingAffordances(t *testing.T) {
	s := New(Options{AbsBaseURI: "https://example.com", Logger: slog.New(slog.DiscardHandler)})
	ctx := context.Background()

	s.Load(ctx)
	s.Input(ctx, "fox")
	s.Scroll()
	s.Click()
	s.PopState(ctx, nil)
	s.Escape(ctx)
	s.Clear(ctx)

	if s.State() != Idle {
		t.Errorf("expected Idle, got %v", s.State())
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{Idle: "idle", Active: "active", Restoring: "restoring", State(7): "unknown"} {
		if got := s.String(); got != want {
			t.Errorf("%d: got %q, want %q", s, got, want)
		}
	}
}
