package session

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonwraymond/sitesearch/index"
	"github.com/jonwraymond/sitesearch/navstate"
	"github.com/jonwraymond/sitesearch/query"
	"github.com/jonwraymond/sitesearch/readiness"
	"github.com/jonwraymond/sitesearch/results"
	"github.com/jonwraymond/sitesearch/storage"
	"golang.org/x/net/html"
)

const resultsPageHTML = `<html><body>
<input class="search-by" id="R-search-by-detail" type="search"/>
<div class="searchhint"></div>
<div id="R-searchresults"></div>
<div class="highlightable"><p>A fox in the text.</p></div>
</body></html>`

const contentPageHTML = `<html><body>
<input class="search-by" type="search"/>
<div class="highlightable"><p>A fox in the text.</p></div>
</body></html>`

func testRecords() []index.PageRecord {
	return []index.PageRecord{
		{URI: "/fox/", Title: "Fox Guide", Breadcrumb: "Animals", Content: "The quick brown fox jumps over the lazy dog"},
		{URI: "/routing/", Title: "Routing", Breadcrumb: "Network", Content: "Configure BGP peers and routes"},
	}
}

func staticSource(records []index.PageRecord) index.Source {
	return func(context.Context) ([]index.PageRecord, error) { return records, nil }
}

// Helper to create a session with a quiet logger
func newTestSession(t *testing.T, opts ...Options) *Session {
	t.Helper()
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.AbsBaseURI == "" {
		o.AbsBaseURI = "https://example.com"
	}
	o.Logger = slog.New(slog.DiscardHandler)
	s, err := New(o)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func parsePage(t *testing.T, src string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return doc
}

func rows(root *html.Node) *goquery.Selection {
	return goquery.NewDocumentFromNode(root).Find(ResultsSelector + " ." + results.RowClass)
}

func hintText(root *html.Node) string {
	return goquery.NewDocumentFromNode(root).Find(HintSelector).Text()
}

// ============================================================
// Tests for New
// ============================================================

func TestNew_InvalidOptions(t *testing.T) {
	if _, err := New(Options{ResultLimit: -1}); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("expected ErrInvalidOptions, got %v", err)
	}
	idx := index.NewInMemoryIndex()
	if _, err := New(Options{Index: idx, Searcher: stubSearcher{}}); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("expected ErrInvalidOptions, got %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	s := newTestSession(t)
	if s.Index() == nil || s.Engine() == nil || s.Presenter() == nil || s.Store() == nil {
		t.Fatal("expected all components to be initialized")
	}
	if s.Gate().Status() != readiness.Pending {
		t.Errorf("expected a pending gate, got %v", s.Gate().Status())
	}
}

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, query.Expression, int, []index.PageRecord) ([]index.SearchHit, error) {
	return nil, nil
}

// ============================================================
// Tests for loading and querying
// ============================================================

func TestSession_QueryAfterLoad(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	if err := s.Load(ctx, staticSource(testRecords())); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	res, err := s.Query(ctx, "bgp")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(res) != 1 || res[0].Record.URI != "/routing/" {
		t.Fatalf("unexpected results %+v", res)
	}

	res, err = s.Query(ctx, "   ")
	if err != nil || res != nil {
		t.Errorf("empty term should yield nothing, got %v %v", res, err)
	}
}

func TestSession_QueryWaitsForReadiness(t *testing.T) {
	s := newTestSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan []results.Result, 1)
	go func() {
		res, err := s.Query(ctx, "fox")
		if err != nil {
			t.Errorf("Query failed: %v", err)
		}
		done <- res
	}()

	time.Sleep(10 * time.Millisecond)
	if err := s.Reload(testRecords()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	select {
	case res := <-done:
		if len(res) != 1 || res[0].Record.Title != "Fox Guide" {
			t.Errorf("unexpected results %+v", res)
		}
	case <-ctx.Done():
		t.Fatal("Query did not return after the index became ready")
	}
}

func TestSession_StartLoadsInBackground(t *testing.T) {
	s := newTestSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.Start(ctx, staticSource(testRecords()))
	if err := s.Gate().Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if s.Index().Len() != 2 {
		t.Errorf("expected 2 records, got %d", s.Index().Len())
	}
}

func TestSession_StartFailsStalledLoadAfterMaxAttempts(t *testing.T) {
	s := newTestSession(t, Options{
		Readiness: readiness.Options{PollInterval: 5 * time.Millisecond, MaxAttempts: 3},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	release := make(chan struct{})
	defer close(release)
	abandoned := make(chan struct{})
	stalled := func(ctx context.Context) ([]index.PageRecord, error) {
		select {
		case <-release:
			return testRecords(), nil
		case <-ctx.Done():
			close(abandoned)
			return nil, ctx.Err()
		}
	}

	s.Start(ctx, stalled)
	err := s.Gate().Wait(ctx)
	if !errors.Is(err, readiness.ErrFailed) || !errors.Is(err, readiness.ErrUnavailable) {
		t.Fatalf("expected ErrFailed wrapping ErrUnavailable, got %v", err)
	}
	if s.Gate().Status() != readiness.Failed {
		t.Errorf("expected Failed, got %v", s.Gate().Status())
	}

	select {
	case <-abandoned:
	case <-ctx.Done():
		t.Fatal("stalled load was not abandoned")
	}
	if _, err := s.Query(ctx, "fox"); !errors.Is(err, readiness.ErrUnavailable) {
		t.Errorf("expected query to report ErrUnavailable, got %v", err)
	}
}

func TestSession_LoadFailureLeavesSearchInert(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	cause := errors.New("payload truncated")

	err := s.Load(ctx, func(context.Context) ([]index.PageRecord, error) { return nil, cause })
	if !errors.Is(err, cause) {
		t.Fatalf("expected load error wrapping the cause, got %v", err)
	}
	if s.Gate().Status() != readiness.Failed {
		t.Errorf("expected Failed, got %v", s.Gate().Status())
	}
	if _, err := s.Query(ctx, "fox"); !errors.Is(err, readiness.ErrFailed) {
		t.Errorf("expected ErrFailed, got %v", err)
	}

	// highlighting keeps working without the index
	root := parsePage(t, resultsPageHTML)
	page := s.Attach(PageOptions{Root: root})
	page.Input(ctx, "fox")
	if goquery.NewDocumentFromNode(root).Find("mark.search").Length() != 1 {
		t.Error("expected the term to be marked")
	}
	if rows(root).Length() != 0 {
		t.Error("no results expected without an index")
	}
}

func TestSession_LoadNilSource(t *testing.T) {
	s := newTestSession(t)
	if err := s.Load(context.Background(), nil); !errors.Is(err, index.ErrEmptySource) {
		t.Errorf("expected ErrEmptySource, got %v", err)
	}
}

// ============================================================
// Tests for attached pages
// ============================================================

func TestPage_InputRendersResultsAndHint(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	if err := s.Reload(testRecords()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	root := parsePage(t, resultsPageHTML)
	page := s.Attach(PageOptions{Root: root, History: navstate.NewMemoryHistory("https://example.com/search/")})

	page.Input(ctx, "fox")
	if rows(root).Length() != 1 {
		t.Fatalf("expected 1 row, got %d", rows(root).Length())
	}
	if got := hintText(root); got != `1 results found for "fox"` {
		t.Errorf("unexpected hint %q", got)
	}

	page.Input(ctx, "zebra")
	if rows(root).Length() != 0 {
		t.Errorf("expected no rows, got %d", rows(root).Length())
	}
	if got := hintText(root); got != `No results found for "zebra"` {
		t.Errorf("unexpected hint %q", got)
	}

	page.Clear(ctx)
	if hintText(root) != "" || rows(root).Length() != 0 {
		t.Error("clear should remove rows and hint")
	}
}

func TestPage_InputBeforeReadyIsReplayed(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	root := parsePage(t, resultsPageHTML)
	page := s.Attach(PageOptions{Root: root, History: navstate.NewMemoryHistory("https://example.com/search/")})

	page.Input(ctx, "bgp")
	page.Input(ctx, "fox")
	if rows(root).Length() != 0 {
		t.Fatal("results rendered before the index was ready")
	}
	if goquery.NewDocumentFromNode(root).Find("mark.search").Length() != 1 {
		t.Error("marking must not wait for the index")
	}

	if err := s.Reload(testRecords()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	r := rows(root)
	if r.Length() != 1 {
		t.Fatalf("expected the latest term to be replayed, got %d rows", r.Length())
	}
	if term, _ := r.Attr("data-term"); term != "fox" {
		t.Errorf("replayed %q, want fox", term)
	}
}

func TestPage_ResultsPagePushesHistory(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	if err := s.Reload(testRecords()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	search := navstate.NewMemoryHistory("https://example.com/search/")
	page := s.Attach(PageOptions{Root: parsePage(t, resultsPageHTML), History: search})
	page.Input(ctx, "fox")
	if search.Len() != 2 {
		t.Errorf("results page should push, len=%d", search.Len())
	}

	content := navstate.NewMemoryHistory("https://example.com/fox/")
	page = s.Attach(PageOptions{Root: parsePage(t, contentPageHTML), History: content})
	page.Input(ctx, "fox")
	if content.Len() != 1 {
		t.Errorf("content page must not push, len=%d", content.Len())
	}
}

func TestPage_BackReplaysEarlierSearch(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	if err := s.Reload(testRecords()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	root := parsePage(t, resultsPageHTML)
	history := navstate.NewMemoryHistory("https://example.com/search/")
	page := s.Attach(PageOptions{Root: root, History: history})

	page.Input(ctx, "fox")
	page.Input(ctx, "bgp")
	state, ok := history.Back()
	if !ok {
		t.Fatal("Back failed")
	}
	page.PopState(ctx, state)

	if page.Term() != "fox" {
		t.Errorf("expected fox, got %q", page.Term())
	}
	if title := rows(root).Find(".title").Text(); title != "» Fox Guide" {
		t.Errorf("unexpected result %q", title)
	}
}

func TestPage_LoadRestoresStoredTerm(t *testing.T) {
	store := storage.NewMemory()
	s := newTestSession(t, Options{Store: store})
	ctx := context.Background()
	if err := store.Set(ctx, storage.SearchValueKey("https://example.com"), "fox"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Reload(testRecords()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	root := parsePage(t, contentPageHTML)
	viewport := &navstate.MemoryViewport{}
	page := s.Attach(PageOptions{Root: root, History: navstate.NewMemoryHistory("https://example.com/fox/"), Viewport: viewport})
	page.Load(ctx)

	if page.State() != navstate.Active {
		t.Errorf("expected Active, got %v", page.State())
	}
	if viewport.Revealed() == nil {
		t.Error("expected the first mark to be scrolled into view")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, _, err := store.Get(ctx, "k"); err != nil {
		t.Errorf("a store passed in must stay open: %v", err)
	}
}

func TestPage_ReloadReRendersResults(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	if err := s.Reload(testRecords()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	root := parsePage(t, resultsPageHTML)
	page := s.Attach(PageOptions{Root: root, History: navstate.NewMemoryHistory("https://example.com/search/")})
	page.Input(ctx, "fox")

	more := append(testRecords(), index.PageRecord{URI: "/foxes/", Title: "Foxes", Content: "Every fox has a den"})
	if err := s.Reload(more); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if rows(root).Length() != 2 {
		t.Errorf("expected results to be re-rendered with 2 rows, got %d", rows(root).Length())
	}
}

func TestPage_Select(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()
	if err := s.Reload(testRecords()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	root := parsePage(t, resultsPageHTML)
	var visited string
	page := s.Attach(PageOptions{
		Root:      root,
		History:   navstate.NewMemoryHistory("https://example.com/search/"),
		Navigator: results.NavigatorFunc(func(uri string) { visited = uri }),
	})
	page.Input(ctx, "bgp")

	title := rows(root).Find(".title").Get(0)
	if !page.Select(title) {
		t.Fatal("Select returned false for a node inside a row")
	}
	if visited != "/routing/" {
		t.Errorf("navigated to %q", visited)
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	s := newTestSession(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestWatch_ReloadsAndRerenders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	initial := `[{"uri":"/fox/","title":"Fox Guide","content":"The quick brown fox"}]`
	if err := os.WriteFile(path, []byte(initial), 0o644); err != nil {
		t.Fatal(err)
	}

	s := newTestSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Load(ctx, index.FileSource(path)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	root := parsePage(t, resultsPageHTML)
	page := s.Attach(PageOptions{Root: root, History: navstate.NewMemoryHistory("https://example.com/search/")})
	page.Input(ctx, "fox")
	if n := rows(root).Length(); n != 1 {
		t.Fatalf("expected 1 row before reload, got %d", n)
	}

	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, path) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	updated := `[{"uri":"/fox/","title":"Fox Guide","content":"The quick brown fox"},{"uri":"/foxes/","title":"Foxes","content":"Red fox"}]`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		s.domMu.Lock()
		n := rows(root).Length()
		s.domMu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 rows after reload, got %d", n)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
