// Package index holds the page records of a built site and answers search
// expressions against them.
//
// Records are produced once per site build by an external indexer and
// delivered as a serialized payload. Both delivery formats of the theme are
// understood:
//
//   - a JSON array (index.json), see [DecodeJSON]
//   - a script constant (var relearn_search_index = [...];), see [DecodeScript]
//
// Record ids are the positions of the records in the payload and are stable
// for one build.
//
// # Usage
//
//	records, err := index.LoadFile("public/search/index.js")
//	if err != nil {
//	    return err
//	}
//
//	idx := index.NewInMemoryIndex(index.IndexOptions{
//	    Searcher: search.NewBleveSearcher(search.BleveConfig{}),
//	})
//	if err := idx.Load(records); err != nil {
//	    return err
//	}
//
//	hits, err := idx.Query(ctx, query.Transform("bgp peers"))
//
// # Pluggable Search
//
// The index delegates ranking to a [Searcher]. The search package provides a
// bleve-backed implementation; tests and alternative engines can supply
// their own:
//
//	type MySearcher struct{}
//	func (s *MySearcher) Search(ctx context.Context, expr query.Expression, limit int, records []index.PageRecord) ([]index.SearchHit, error) {
//	    // Custom search implementation
//	}
//
// # Change Notifications
//
// Loading a new record set bumps the index version and notifies listeners,
// which lets a page controller re-run its current query after a rebuild:
//
//	unsub := idx.OnChange(func(event index.ChangeEvent) {
//	    // re-run the active search
//	})
//	defer unsub()
//
// # Watching a Payload
//
// [WatchPayload] reloads a payload file whenever it is rewritten, using
// fsnotify. Editors and static site generators often replace files
// atomically, so rename and remove events re-arm the watch.
package index
