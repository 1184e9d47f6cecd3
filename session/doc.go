// Package session is the page controller of site search.
//
// A [Session] owns one instance of every search component: the loaded
// [index.Index] with its bleve searcher, the query transformer, the result
// presenter, the highlight engine, the readiness gate of the index payload
// and the session tier store. It replaces hidden page-wide globals with one
// object that is constructed at startup and handed to whoever needs it.
//
// # Basic Usage
//
//	s, err := session.New(session.Options{AbsBaseURI: "https://example.com/docs"})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	s.Start(ctx, index.FileSource("public/search/index.js"))
//
//	page := s.Attach(session.PageOptions{Root: doc, History: navstate.NewMemoryHistory(url)})
//	page.Load(ctx)
//	page.Input(ctx, "bgp peers")
//
// Input typed before the payload finished loading is not lost: the gate
// replays the latest term once the index is ready. If loading fails the
// page keeps working without search.
//
// [Session.Query] serves callers without a page, such as the CLI and the
// MCP server.
//
// # Thread Safety
//
// Session methods are safe for concurrent use. Events of an attached page
// are serialized with index reloads so the page tree is never mutated
// concurrently.
package session
