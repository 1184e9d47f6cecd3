// Package registry serves a site search session over the Model Context
// Protocol.
//
// A Registry holds tools described with toolfoundation/model and answers
// the JSON-RPC methods initialize, ping, tools/list and tools/call.
// RegisterSiteTools adds the two site tools:
//
//   - search_site runs a query through the session and returns the ranked
//     pages with their context snippets.
//   - get_page returns the indexed record of one page by address.
//
// Both wait for the session's search index to load.
//
// Example usage:
//
//	sess, _ := session.New(session.Options{AbsBaseURI: "https://example.com"})
//	sess.Start(ctx, index.FileSource("public/search/index.json"))
//
//	reg := registry.New(registry.Config{
//	    ServerInfo: registry.ServerInfo{Name: "sitesearch", Version: "1.0.0"},
//	    Session:    sess,
//	})
//	if err := reg.RegisterSiteTools(); err != nil {
//	    return err
//	}
//	reg.Start(ctx)
//	defer reg.Stop()
//
//	registry.ServeStdio(ctx, reg)
package registry
