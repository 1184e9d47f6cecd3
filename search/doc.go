// Package search provides the bleve-backed ranking implementation for the
// index package.
//
// It exists to:
//   - Keep index free of a full-text engine dependency
//   - Translate fuzzy search expressions into weighted bleve queries
//
// # Usage
//
// The primary type is [BleveSearcher], which implements [index.Searcher]:
//
//	idx := index.NewInMemoryIndex(index.IndexOptions{
//	    Searcher: search.NewBleveSearcher(search.BleveConfig{}),
//	})
//
// # Configuration
//
// [BleveConfig] controls field boosts and safety limits:
//
//	cfg := search.BleveConfig{
//	    TitleBoost:    15,   // default: 15
//	    TagsBoost:     10,   // default: 10
//	    ContentBoost:  5,    // default: 5
//	    MaxDocs:       1000, // 0 = unlimited
//	    MaxContentLen: 5000, // 0 = unlimited
//	}
//
// # Query mapping
//
// Every clause of a [query.Expression] becomes one bleve query per field,
// boosted by clause boost times field boost:
//
//	term^100   -> term query
//	term*^10   -> prefix query
//	*term^10   -> wildcard query
//	term~N^1   -> fuzzy query (N capped at 2; N == 0 is a term query)
//
// All of them are OR-ed in a single disjunction.
//
// # Thread Safety
//
// BleveSearcher is safe for concurrent use. The in-memory bleve index is
// cached by a fingerprint of the record set and only rebuilt when the records
// change.
package search
