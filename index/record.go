package index

import "slices"

// PageRecord is the searchable representation of one rendered page.
type PageRecord struct {
	// ID is the position of the record in the payload.
	ID          int      `json:"-"`
	URI         string   `json:"uri"`
	Title       string   `json:"title"`
	Tags        []string `json:"tags"`
	Breadcrumb  string   `json:"breadcrumb"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
}

// Clone returns a deep copy of the record.
func (r PageRecord) Clone() PageRecord {
	r.Tags = slices.Clone(r.Tags)
	return r
}

// SearchHit is one ranked result of a query. Hits are ephemeral and only live
// as long as the result rendering that uses them.
type SearchHit struct {
	RecordID int

	// MatchedFields names the record fields that matched (title, tags,
	// content), sorted.
	MatchedFields []string

	// MatchedTerms are the index terms that matched, sorted. These are the
	// words the result presenter looks for when cutting a context snippet.
	MatchedTerms []string

	Score float64
}
