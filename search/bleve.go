package search

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/jonwraymond/sitesearch/index"
	"github.com/jonwraymond/sitesearch/query"
)

// Field names of the indexed page documents.
const (
	FieldTitle   = "title"
	FieldTags    = "tags"
	FieldContent = "content"
)

const analyzerName = "sitesearch"

// maxFuzziness is the largest edit distance the fuzzy searcher accepts.
const maxFuzziness = 2

// ErrClosed is returned by Search after Close.
var ErrClosed = errors.New("searcher closed")

// BleveConfig configures field boosts and safety limits.
type BleveConfig struct {
	// TitleBoost multiplies clause boosts on the title field (default: 15).
	TitleBoost float64
	// TagsBoost multiplies clause boosts on the tags field (default: 10).
	TagsBoost float64
	// ContentBoost multiplies clause boosts on the content field (default: 5).
	ContentBoost float64

	// MaxDocs limits the number of records indexed (0 = unlimited).
	MaxDocs int
	// MaxContentLen truncates page content before indexing (0 = unlimited).
	MaxContentLen int
}

func (c BleveConfig) withDefaults() BleveConfig {
	if c.TitleBoost <= 0 {
		c.TitleBoost = 15
	}
	if c.TagsBoost <= 0 {
		c.TagsBoost = 10
	}
	if c.ContentBoost <= 0 {
		c.ContentBoost = 5
	}
	return c
}

// BleveSearcher implements index.Searcher on an in-memory bleve index.
type BleveSearcher struct {
	cfg BleveConfig

	mu          sync.RWMutex
	index       bleve.Index
	fingerprint string
	closed      bool
}

// NewBleveSearcher creates a searcher. The bleve index is built lazily on
// the first search and rebuilt whenever the record set changes.
func NewBleveSearcher(cfg BleveConfig) *BleveSearcher {
	return &BleveSearcher{cfg: cfg.withDefaults()}
}

// Search ranks records against expr. Hits are ordered by score descending,
// then by record id ascending.
func (s *BleveSearcher) Search(ctx context.Context, expr query.Expression, limit int, records []index.PageRecord) ([]index.SearchHit, error) {
	if expr.Empty() || len(records) == 0 {
		return nil, nil
	}

	if s.cfg.MaxDocs > 0 && len(records) > s.cfg.MaxDocs {
		records = records[:s.cfg.MaxDocs]
	}

	size := limit
	if size <= 0 || size > len(records) {
		size = len(records)
	}

	req := bleve.NewSearchRequestOptions(s.buildQuery(expr), size, 0, false)
	req.IncludeLocations = true
	req.SortBy([]string{"-_score", "_id"})

	res, err := s.run(ctx, req, records)
	if err != nil {
		return nil, err
	}

	hits := make([]index.SearchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := strconv.Atoi(h.ID)
		if err != nil {
			continue
		}
		hit := index.SearchHit{RecordID: id, Score: h.Score}
		for field, terms := range h.Locations {
			hit.MatchedFields = append(hit.MatchedFields, field)
			for term := range terms {
				if !slices.Contains(hit.MatchedTerms, term) {
					hit.MatchedTerms = append(hit.MatchedTerms, term)
				}
			}
		}
		slices.Sort(hit.MatchedFields)
		slices.Sort(hit.MatchedTerms)
		hits = append(hits, hit)
	}
	return hits, nil
}

// run executes req against the index built for records. A concurrent
// rebuild for a different record set makes it rebuild and retry.
func (s *BleveSearcher) run(ctx context.Context, req *bleve.SearchRequest, records []index.PageRecord) (*bleve.SearchResult, error) {
	fp := computeFingerprint(records)
	for {
		if err := s.ensureIndex(fp, records); err != nil {
			return nil, err
		}

		s.mu.RLock()
		if s.closed {
			s.mu.RUnlock()
			return nil, ErrClosed
		}
		if s.fingerprint != fp {
			s.mu.RUnlock()
			continue
		}
		res, err := s.index.SearchInContext(ctx, req)
		s.mu.RUnlock()
		if err != nil {
			return nil, fmt.Errorf("bleve search: %w", err)
		}
		return res, nil
	}
}

// Close releases the bleve index. Search returns ErrClosed afterwards.
func (s *BleveSearcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	s.fingerprint = ""
	return err
}

func (s *BleveSearcher) ensureIndex(fp string, records []index.PageRecord) error {
	s.mu.RLock()
	closed, current := s.closed, s.index != nil && s.fingerprint == fp
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if current {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	// Another goroutine may have rebuilt while we waited.
	if s.index != nil && s.fingerprint == fp {
		return nil
	}

	idx, err := s.buildIndex(records)
	if err != nil {
		return err
	}
	if s.index != nil {
		_ = s.index.Close()
	}
	s.index = idx
	s.fingerprint = fp
	return nil
}

func (s *BleveSearcher) buildIndex(records []index.PageRecord) (bleve.Index, error) {
	im, err := newIndexMapping()
	if err != nil {
		return nil, err
	}
	idx, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("creating bleve index: %w", err)
	}

	batch := idx.NewBatch()
	for _, r := range records {
		content := r.Content
		if s.cfg.MaxContentLen > 0 {
			content = truncateRunes(content, s.cfg.MaxContentLen)
		}
		doc := map[string]any{
			FieldTitle:   r.Title,
			FieldTags:    r.Tags,
			FieldContent: content,
		}
		if err := batch.Index(docID(r.ID), doc); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("indexing record %d: %w", r.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("writing bleve batch: %w", err)
	}
	return idx, nil
}

// newIndexMapping analyzes every field with the same unicode tokenizer and
// lowercase filter the query transformer uses, without stemming.
func newIndexMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(analyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("registering analyzer: %w", err)
	}
	im.DefaultAnalyzer = analyzerName

	doc := bleve.NewDocumentMapping()
	for _, field := range []string{FieldTitle, FieldTags, FieldContent} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = analyzerName
		fm.IncludeTermVectors = true
		doc.AddFieldMappingsAt(field, fm)
	}
	im.DefaultMapping = doc
	return im, nil
}

// buildQuery ORs every clause across all boosted fields.
func (s *BleveSearcher) buildQuery(expr query.Expression) blevequery.Query {
	fields := []struct {
		name  string
		boost float64
	}{
		{FieldTitle, s.cfg.TitleBoost},
		{FieldTags, s.cfg.TagsBoost},
		{FieldContent, s.cfg.ContentBoost},
	}

	disjuncts := make([]blevequery.Query, 0, len(expr.Clauses)*len(fields))
	for _, c := range expr.Clauses {
		for _, f := range fields {
			disjuncts = append(disjuncts, clauseQuery(c, f.name, c.Boost*f.boost))
		}
	}
	return bleve.NewDisjunctionQuery(disjuncts...)
}

func clauseQuery(c query.Clause, field string, boost float64) blevequery.Query {
	switch c.Kind {
	case query.KindPrefix:
		q := bleve.NewPrefixQuery(c.Term)
		q.SetField(field)
		q.SetBoost(boost)
		return q
	case query.KindSuffix:
		q := bleve.NewWildcardQuery("*" + c.Term)
		q.SetField(field)
		q.SetBoost(boost)
		return q
	case query.KindFuzzy:
		if c.Edits > 0 {
			q := bleve.NewFuzzyQuery(c.Term)
			q.SetFuzziness(min(c.Edits, maxFuzziness))
			q.SetField(field)
			q.SetBoost(boost)
			return q
		}
	}
	q := bleve.NewTermQuery(c.Term)
	q.SetField(field)
	q.SetBoost(boost)
	return q
}

// docID zero-pads record ids so bleve's lexical _id sort matches id order.
func docID(id int) string {
	return fmt.Sprintf("%010d", id)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
