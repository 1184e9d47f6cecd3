package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/jonwraymond/sitesearch/index"
	"github.com/jonwraymond/sitesearch/query"
)

func makeBenchRecords(n int) []index.PageRecord {
	records := make([]index.PageRecord, n)
	for i := range n {
		records[i] = index.PageRecord{
			ID:      i,
			Title:   fmt.Sprintf("Page %d", i),
			Tags:    []string{"benchmark", fmt.Sprintf("tag_%d", i%5)},
			Content: fmt.Sprintf("Content for page %d with various keywords like routing peering sessions", i),
		}
	}
	return records
}

func BenchmarkBleveSearcher_Search_Cached(b *testing.B) {
	s := NewBleveSearcher(BleveConfig{})
	defer func() { _ = s.Close() }()
	records := makeBenchRecords(500)
	expr := query.Transform("peering")
	ctx := context.Background()

	// Build the index once.
	_, _ = s.Search(ctx, expr, 20, records)

	b.ResetTimer()
	for b.Loop() {
		_, _ = s.Search(ctx, expr, 20, records)
	}
}

func BenchmarkBleveSearcher_Search_Fuzzy(b *testing.B) {
	s := NewBleveSearcher(BleveConfig{})
	defer func() { _ = s.Close() }()
	records := makeBenchRecords(500)
	expr := query.Transform("peerring sesions")
	ctx := context.Background()
	_, _ = s.Search(ctx, expr, 20, records)

	b.ResetTimer()
	for b.Loop() {
		_, _ = s.Search(ctx, expr, 20, records)
	}
}

func BenchmarkFingerprint(b *testing.B) {
	records := makeBenchRecords(1000)

	for b.Loop() {
		_ = computeFingerprint(records)
	}
}
