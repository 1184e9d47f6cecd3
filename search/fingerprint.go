package search

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"github.com/jonwraymond/sitesearch/index"
)

// computeFingerprint generates a stable hash of the record slice.
// The fingerprint changes whenever an indexed field changes, so the bleve
// index is only rebuilt when the record set actually differs.
func computeFingerprint(records []index.PageRecord) string {
	h := sha256.New()

	for _, r := range records {
		h.Write([]byte(strconv.Itoa(r.ID)))
		h.Write([]byte{0}) // separator

		h.Write([]byte(r.Title))
		h.Write([]byte{0})
		h.Write([]byte(r.Content))
		h.Write([]byte{0})

		// Tags are a set for matching purposes
		sortedTags := slices.Clone(r.Tags)
		slices.Sort(sortedTags)
		h.Write([]byte(strings.Join(sortedTags, "\x01")))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}
