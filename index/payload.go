package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// maxPayloadSize bounds payload reads; real site indexes stay far below it.
const maxPayloadSize = 256 << 20

// DecodeJSON decodes a JSON array of page records. Record ids are assigned
// from array positions.
func DecodeJSON(r io.Reader) ([]PageRecord, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxPayloadSize))
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return decodeRecords(data)
}

// DecodeScript decodes the script flavour of the payload, a JavaScript
// assignment of the record array to a global:
//
//	var relearn_search_index = [ ... ];
func DecodeScript(r io.Reader) ([]PageRecord, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxPayloadSize))
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}

	start := bytes.IndexByte(data, '=')
	if start < 0 {
		return nil, fmt.Errorf("%w: no assignment in script payload", ErrInvalidPayload)
	}
	body := bytes.TrimSpace(data[start+1:])
	body = bytes.TrimSpace(bytes.TrimSuffix(body, []byte(";")))
	return decodeRecords(body)
}

func decodeRecords(data []byte) ([]PageRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}

	var records []PageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	for i := range records {
		records[i].ID = i
	}
	return records, nil
}

// isScriptPayload reports whether name looks like the script flavour.
func isScriptPayload(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".js" || ext == ".mjs"
}

// LoadFile reads a payload from disk. Files ending in .js are decoded as
// script payloads, everything else as JSON.
func LoadFile(path string) ([]PageRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening payload: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if isScriptPayload(path) {
		return DecodeScript(f)
	}
	return DecodeJSON(f)
}

// Fetch downloads a payload over HTTP. A nil client uses http.DefaultClient.
func Fetch(ctx context.Context, client *http.Client, url string) ([]PageRecord, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building payload request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching payload: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching payload: unexpected status %d", resp.StatusCode)
	}

	if isScriptPayload(req.URL.Path) {
		return DecodeScript(resp.Body)
	}
	return DecodeJSON(resp.Body)
}

// Source produces a record set, typically asynchronously at page start.
type Source func(ctx context.Context) ([]PageRecord, error)

// FileSource returns a Source reading path with LoadFile.
func FileSource(path string) Source {
	return func(context.Context) ([]PageRecord, error) {
		return LoadFile(path)
	}
}

// URLSource returns a Source downloading url with Fetch.
func URLSource(client *http.Client, url string) Source {
	return func(ctx context.Context) ([]PageRecord, error) {
		return Fetch(ctx, client, url)
	}
}
