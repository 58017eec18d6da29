package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/markdave123-py/docuquery/internal/core"
	"github.com/markdave123-py/docuquery/internal/models"
)

// MockObjectClient is a test double for core.ObjectClient.
type MockObjectClient struct {
	// DownloadFunc is called by Download if set.
	DownloadFunc func(ctx context.Context, key string) (*core.LocalFile, error)

	mu       sync.Mutex
	keys     []string
	released int
}

func NewMockObjectClient() *MockObjectClient {
	return &MockObjectClient{}
}

// Download records the key and, by default, returns a file at "/mock/<key>"
// whose release is counted.
func (m *MockObjectClient) Download(ctx context.Context, key string) (*core.LocalFile, error) {
	m.mu.Lock()
	m.keys = append(m.keys, key)
	m.mu.Unlock()

	if m.DownloadFunc != nil {
		return m.DownloadFunc(ctx, key)
	}
	return core.NewLocalFile(key, "/mock/"+key, 0, func() error {
		m.mu.Lock()
		m.released++
		m.mu.Unlock()
		return nil
	}), nil
}

// Keys returns every key passed to Download, in call order.
func (m *MockObjectClient) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.keys...)
}

// Released returns how many default files were closed.
func (m *MockObjectClient) Released() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

// MockParser is a test double for core.DocumentParser.
type MockParser struct {
	// ParseFunc is called by Parse if set.
	ParseFunc func(ctx context.Context, path string) ([]models.RawPage, error)

	// Pages is returned by default.
	Pages []models.RawPage
}

func NewMockParser(pages ...models.RawPage) *MockParser {
	return &MockParser{Pages: pages}
}

func (m *MockParser) Parse(ctx context.Context, path string) ([]models.RawPage, error) {
	if m.ParseFunc != nil {
		return m.ParseFunc(ctx, path)
	}
	return m.Pages, nil
}

// MockIndex is an in-memory core.VectorIndex.
type MockIndex struct {
	// UpsertFunc is called by Upsert if set; records are not stored then.
	UpsertFunc func(ctx context.Context, namespace string, records []models.EmbeddedRecord) (int, error)

	mu      sync.Mutex
	records map[string]map[string]models.EmbeddedRecord
	batches []int
}

func NewMockIndex() *MockIndex {
	return &MockIndex{records: make(map[string]map[string]models.EmbeddedRecord)}
}

func (m *MockIndex) Upsert(ctx context.Context, namespace string, records []models.EmbeddedRecord) (int, error) {
	m.mu.Lock()
	m.batches = append(m.batches, len(records))
	m.mu.Unlock()

	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, namespace, records)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.records[namespace]
	if !ok {
		ns = make(map[string]models.EmbeddedRecord)
		m.records[namespace] = ns
	}
	for _, r := range records {
		ns[r.ID] = r
	}
	return len(records), nil
}

// Count returns the number of distinct records stored in namespace.
func (m *MockIndex) Count(namespace string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records[namespace])
}

// Get returns a stored record.
func (m *MockIndex) Get(namespace, id string) (models.EmbeddedRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[namespace][id]
	return r, ok
}

// IDs returns the sorted ids stored in namespace.
func (m *MockIndex) IDs(namespace string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.records[namespace]))
	for id := range m.records[namespace] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Batches returns the size of every Upsert call, in call order.
func (m *MockIndex) Batches() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.batches...)
}
