package testutils

import (
	"context"

	"github.com/papercomputeco/spool/pkg/vector"
)

// MockDriver is a test vector driver. It records what callers hand it and
// returns whatever results the test planted, so api and cmd tests can run
// without a real backend.
type MockDriver struct {
	// Inserted accumulates every record passed to Insert.
	Inserted []vector.Record

	// SearchResults is returned by Search, truncated to the requested limit.
	SearchResults []vector.SearchResult

	// ListResults is returned by List, truncated to the requested limit.
	ListResults []vector.SearchResult

	// GetResult is returned by Get when set; when nil Get reports
	// vector.ErrNotFound.
	GetResult *vector.SearchResult

	// Collections is returned by ListCollections.
	Collections []string

	// Info is returned by CollectionInfo. A nil Info yields an empty struct.
	Info *vector.CollectionInfo

	// Err, when set, is returned by every operation.
	Err error

	EnsureCalls           int
	DeleteCollectionCalls int
	ResetCalls            int
	Closed                bool

	UpdatedIDs []string
	DeletedIDs []string

	LastQuery   string
	LastVector  []float32
	LastLimit   int
	LastFilters map[string]any
}

func NewMockDriver() *MockDriver {
	return &MockDriver{}
}

func (m *MockDriver) EnsureCollection(_ context.Context) error {
	if m.Err != nil {
		return m.Err
	}
	m.EnsureCalls++
	return nil
}

func (m *MockDriver) Insert(_ context.Context, vectors [][]float32, payloads []map[string]any, ids []string) error {
	if m.Err != nil {
		return m.Err
	}
	records, err := vector.ZipRecords(vectors, payloads, ids)
	if err != nil {
		return err
	}
	m.Inserted = append(m.Inserted, records...)
	return nil
}

func (m *MockDriver) Search(_ context.Context, query string, vec []float32, limit int, filters map[string]any) ([]vector.SearchResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.LastQuery = query
	m.LastVector = vec
	m.LastLimit = limit
	m.LastFilters = filters
	if limit > 0 && len(m.SearchResults) > limit {
		return m.SearchResults[:limit], nil
	}
	return m.SearchResults, nil
}

func (m *MockDriver) Update(_ context.Context, id string, _ []float32, _ map[string]any) error {
	if m.Err != nil {
		return m.Err
	}
	m.UpdatedIDs = append(m.UpdatedIDs, id)
	return nil
}

func (m *MockDriver) Get(_ context.Context, id string) (*vector.SearchResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.GetResult == nil {
		return nil, vector.ErrNotFound
	}
	result := *m.GetResult
	result.ID = id
	return &result, nil
}

func (m *MockDriver) Delete(_ context.Context, id string) error {
	if m.Err != nil {
		return m.Err
	}
	m.DeletedIDs = append(m.DeletedIDs, id)
	return nil
}

func (m *MockDriver) List(_ context.Context, filters map[string]any, limit int) ([]vector.SearchResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.LastFilters = filters
	m.LastLimit = limit
	if limit > 0 && len(m.ListResults) > limit {
		return m.ListResults[:limit], nil
	}
	return m.ListResults, nil
}

func (m *MockDriver) ListCollections(_ context.Context) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Collections, nil
}

func (m *MockDriver) DeleteCollection(_ context.Context) error {
	if m.Err != nil {
		return m.Err
	}
	m.DeleteCollectionCalls++
	return nil
}

func (m *MockDriver) CollectionInfo(_ context.Context) (*vector.CollectionInfo, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Info == nil {
		return &vector.CollectionInfo{}, nil
	}
	return m.Info, nil
}

func (m *MockDriver) Reset(_ context.Context) error {
	if m.Err != nil {
		return m.Err
	}
	m.ResetCalls++
	return nil
}

func (m *MockDriver) Close() error {
	m.Closed = true
	return nil
}

var _ vector.Driver = (*MockDriver)(nil)
