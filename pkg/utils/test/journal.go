package testutils

import (
	"context"
	"time"

	"github.com/papercomputeco/spool/pkg/history"
)

// MockJournal is an in-memory test journal.
type MockJournal struct {
	Entries []history.Entry

	// Err, when set, is returned by every operation.
	Err error

	Closed bool
}

func NewMockJournal() *MockJournal {
	return &MockJournal{}
}

func (m *MockJournal) Append(_ context.Context, collection, recordID string, action history.Action, payload map[string]any) error {
	if m.Err != nil {
		return m.Err
	}
	m.Entries = append(m.Entries, history.Entry{
		ID:         int64(len(m.Entries) + 1),
		Collection: collection,
		RecordID:   recordID,
		Action:     action,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	})
	return nil
}

func (m *MockJournal) ByRecord(_ context.Context, collection, recordID string) ([]history.Entry, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var entries []history.Entry
	for _, entry := range m.Entries {
		if entry.Collection == collection && entry.RecordID == recordID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (m *MockJournal) Recent(_ context.Context, collection string, limit int) ([]history.Entry, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if limit <= 0 {
		limit = history.DefaultRecentLimit
	}
	var entries []history.Entry
	for i := len(m.Entries) - 1; i >= 0 && len(entries) < limit; i-- {
		if collection == "" || m.Entries[i].Collection == collection {
			entries = append(entries, m.Entries[i])
		}
	}
	return entries, nil
}

func (m *MockJournal) Close() error {
	m.Closed = true
	return nil
}

var _ history.Journal = (*MockJournal)(nil)
