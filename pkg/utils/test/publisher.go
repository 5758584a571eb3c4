package testutils

import (
	"context"

	"github.com/papercomputeco/spool/pkg/eventstream"
)

// MockPublisher is a test publisher that collects published events.
type MockPublisher struct {
	Events []*eventstream.RecordMutationEvent

	// Err, when set, is returned by PublishMutation.
	Err error

	Closed bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishMutation(_ context.Context, event *eventstream.RecordMutationEvent) error {
	if m.Err != nil {
		return m.Err
	}
	if event == nil {
		return eventstream.ErrNilMutationEvent
	}
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	m.Closed = true
	return nil
}

var _ eventstream.Publisher = (*MockPublisher)(nil)
