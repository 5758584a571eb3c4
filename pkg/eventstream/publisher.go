package eventstream

import "context"

// Publisher publishes record mutation events to an event stream backend.
type Publisher interface {
	PublishMutation(ctx context.Context, event *RecordMutationEvent) error
	Close() error
}
