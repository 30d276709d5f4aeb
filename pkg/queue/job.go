package queue

import "context"

// Job handles every message of one type.
type Job interface {
	Name() string
	Type() string

	// Handle receives the raw JSON payload. A returned error schedules a
	// retry until the retry limit is spent, then the message is dead-lettered.
	Handle(ctx context.Context, payload interface{}) error
}
