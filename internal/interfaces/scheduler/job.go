package scheduler

import "context"

// Job is one unit of work run by the worker pool.
type Job interface {
	// Execute runs the job. It must return promptly once ctx is done.
	Execute(ctx context.Context) error

	// UserID identifies whose data the job touches, for logs and spans.
	UserID() string

	Description() string
}
