package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownJob is returned by Status for an ID that was never queued or
// whose status has expired.
var ErrUnknownJob = errors.New("unknown job")

// Job handles one message type.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type the job consumes.
	Type() string

	// Handle processes the raw JSON payload. A returned error schedules a retry.
	Handle(ctx context.Context, payload json.RawMessage) error
}

// Enqueuer publishes messages for background jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error)
}

// Tracker is an Enqueuer whose jobs can be polled.
type Tracker interface {
	Enqueuer
	Status(ctx context.Context, id string) (*Status, error)
}

// State is where a job is in its lifecycle.
type State string

const (
	StateQueued   State = "queued"
	StateRunning  State = "running"
	StateRetrying State = "retrying"
	StateDone     State = "done"
	StateDead     State = "dead"
)

// Status is the last known state of one job.
type Status struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	State     State     `json:"state"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Config tunes the workers.
type Config struct {
	Workers    int           // number of workers
	RetryLimit int           // retries before the dead-letter list
	RetryDelay time.Duration // delay before a failed message is retried
	RetryPoll  time.Duration // how often due retries are moved back to the queue
	StatusTTL  time.Duration // how long finished job statuses stay readable
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

// Decode unmarshals a job payload.
func Decode[T any](payload json.RawMessage) (*T, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &out, nil
}
