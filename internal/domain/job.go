package domain

import (
	"encoding/json"
	"time"
)

type JobType string

const (
	JobTypeIngestDocument     JobType = "ingest-document"
	JobTypeGenerateEmbeddings JobType = "generate-embeddings"
)

// KnownJobType reports whether the given type is registered.
func KnownJobType(jobType JobType) bool {
	switch jobType {
	case JobTypeIngestDocument, JobTypeGenerateEmbeddings:
		return true
	default:
		return false
	}
}

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are permitted from the status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition encodes the legal job lifecycle:
// queued -> processing -> {queued | completed | failed}.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusQueued:
		return to == JobStatusProcessing
	case JobStatusProcessing:
		return to == JobStatusQueued || to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// Job is the durable unit of deferred work. Result, Error and Metadata are
// opaque to the store; their shape varies by job type.
type Job struct {
	ID           string
	Type         JobType
	Status       JobStatus
	QueueName    string
	Progress     int
	AttemptCount int
	MaxAttempts  int
	Result       json.RawMessage
	Error        json.RawMessage
	Metadata     json.RawMessage
	TraceID      string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	UpdatedAt    time.Time
}

type EventType string

const (
	EventQueued           EventType = "queued"
	EventStarted          EventType = "started"
	EventProgress         EventType = "progress"
	EventRetryScheduled   EventType = "retry-scheduled"
	EventDispatchReleased EventType = "dispatch-released"
	EventCompleted        EventType = "completed"
	EventFailed           EventType = "failed"
)

// JobEvent is an append-only audit record owned by a single job.
// Events are never mutated or deleted and are totally ordered by CreatedAt
// (ties broken by insertion sequence).
type JobEvent struct {
	ID        string
	JobID     string
	EventType EventType
	Message   string
	Metadata  json.RawMessage
	CreatedAt time.Time
}
