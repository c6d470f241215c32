package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rafaelmq/docquery-back/internal/domain"
	"github.com/rafaelmq/docquery-back/internal/policy"
	"github.com/rafaelmq/docquery-back/internal/repository"
)

var ErrValidation = errors.New("invalid request parameters")

const (
	DefaultMaxAttempts = 3
	DefaultQueueName   = "ingest"
)

// Fields of the task input that must never reach polling clients.
var sensitiveMetadataFields = []string{"content", "chunks"}

// JobsConfig carries deployment-level defaults applied when an enqueue
// request leaves the field unset.
type JobsConfig struct {
	MaxAttempts int
	QueueName   string
}

type JobsService struct {
	repo        repository.JobsRepository
	maxAttempts int
	queueName   string
}

func NewJobsService(repo repository.JobsRepository, cfg JobsConfig) *JobsService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.QueueName == "" {
		cfg.QueueName = DefaultQueueName
	}
	return &JobsService{
		repo:        repo,
		maxAttempts: cfg.MaxAttempts,
		queueName:   cfg.QueueName,
	}
}

type EnqueueInput struct {
	Type        domain.JobType
	QueueName   string
	Metadata    json.RawMessage
	MaxAttempts int
	TraceID     string
}

func (s *JobsService) Enqueue(ctx context.Context, input EnqueueInput) (*domain.Job, error) {
	if !domain.KnownJobType(input.Type) {
		return nil, fmt.Errorf("%w: unknown job type %q", ErrValidation, input.Type)
	}
	if input.MaxAttempts < 0 {
		return nil, fmt.Errorf("%w: max_attempts must not be negative", ErrValidation)
	}
	if input.MaxAttempts == 0 {
		input.MaxAttempts = s.maxAttempts
	}
	if input.QueueName == "" {
		input.QueueName = s.queueName
	}
	if input.TraceID == "" {
		input.TraceID = uuid.NewString()
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:           uuid.NewString(),
		Type:         input.Type,
		Status:       domain.JobStatusQueued,
		QueueName:    input.QueueName,
		AttemptCount: 0,
		MaxAttempts:  input.MaxAttempts,
		Metadata:     append(json.RawMessage(nil), input.Metadata...),
		TraceID:      input.TraceID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

func (s *JobsService) EnqueueIngest(ctx context.Context, metadata json.RawMessage, traceID string) (*domain.Job, error) {
	return s.Enqueue(ctx, EnqueueInput{
		Type:     domain.JobTypeIngestDocument,
		Metadata: metadata,
		TraceID:  traceID,
	})
}

// JobStatusView is the polling projection: job fields plus the ordered
// event trail. The original task input never appears here, only the
// result/error/metadata projections.
type JobStatusView struct {
	JobID        string           `json:"job_id"`
	Type         domain.JobType   `json:"job_type"`
	Status       domain.JobStatus `json:"status"`
	QueueName    string           `json:"queue_name"`
	Progress     int              `json:"progress"`
	AttemptCount int              `json:"attempt_count"`
	MaxAttempts  int              `json:"max_attempts"`
	Result       json.RawMessage  `json:"result,omitempty"`
	Error        json.RawMessage  `json:"error,omitempty"`
	Metadata     json.RawMessage  `json:"metadata,omitempty"`
	TraceID      string           `json:"trace_id"`
	CreatedAt    time.Time        `json:"created_at"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Events       []JobEventView   `json:"events"`
}

type JobEventView struct {
	EventType domain.EventType `json:"event_type"`
	Message   string           `json:"message,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

func (s *JobsService) GetStatus(ctx context.Context, jobID string) (*JobStatusView, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.ListEvents(ctx, jobID)
	if err != nil {
		return nil, err
	}

	view := &JobStatusView{
		JobID:        job.ID,
		Type:         job.Type,
		Status:       job.Status,
		QueueName:    job.QueueName,
		Progress:     job.Progress,
		AttemptCount: job.AttemptCount,
		MaxAttempts:  job.MaxAttempts,
		Result:       job.Result,
		Error:        job.Error,
		Metadata:     policy.ProjectMetadata(job.Metadata, sensitiveMetadataFields...),
		TraceID:      job.TraceID,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		UpdatedAt:    job.UpdatedAt,
		Events:       make([]JobEventView, 0, len(events)),
	}
	for _, event := range events {
		view.Events = append(view.Events, JobEventView{
			EventType: event.EventType,
			Message:   event.Message,
			CreatedAt: event.CreatedAt,
		})
	}
	return view, nil
}
