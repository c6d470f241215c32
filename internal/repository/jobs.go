package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rafaelmq/docquery-back/internal/domain"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidTransition = errors.New("invalid job state transition")
)

// JobsRepository owns job identity, legal status transitions and the
// append-only event log. All mutation goes through these operations;
// callers never see a partially written record.
type JobsRepository interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	ListEvents(ctx context.Context, jobID string) ([]domain.JobEvent, error)

	// ClaimOldestQueued atomically moves the oldest queued job (FIFO by
	// created_at, insertion order on ties) to processing, incrementing
	// attempt_count and setting started_at on the first claim. Returns
	// (nil, nil) when no job is eligible. Racing callers get at most one
	// winner per job.
	ClaimOldestQueued(ctx context.Context, queueName string) (*domain.Job, error)

	// ReleaseClaim undoes a claim whose dispatch could not be made: the
	// job returns to queued and the attempt consumed by the claim is
	// given back, so failed dispatches never burn job attempts.
	ReleaseClaim(ctx context.Context, jobID, reason string) error

	MarkCompleted(ctx context.Context, jobID string, result json.RawMessage) error
	MarkFailed(ctx context.Context, jobID string, errPayload json.RawMessage, message string) error

	// ReportFailure records a processing failure. Retryable failures with
	// attempts remaining re-enqueue the job; everything else is terminal.
	// Returns the job as stored after the transition.
	ReportFailure(ctx context.Context, jobID string, errPayload json.RawMessage, message string, retryable bool) (*domain.Job, error)

	// UpdateProgress is legal only while processing and never decreases.
	UpdateProgress(ctx context.Context, jobID string, progress int, message string) error
}

// MemoryJobsRepository keeps jobs in memory for tests and local runs.
// The single mutex makes every claim a serialized read-modify-write,
// which is the in-process equivalent of the conditional update the
// Postgres implementation uses.
type MemoryJobsRepository struct {
	mu     sync.Mutex
	jobs   map[string]*domain.Job
	order  []string
	events map[string][]domain.JobEvent
}

func NewMemoryJobsRepository() *MemoryJobsRepository {
	return &MemoryJobsRepository{
		jobs:   make(map[string]*domain.Job),
		events: make(map[string][]domain.JobEvent),
	}
}

func (r *MemoryJobsRepository) CreateJob(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	r.jobs[job.ID] = cloneJob(job)
	r.order = append(r.order, job.ID)
	r.appendEventLocked(job.ID, domain.EventQueued, "job accepted", nil)
	return nil
}

func (r *MemoryJobsRepository) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (r *MemoryJobsRepository) ListEvents(_ context.Context, jobID string) ([]domain.JobEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[jobID]; !ok {
		return nil, ErrNotFound
	}
	events := r.events[jobID]
	result := make([]domain.JobEvent, len(events))
	copy(result, events)
	return result, nil
}

func (r *MemoryJobsRepository) ClaimOldestQueued(_ context.Context, queueName string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, jobID := range r.order {
		job := r.jobs[jobID]
		if job.Status != domain.JobStatusQueued {
			continue
		}
		if queueName != "" && job.QueueName != queueName {
			continue
		}
		if job.AttemptCount >= job.MaxAttempts {
			continue
		}

		now := time.Now().UTC()
		job.Status = domain.JobStatusProcessing
		job.AttemptCount++
		if job.StartedAt == nil {
			started := now
			job.StartedAt = &started
		}
		job.UpdatedAt = now
		r.appendEventLocked(jobID, domain.EventStarted,
			fmt.Sprintf("attempt %d of %d", job.AttemptCount, job.MaxAttempts), nil)
		return cloneJob(job), nil
	}
	return nil, nil
}

func (r *MemoryJobsRepository) ReleaseClaim(_ context.Context, jobID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Status != domain.JobStatusProcessing {
		return ErrInvalidTransition
	}

	job.Status = domain.JobStatusQueued
	if job.AttemptCount > 0 {
		job.AttemptCount--
	}
	job.UpdatedAt = time.Now().UTC()
	r.appendEventLocked(jobID, domain.EventDispatchReleased, reason, nil)
	return nil
}

func (r *MemoryJobsRepository) MarkCompleted(_ context.Context, jobID string, result json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if !domain.CanTransition(job.Status, domain.JobStatusCompleted) {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	job.Status = domain.JobStatusCompleted
	job.Result = append(json.RawMessage(nil), result...)
	job.Error = nil
	job.Progress = 100
	job.CompletedAt = &now
	job.UpdatedAt = now
	r.appendEventLocked(jobID, domain.EventCompleted, "job completed", nil)
	return nil
}

func (r *MemoryJobsRepository) MarkFailed(_ context.Context, jobID string, errPayload json.RawMessage, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.markFailedLocked(jobID, errPayload, message)
	return err
}

func (r *MemoryJobsRepository) markFailedLocked(jobID string, errPayload json.RawMessage, message string) (*domain.Job, error) {
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	if !domain.CanTransition(job.Status, domain.JobStatusFailed) {
		return nil, ErrInvalidTransition
	}

	now := time.Now().UTC()
	job.Status = domain.JobStatusFailed
	job.Error = append(json.RawMessage(nil), errPayload...)
	job.CompletedAt = &now
	job.UpdatedAt = now
	r.appendEventLocked(jobID, domain.EventFailed, message, nil)
	return job, nil
}

func (r *MemoryJobsRepository) ReportFailure(
	_ context.Context,
	jobID string,
	errPayload json.RawMessage,
	message string,
	retryable bool,
) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	if job.Status != domain.JobStatusProcessing {
		return nil, ErrInvalidTransition
	}

	if retryable && job.AttemptCount < job.MaxAttempts {
		job.Status = domain.JobStatusQueued
		job.UpdatedAt = time.Now().UTC()
		r.appendEventLocked(jobID, domain.EventRetryScheduled,
			fmt.Sprintf("%s (attempt %d of %d)", message, job.AttemptCount, job.MaxAttempts), nil)
		return cloneJob(job), nil
	}

	failed, err := r.markFailedLocked(jobID, errPayload, message)
	if err != nil {
		return nil, err
	}
	return cloneJob(failed), nil
}

func (r *MemoryJobsRepository) UpdateProgress(_ context.Context, jobID string, progress int, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Status != domain.JobStatusProcessing {
		return ErrInvalidTransition
	}
	if progress < job.Progress || progress > 100 {
		return ErrInvalidTransition
	}

	job.Progress = progress
	job.UpdatedAt = time.Now().UTC()
	r.appendEventLocked(jobID, domain.EventProgress, message, nil)
	return nil
}

func (r *MemoryJobsRepository) appendEventLocked(jobID string, eventType domain.EventType, message string, metadata json.RawMessage) {
	r.events[jobID] = append(r.events[jobID], domain.JobEvent{
		ID:        uuid.NewString(),
		JobID:     jobID,
		EventType: eventType,
		Message:   message,
		Metadata:  append(json.RawMessage(nil), metadata...),
		CreatedAt: time.Now().UTC(),
	})
}

func cloneJob(job *domain.Job) *domain.Job {
	if job == nil {
		return nil
	}
	clone := *job
	clone.Result = append(json.RawMessage(nil), job.Result...)
	clone.Error = append(json.RawMessage(nil), job.Error...)
	clone.Metadata = append(json.RawMessage(nil), job.Metadata...)
	if job.StartedAt != nil {
		started := *job.StartedAt
		clone.StartedAt = &started
	}
	if job.CompletedAt != nil {
		completed := *job.CompletedAt
		clone.CompletedAt = &completed
	}
	return &clone
}
