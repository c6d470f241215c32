package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rafaelmq/docquery-back/internal/domain"
	"github.com/rafaelmq/docquery-back/internal/repository"
)

func TestEnqueueRejectsUnknownJobType(t *testing.T) {
	svc := NewJobsService(repository.NewMemoryJobsRepository(), JobsConfig{})

	_, err := svc.Enqueue(context.Background(), EnqueueInput{Type: "mine-bitcoin"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestEnqueueAppliesDefaults(t *testing.T) {
	svc := NewJobsService(repository.NewMemoryJobsRepository(), JobsConfig{})

	job, err := svc.Enqueue(context.Background(), EnqueueInput{
		Type:     domain.JobTypeIngestDocument,
		Metadata: json.RawMessage(`{"document_id":"doc-1"}`),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if job.ID == "" || job.TraceID == "" {
		t.Fatalf("expected generated identifiers, got %+v", job)
	}
	if job.Status != domain.JobStatusQueued {
		t.Fatalf("expected queued, got %s", job.Status)
	}
	if job.MaxAttempts != DefaultMaxAttempts {
		t.Fatalf("expected default max attempts, got %d", job.MaxAttempts)
	}
	if job.QueueName != DefaultQueueName {
		t.Fatalf("expected default queue, got %q", job.QueueName)
	}
}

func TestEnqueueUsesConfiguredDefaults(t *testing.T) {
	svc := NewJobsService(repository.NewMemoryJobsRepository(), JobsConfig{
		MaxAttempts: 5,
		QueueName:   "bulk",
	})

	job, err := svc.Enqueue(context.Background(), EnqueueInput{Type: domain.JobTypeIngestDocument})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if job.MaxAttempts != 5 || job.QueueName != "bulk" {
		t.Fatalf("expected configured defaults, got attempts=%d queue=%q", job.MaxAttempts, job.QueueName)
	}
}

func TestGetStatusStripsBulkContentFromMetadata(t *testing.T) {
	repo := repository.NewMemoryJobsRepository()
	svc := NewJobsService(repo, JobsConfig{})

	job, err := svc.Enqueue(context.Background(), EnqueueInput{
		Type: domain.JobTypeIngestDocument,
		Metadata: json.RawMessage(
			`{"document_id":"doc-1","filename":"contract.pdf","content":"the entire extracted document text"}`),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	view, err := svc.GetStatus(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}

	metadata := string(view.Metadata)
	if strings.Contains(metadata, "entire extracted document text") {
		t.Fatalf("bulk content leaked into status view: %s", metadata)
	}
	if !strings.Contains(metadata, "contract.pdf") {
		t.Fatalf("expected descriptive fields preserved: %s", metadata)
	}
	if len(view.Events) == 0 {
		t.Fatalf("expected event trail in status view")
	}
	if view.Events[0].EventType != domain.EventQueued {
		t.Fatalf("expected queued event first, got %s", view.Events[0].EventType)
	}
}

func TestGetStatusRedactsPIIInMetadata(t *testing.T) {
	repo := repository.NewMemoryJobsRepository()
	svc := NewJobsService(repo, JobsConfig{})

	job, err := svc.Enqueue(context.Background(), EnqueueInput{
		Type:     domain.JobTypeIngestDocument,
		Metadata: json.RawMessage(`{"document_id":"doc-1","uploader":"person@example.com"}`),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	view, err := svc.GetStatus(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if strings.Contains(string(view.Metadata), "person@example.com") {
		t.Fatalf("email leaked into status view: %s", view.Metadata)
	}
}

func TestGetStatusUnknownJob(t *testing.T) {
	svc := NewJobsService(repository.NewMemoryJobsRepository(), JobsConfig{})
	if _, err := svc.GetStatus(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
