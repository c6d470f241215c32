package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/rafaelmq/docquery-back/internal/domain"
	"github.com/rafaelmq/docquery-back/internal/repository"
	"github.com/rafaelmq/docquery-back/internal/retrieval"
)

// Indexer is the vector index side of ingestion.
type Indexer interface {
	IndexChunks(ctx context.Context, chunks []retrieval.DocumentChunk) error
}

// DocumentPayload is the metadata shape ingest jobs carry. Content
// arrives already extracted; parsing and OCR happen upstream.
type DocumentPayload struct {
	DocumentID string   `json:"document_id"`
	Filename   string   `json:"filename"`
	Content    string   `json:"content,omitempty"`
	Chunks     []string `json:"chunks,omitempty"`
}

type Config struct {
	ChunkSize    int
	ChunkOverlap int

	// RetryableByType decides whether a mid-processing failure re-enqueues
	// the job or fails it outright, per job type. Types absent from the
	// map default to retryable.
	RetryableByType map[domain.JobType]bool
}

// Processor executes claimed jobs: it is the single writer for job
// status once a claim lands, stepping progress and reporting the
// terminal outcome through the repository contract.
type Processor struct {
	repo    repository.JobsRepository
	indexer Indexer
	config  Config
	logger  *log.Logger
}

func NewProcessor(repo repository.JobsRepository, indexer Indexer, config Config, logger *log.Logger) *Processor {
	if config.ChunkSize <= 0 {
		config.ChunkSize = 200
	}
	return &Processor{
		repo:    repo,
		indexer: indexer,
		config:  config,
		logger:  logger,
	}
}

// Process runs a job that a dispatcher already claimed. Invalid or
// unparseable payloads fail outright; infrastructure errors follow the
// per-type retry policy.
func (p *Processor) Process(ctx context.Context, jobID string) error {
	job, err := p.repo.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Status != domain.JobStatusProcessing {
		return fmt.Errorf("job %s is %s, expected processing: %w", jobID, job.Status, repository.ErrInvalidTransition)
	}

	_ = p.repo.UpdateProgress(ctx, jobID, 10, "payload accepted")

	var payload DocumentPayload
	if err := json.Unmarshal(job.Metadata, &payload); err != nil {
		return p.fail(ctx, job, fmt.Errorf("decode document payload: %w", err), false)
	}
	if strings.TrimSpace(payload.DocumentID) == "" {
		return p.fail(ctx, job, errors.New("document_id is required"), false)
	}

	var chunks []string
	switch job.Type {
	case domain.JobTypeIngestDocument:
		chunks = SplitWords(payload.Content, p.config.ChunkSize, p.config.ChunkOverlap)
	case domain.JobTypeGenerateEmbeddings:
		chunks = payload.Chunks
	default:
		return p.fail(ctx, job, fmt.Errorf("unsupported job type: %s", job.Type), false)
	}
	if len(chunks) == 0 {
		return p.fail(ctx, job, errors.New("document produced no chunks"), false)
	}
	_ = p.repo.UpdateProgress(ctx, jobID, 55, fmt.Sprintf("chunked into %d pieces", len(chunks)))

	documentChunks := make([]retrieval.DocumentChunk, 0, len(chunks))
	for _, content := range chunks {
		documentChunks = append(documentChunks, retrieval.DocumentChunk{
			DocumentID: payload.DocumentID,
			Filename:   payload.Filename,
			Content:    content,
		})
	}
	if err := p.indexer.IndexChunks(ctx, documentChunks); err != nil {
		return p.fail(ctx, job, fmt.Errorf("index chunks: %w", err), p.retryable(job.Type))
	}
	_ = p.repo.UpdateProgress(ctx, jobID, 90, "chunks indexed")

	result, err := json.Marshal(map[string]any{
		"document_id": payload.DocumentID,
		"chunks":      len(chunks),
	})
	if err != nil {
		return p.fail(ctx, job, fmt.Errorf("encode result: %w", err), false)
	}
	if err := p.repo.MarkCompleted(ctx, jobID, result); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	if p.logger != nil {
		p.logger.Printf("job processed job_id=%s type=%s chunks=%d trace_id=%s",
			jobID, job.Type, len(chunks), job.TraceID)
	}
	return nil
}

func (p *Processor) retryable(jobType domain.JobType) bool {
	if p.config.RetryableByType == nil {
		return true
	}
	retryable, configured := p.config.RetryableByType[jobType]
	if !configured {
		return true
	}
	return retryable
}

func (p *Processor) fail(ctx context.Context, job *domain.Job, cause error, retryable bool) error {
	errPayload, _ := json.Marshal(map[string]string{"message": cause.Error()})
	updated, reportErr := p.repo.ReportFailure(ctx, job.ID, errPayload, cause.Error(), retryable)
	if reportErr != nil {
		return fmt.Errorf("report failure for job %s: %v (original: %w)", job.ID, reportErr, cause)
	}
	if p.logger != nil {
		p.logger.Printf("job failed job_id=%s type=%s status=%s retryable=%t err=%v",
			job.ID, job.Type, updated.Status, retryable, cause)
	}
	return cause
}
