package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rafaelmq/docquery-back/internal/domain"
)

// PostgresJobsRepository persists jobs and their event log in Postgres.
// Claims rely on FOR UPDATE SKIP LOCKED so two dispatchers racing for the
// same queued job produce exactly one winner; the loser sees no eligible
// rows. See migrations/0001_jobs.sql for the schema.
type PostgresJobsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresJobsRepository(ctx context.Context, databaseURL string) (*PostgresJobsRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &PostgresJobsRepository{pool: pool}, nil
}

func (r *PostgresJobsRepository) Close() {
	r.pool.Close()
}

const jobColumns = `id, job_type, status, queue_name, progress, attempt_count, max_attempts,
	result, error, metadata, trace_id, created_at, started_at, completed_at, updated_at`

func (r *PostgresJobsRepository) CreateJob(ctx context.Context, job *domain.Job) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create job: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO jobs (
			id, job_type, status, queue_name, progress, attempt_count, max_attempts,
			result, error, metadata, trace_id, created_at, started_at, completed_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`,
		job.ID,
		string(job.Type),
		string(job.Status),
		job.QueueName,
		job.Progress,
		job.AttemptCount,
		job.MaxAttempts,
		job.Result,
		job.Error,
		job.Metadata,
		job.TraceID,
		job.CreatedAt,
		job.StartedAt,
		job.CompletedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	if err := insertEvent(ctx, tx, job.ID, domain.EventQueued, "job accepted", nil); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create job: %w", err)
	}
	return nil
}

func (r *PostgresJobsRepository) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query job: %w", err)
	}
	return job, nil
}

func (r *PostgresJobsRepository) ListEvents(ctx context.Context, jobID string) ([]domain.JobEvent, error) {
	if _, err := r.GetJob(ctx, jobID); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, job_id, event_type, message, metadata, created_at
		FROM job_events
		WHERE job_id = $1
		ORDER BY created_at, seq
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query job events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.JobEvent, 0)
	for rows.Next() {
		var (
			event     domain.JobEvent
			eventType string
			metadata  []byte
		)
		if err := rows.Scan(&event.ID, &event.JobID, &eventType, &event.Message, &metadata, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job event: %w", err)
		}
		event.EventType = domain.EventType(eventType)
		event.Metadata = json.RawMessage(metadata)
		events = append(events, event)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate job events: %w", rows.Err())
	}
	return events, nil
}

func (r *PostgresJobsRepository) ClaimOldestQueued(ctx context.Context, queueName string) (*domain.Job, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		SELECT id FROM jobs
		WHERE status = 'queued' AND attempt_count < max_attempts
	`
	args := []any{}
	if queueName != "" {
		query += ` AND queue_name = $1`
		args = append(args, queueName)
	}
	query += ` ORDER BY created_at, seq LIMIT 1 FOR UPDATE SKIP LOCKED`

	var jobID string
	if err := tx.QueryRow(ctx, query, args...).Scan(&jobID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select claimable job: %w", err)
	}

	row := tx.QueryRow(ctx, `
		UPDATE jobs
		SET status = 'processing',
			attempt_count = attempt_count + 1,
			started_at = COALESCE(started_at, now()),
			updated_at = now()
		WHERE id = $1
		RETURNING `+jobColumns, jobID)
	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	message := fmt.Sprintf("attempt %d of %d", job.AttemptCount, job.MaxAttempts)
	if err := insertEvent(ctx, tx, jobID, domain.EventStarted, message, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return job, nil
}

func (r *PostgresJobsRepository) ReleaseClaim(ctx context.Context, jobID, reason string) error {
	return r.transition(ctx, jobID, domain.EventDispatchReleased, reason, `
		UPDATE jobs
		SET status = 'queued',
			attempt_count = GREATEST(attempt_count - 1, 0),
			updated_at = now()
		WHERE id = $1 AND status = 'processing'
	`)
}

func (r *PostgresJobsRepository) MarkCompleted(ctx context.Context, jobID string, result json.RawMessage) error {
	return r.transition(ctx, jobID, domain.EventCompleted, "job completed", `
		UPDATE jobs
		SET status = 'completed',
			result = $2,
			error = NULL,
			progress = 100,
			completed_at = now(),
			updated_at = now()
		WHERE id = $1 AND status = 'processing'
	`, result)
}

func (r *PostgresJobsRepository) MarkFailed(ctx context.Context, jobID string, errPayload json.RawMessage, message string) error {
	return r.transition(ctx, jobID, domain.EventFailed, message, `
		UPDATE jobs
		SET status = 'failed',
			error = $2,
			completed_at = now(),
			updated_at = now()
		WHERE id = $1 AND status = 'processing'
	`, errPayload)
}

func (r *PostgresJobsRepository) ReportFailure(
	ctx context.Context,
	jobID string,
	errPayload json.RawMessage,
	message string,
	retryable bool,
) (*domain.Job, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin report failure: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		status       string
		attemptCount int
		maxAttempts  int
	)
	err = tx.QueryRow(ctx, `
		SELECT status, attempt_count, max_attempts FROM jobs WHERE id = $1 FOR UPDATE
	`, jobID).Scan(&status, &attemptCount, &maxAttempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock job for failure report: %w", err)
	}
	if domain.JobStatus(status) != domain.JobStatusProcessing {
		return nil, ErrInvalidTransition
	}

	var row pgx.Row
	if retryable && attemptCount < maxAttempts {
		row = tx.QueryRow(ctx, `
			UPDATE jobs SET status = 'queued', updated_at = now()
			WHERE id = $1
			RETURNING `+jobColumns, jobID)
		message = fmt.Sprintf("%s (attempt %d of %d)", message, attemptCount, maxAttempts)
		if err := insertEvent(ctx, tx, jobID, domain.EventRetryScheduled, message, nil); err != nil {
			return nil, err
		}
	} else {
		row = tx.QueryRow(ctx, `
			UPDATE jobs
			SET status = 'failed', error = $2, completed_at = now(), updated_at = now()
			WHERE id = $1
			RETURNING `+jobColumns, jobID, errPayload)
		if err := insertEvent(ctx, tx, jobID, domain.EventFailed, message, nil); err != nil {
			return nil, err
		}
	}

	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("apply failure transition: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit failure report: %w", err)
	}
	return job, nil
}

func (r *PostgresJobsRepository) UpdateProgress(ctx context.Context, jobID string, progress int, message string) error {
	if progress < 0 || progress > 100 {
		return ErrInvalidTransition
	}
	return r.transition(ctx, jobID, domain.EventProgress, message, `
		UPDATE jobs
		SET progress = $2, updated_at = now()
		WHERE id = $1 AND status = 'processing' AND progress <= $2
	`, progress)
}

// transition runs a conditional single-row update and appends the matching
// event in one transaction. Zero affected rows means either an unknown job
// or an illegal state for the requested change.
func (r *PostgresJobsRepository) transition(
	ctx context.Context,
	jobID string,
	eventType domain.EventType,
	message string,
	query string,
	extraArgs ...any,
) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	args := append([]any{jobID}, extraArgs...)
	command, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("apply transition: %w", err)
	}
	if command.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, jobID).Scan(&exists); err != nil {
			return fmt.Errorf("check job existence: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrInvalidTransition
	}

	if err := insertEvent(ctx, tx, jobID, eventType, message, nil); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, jobID string, eventType domain.EventType, message string, metadata json.RawMessage) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO job_events (id, job_id, event_type, message, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, uuid.NewString(), jobID, string(eventType), message, metadata)
	if err != nil {
		return fmt.Errorf("insert job event: %w", err)
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job      domain.Job
		jobType  string
		status   string
		result   []byte
		errBytes []byte
		metadata []byte
	)
	err := row.Scan(
		&job.ID,
		&jobType,
		&status,
		&job.QueueName,
		&job.Progress,
		&job.AttemptCount,
		&job.MaxAttempts,
		&result,
		&errBytes,
		&metadata,
		&job.TraceID,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Type = domain.JobType(jobType)
	job.Status = domain.JobStatus(status)
	job.Result = json.RawMessage(result)
	job.Error = json.RawMessage(errBytes)
	job.Metadata = json.RawMessage(metadata)
	return &job, nil
}
