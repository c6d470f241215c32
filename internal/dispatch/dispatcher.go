package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/rafaelmq/docquery-back/internal/domain"
	"github.com/rafaelmq/docquery-back/internal/repository"
)

// ErrDispatchFailed marks a worker invocation that could not be made or
// was refused. The target job goes back to queued; a later dispatch
// retries it.
var ErrDispatchFailed = errors.New("worker dispatch failed")

// Result reports the outcome of one claim-and-dispatch cycle.
type Result struct {
	Processed int    `json:"processed"`
	JobID     string `json:"job_id,omitempty"`
}

// Invoker hands a claimed job to the processing worker. Processing
// errors are the worker's to handle through the job store; Invoke fails
// only when the hand-off itself could not happen.
type Invoker interface {
	Invoke(ctx context.Context, job *domain.Job) error
}

// HTTPInvoker posts the job reference to an external worker endpoint
// with a bounded request timeout. The token authenticates against the
// worker's protected surface; empty means the worker is open.
type HTTPInvoker struct {
	workerURL string
	token     string
	client    *http.Client
}

func NewHTTPInvoker(workerURL, token string, timeout time.Duration) *HTTPInvoker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPInvoker{
		workerURL: workerURL,
		token:     token,
		client:    &http.Client{Timeout: timeout},
	}
}

func (i *HTTPInvoker) Invoke(ctx context.Context, job *domain.Job) error {
	body, err := json.Marshal(map[string]string{
		"job_id":   job.ID,
		"trace_id": job.TraceID,
	})
	if err != nil {
		return fmt.Errorf("encode worker request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, i.workerURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build worker request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("X-Trace-Id", job.TraceID)
	if i.token != "" {
		request.Header.Set("Authorization", "Bearer "+i.token)
	}

	response, err := i.client.Do(request)
	if err != nil {
		return fmt.Errorf("call worker: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()
	}()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("worker responded %d", response.StatusCode)
	}
	return nil
}

// LocalInvoker runs the worker in-process. Processing errors are logged
// only: once the worker accepted the job it owns the state machine, so
// they never count as dispatch failures.
type LocalInvoker struct {
	process func(ctx context.Context, jobID string) error
	logger  *log.Logger
}

func NewLocalInvoker(process func(ctx context.Context, jobID string) error, logger *log.Logger) *LocalInvoker {
	return &LocalInvoker{process: process, logger: logger}
}

func (i *LocalInvoker) Invoke(ctx context.Context, job *domain.Job) error {
	if err := i.process(ctx, job.ID); err != nil && i.logger != nil {
		i.logger.Printf("local worker reported error job_id=%s err=%v", job.ID, err)
	}
	return nil
}

// Dispatcher performs at most one atomic claim-and-dispatch per call.
// It never writes terminal job state; that stays with the worker, so
// job status has a single writer.
type Dispatcher struct {
	repo      repository.JobsRepository
	invoker   Invoker
	queueName string
	logger    *log.Logger
}

func NewDispatcher(repo repository.JobsRepository, invoker Invoker, queueName string, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		invoker:   invoker,
		queueName: queueName,
		logger:    logger,
	}
}

// DispatchNext claims the oldest queued job and hands it to the worker.
// No eligible job is a no-op, not an error. A failed hand-off releases
// the claim so the job stays queued with its attempts intact.
func (d *Dispatcher) DispatchNext(ctx context.Context) (Result, error) {
	job, err := d.repo.ClaimOldestQueued(ctx, d.queueName)
	if err != nil {
		return Result{}, fmt.Errorf("claim queued job: %w", err)
	}
	if job == nil {
		return Result{}, nil
	}

	if err := d.invoker.Invoke(ctx, job); err != nil {
		reason := fmt.Sprintf("dispatch failed: %v", err)
		if releaseErr := d.repo.ReleaseClaim(ctx, job.ID, reason); releaseErr != nil && d.logger != nil {
			d.logger.Printf("release claim failed job_id=%s err=%v", job.ID, releaseErr)
		}
		return Result{}, fmt.Errorf("%w: job %s: %v", ErrDispatchFailed, job.ID, err)
	}

	if d.logger != nil {
		d.logger.Printf("job dispatched job_id=%s type=%s attempt=%d trace_id=%s",
			job.ID, job.Type, job.AttemptCount, job.TraceID)
	}
	return Result{Processed: 1, JobID: job.ID}, nil
}

// Run triggers dispatch cycles on a fixed interval until ctx ends.
// Errors are logged and the loop keeps going; a transient worker outage
// must not stop the queue from draining later.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				result, err := d.DispatchNext(ctx)
				if err != nil {
					if d.logger != nil && ctx.Err() == nil {
						d.logger.Printf("dispatch cycle failed err=%v", err)
					}
					break
				}
				if result.Processed == 0 {
					break
				}
			}
		}
	}
}
