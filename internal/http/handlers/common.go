package handlers

import (
	"encoding/json"
	"errors"
	"hash/fnv"
	"net/http"
	"sync"
	"time"

	"github.com/rafaelmq/docquery-back/internal/dispatch"
	"github.com/rafaelmq/docquery-back/internal/http/middleware"
	"github.com/rafaelmq/docquery-back/internal/ingest"
	"github.com/rafaelmq/docquery-back/internal/service"
)

var errInvalidPayload = errors.New("invalid payload")

type API struct {
	jobsService   *service.JobsService
	queryService  *service.QueryService
	dispatcher    *dispatch.Dispatcher
	processor     *ingest.Processor
	dispatchToken string
	idempotency   *idempotencyStore
}

type Dependencies struct {
	JobsService   *service.JobsService
	QueryService  *service.QueryService
	Dispatcher    *dispatch.Dispatcher
	Processor     *ingest.Processor
	DispatchToken string
}

func NewAPI(deps Dependencies) *API {
	return &API{
		jobsService:   deps.JobsService,
		queryService:  deps.QueryService,
		dispatcher:    deps.Dispatcher,
		processor:     deps.Processor,
		dispatchToken: deps.DispatchToken,
		idempotency:   newIdempotencyStore(),
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

func decodeJSON(r *http.Request, value any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(value); err != nil {
		return errInvalidPayload
	}
	return nil
}

type idempotencyEntry struct {
	PayloadHash uint64
	JobID       string
	CreatedAt   time.Time
}

// idempotencyStore lets clients retry POST /v1/jobs safely: the same
// Idempotency-Key with the same payload returns the original job.
type idempotencyStore struct {
	mu      sync.Mutex
	entries map[string]idempotencyEntry
}

func newIdempotencyStore() *idempotencyStore {
	return &idempotencyStore{
		entries: make(map[string]idempotencyEntry),
	}
}

func (s *idempotencyStore) Get(key string) (idempotencyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok
}

func (s *idempotencyStore) Put(key string, payloadHash uint64, jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = idempotencyEntry{
		PayloadHash: payloadHash,
		JobID:       jobID,
		CreatedAt:   time.Now().UTC(),
	}
}

func hashPayload(value any) uint64 {
	payload, _ := json.Marshal(value)
	hasher := fnv.New64a()
	_, _ = hasher.Write(payload)
	return hasher.Sum64()
}
