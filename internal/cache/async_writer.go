package cache

import (
	"context"
	"log"
	"sync"
	"time"
)

// AsyncWriter persists cache entries without blocking the caller. Each
// save runs on a detached goroutine with its own deadline, never the
// caller's, so a user response is never delayed or cancelled by cache
// persistence. Failures are logged and swallowed.
type AsyncWriter struct {
	store     Store
	normalize Normalizer
	timeout   time.Duration
	logger    *log.Logger
	wg        sync.WaitGroup
}

// NewAsyncWriter wraps store. normalize must be the store's normalizer
// so logged signatures match stored keys; nil means the lexical default.
func NewAsyncWriter(store Store, normalize Normalizer, timeout time.Duration, logger *log.Logger) *AsyncWriter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AsyncWriter{
		store:     store,
		normalize: normalize,
		timeout:   timeout,
		logger:    logger,
	}
}

// Save initiates the write and returns immediately.
func (w *AsyncWriter) Save(query string, analysis Analysis, enhancement Enhancement) {
	entry := Entry{
		Query:       query,
		Analysis:    analysis,
		Enhancement: enhancement,
		CreatedAt:   time.Now().UTC(),
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		if err := w.store.Save(ctx, entry); err != nil && w.logger != nil {
			w.logger.Printf("async cache save failed signature=%s err=%v",
				Signature(w.normalize, query), err)
		}
	}()
}

// Close waits for in-flight writes until ctx expires. Shutdown is never
// blocked indefinitely: a stuck write is abandoned to its own timeout.
func (w *AsyncWriter) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
