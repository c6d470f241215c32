package cache

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"
)

type failingStore struct {
	MemoryStore
	mu    sync.Mutex
	calls int
}

func (s *failingStore) Save(_ context.Context, _ Entry) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return errors.New("store unavailable")
}

func TestAsyncWriterSaveIsVisibleAfterClose(t *testing.T) {
	store := NewMemoryStore(nil)
	writer := NewAsyncWriter(store, nil, time.Second, nil)

	writer.Save("what is article 5?", Analysis{Intent: "article-lookup", ArticleNumber: "5"}, Enhancement{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := writer.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	entry, hit, err := store.Find(context.Background(), "what is article 5?")
	if err != nil || !hit {
		t.Fatalf("expected entry after close, err=%v hit=%t", err, hit)
	}
	if entry.Analysis.ArticleNumber != "5" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.CreatedAt.IsZero() {
		t.Fatalf("expected created_at stamped by the writer")
	}
}

func TestAsyncWriterSwallowsStoreFailures(t *testing.T) {
	store := &failingStore{}
	writer := NewAsyncWriter(store, nil, time.Second, nil)

	// Must not panic or surface the error to the caller.
	writer.Save("any query", Analysis{}, Enhancement{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := writer.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.calls != 1 {
		t.Fatalf("expected exactly one save attempt, got %d", store.calls)
	}
}

func TestAsyncWriterLogsStoreSignatureOnFailure(t *testing.T) {
	custom := func(query string) string {
		return "custom:" + NormalizeLexical(query)
	}
	var logBuffer bytes.Buffer
	logger := log.New(&logBuffer, "", 0)

	writer := NewAsyncWriter(&failingStore{}, custom, time.Second, logger)
	writer.Save("what is article 5?", Analysis{}, Enhancement{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := writer.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	logged := logBuffer.String()
	if !strings.Contains(logged, Signature(custom, "what is article 5?")) {
		t.Fatalf("expected the store's key in the failure log, got %q", logged)
	}
}

func TestAsyncWriterCloseHonorsContext(t *testing.T) {
	store := NewMemoryStore(nil)
	writer := NewAsyncWriter(store, nil, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := writer.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("expected nil or context.Canceled, got %v", err)
	}
}
