package cache

import (
	"context"
	"testing"
	"time"
)

func TestNormalizeLexicalCollapsesCaseAndWhitespace(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{"What is Article 5?", "what is article 5?"},
		{"  what   is\tarticle 5?  ", "what is article 5?"},
		{"WHAT IS ARTICLE 5?", "what is article 5?"},
	}
	for _, tc := range cases {
		if got := NormalizeLexical(tc.input); got != tc.expected {
			t.Fatalf("NormalizeLexical(%q) = %q, expected %q", tc.input, got, tc.expected)
		}
	}
}

func TestSignatureMatchesForNearDuplicateQueries(t *testing.T) {
	base := Signature(nil, "what is article 5?")
	if Signature(nil, "  What   is ARTICLE 5?  ") != base {
		t.Fatalf("expected near-duplicate queries to share a signature")
	}
	if Signature(nil, "what is article 6?") == base {
		t.Fatalf("expected distinct queries to have distinct signatures")
	}
}

func TestMemoryStoreSaveThenFind(t *testing.T) {
	store := NewMemoryStore(nil)
	entry := Entry{
		Query: "what is article 5?",
		Analysis: Analysis{
			Intent:        "article-lookup",
			ArticleNumber: "5",
		},
		Enhancement: Enhancement{
			Enhanced:      "article 5 what is article 5?",
			ShouldEnhance: true,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Save(context.Background(), entry); err != nil {
		t.Fatalf("save: %v", err)
	}

	found, hit, err := store.Find(context.Background(), "  What is Article 5?")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !hit {
		t.Fatalf("expected a hit for a near-duplicate query")
	}
	if found.Analysis.ArticleNumber != "5" || !found.Enhancement.ShouldEnhance {
		t.Fatalf("unexpected entry: %+v", found)
	}
}

func TestMemoryStoreMiss(t *testing.T) {
	store := NewMemoryStore(nil)
	_, hit, err := store.Find(context.Background(), "never cached")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if hit {
		t.Fatalf("expected a miss")
	}
}

func TestMemoryStoreLastWriteWins(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	first := Entry{Query: "summarize the contract", Analysis: Analysis{Intent: "general"}, CreatedAt: time.Now().UTC()}
	second := Entry{Query: "Summarize  the contract", Analysis: Analysis{Intent: "summary"}, CreatedAt: time.Now().UTC()}
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	if store.Len() != 1 {
		t.Fatalf("expected a single entry for one signature, got %d", store.Len())
	}
	found, hit, err := store.Find(ctx, "summarize the contract")
	if err != nil || !hit {
		t.Fatalf("find: %v hit=%t", err, hit)
	}
	if found.Analysis.Intent != "summary" {
		t.Fatalf("expected last write to win, got %q", found.Analysis.Intent)
	}
}

func TestMemoryStoreFindNeverExpires(t *testing.T) {
	store := NewMemoryStore(nil)
	stale := Entry{
		Query:     "old query",
		CreatedAt: time.Now().UTC().Add(-90 * 24 * time.Hour),
	}
	if err := store.Save(context.Background(), stale); err != nil {
		t.Fatalf("save: %v", err)
	}

	_, hit, err := store.Find(context.Background(), "old query")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !hit {
		t.Fatalf("expired entries are still hits until cleanup runs")
	}
}

func TestMemoryStoreCleanupRemovesOnlyExpired(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	fresh := Entry{Query: "fresh query", CreatedAt: time.Now().UTC()}
	stale := Entry{Query: "stale query", CreatedAt: time.Now().UTC().Add(-45 * 24 * time.Hour)}
	if err := store.Save(ctx, fresh); err != nil {
		t.Fatalf("save fresh: %v", err)
	}
	if err := store.Save(ctx, stale); err != nil {
		t.Fatalf("save stale: %v", err)
	}

	deleted, err := store.Cleanup(ctx, 30)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deletion, got %d", deleted)
	}
	if _, hit, _ := store.Find(ctx, "fresh query"); !hit {
		t.Fatalf("fresh entry must survive cleanup")
	}
	if _, hit, _ := store.Find(ctx, "stale query"); hit {
		t.Fatalf("stale entry must be gone after cleanup")
	}
}

func TestEntryAge(t *testing.T) {
	now := time.Now().UTC()
	entry := Entry{CreatedAt: now.Add(-90 * time.Second)}
	if age := entry.Age(now); age != 90*time.Second {
		t.Fatalf("expected 90s age, got %s", age)
	}
}
