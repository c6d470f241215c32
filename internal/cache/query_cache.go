package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Analysis is the derived classification of a user query.
type Analysis struct {
	Intent        string   `json:"intent"`
	ArticleNumber string   `json:"article_number,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
}

// Enhancement is the rewritten form of a query used for retrieval.
type Enhancement struct {
	Enhanced      string `json:"enhanced"`
	ShouldEnhance bool   `json:"should_enhance"`
	ArticleNumber string `json:"article_number,omitempty"`
	Intent        string `json:"intent,omitempty"`
}

// Entry is one cached query -> analysis/enhancement mapping.
type Entry struct {
	Query       string      `json:"query"`
	Analysis    Analysis    `json:"analysis"`
	Enhancement Enhancement `json:"enhancement"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Age reports how long ago the entry was written.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// Store persists query cache entries. Find never expires entries on the
// request path; expiry is Cleanup's job, run out of band.
type Store interface {
	Find(ctx context.Context, query string) (Entry, bool, error)
	Save(ctx context.Context, entry Entry) error
	Cleanup(ctx context.Context, ttlDays int) (int, error)
}

// Normalizer maps a raw query to its cache key form. Pluggable so an
// embedding-based fingerprint can replace the lexical default without
// touching the stores.
type Normalizer func(query string) string

// NormalizeLexical lowercases and collapses runs of whitespace.
func NormalizeLexical(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Signature hashes the normalized query into a fixed-size key.
func Signature(normalize Normalizer, query string) string {
	if normalize == nil {
		normalize = NormalizeLexical
	}
	sum := sha256.Sum256([]byte(normalize(query)))
	return hex.EncodeToString(sum[:])
}

func ttlCutoff(now time.Time, ttlDays int) time.Time {
	if ttlDays < 0 {
		ttlDays = 0
	}
	return now.Add(-time.Duration(ttlDays) * 24 * time.Hour)
}
