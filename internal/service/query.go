package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/rafaelmq/docquery-back/internal/analysis"
	"github.com/rafaelmq/docquery-back/internal/cache"
	contextbuilder "github.com/rafaelmq/docquery-back/internal/context"
)

type QueryDependencies struct {
	Store      cache.Store
	Writer     *cache.AsyncWriter
	Analyzer   *analysis.Analyzer
	Retriever  contextbuilder.Retriever
	Threshold  float64
	MaxResults int
	Logger     *log.Logger
}

// QueryService runs the user-facing retrieval path: cache lookup,
// analysis on miss, vector search, context assembly, and a
// fire-and-forget cache write that never touches response latency.
type QueryService struct {
	store      cache.Store
	writer     *cache.AsyncWriter
	analyzer   *analysis.Analyzer
	retriever  contextbuilder.Retriever
	threshold  float64
	maxResults int
	logger     *log.Logger
}

func NewQueryService(deps QueryDependencies) *QueryService {
	if deps.Threshold <= 0 {
		deps.Threshold = contextbuilder.DefaultSimilarityThreshold
	}
	if deps.MaxResults <= 0 {
		deps.MaxResults = 10
	}
	return &QueryService{
		store:      deps.Store,
		writer:     deps.Writer,
		analyzer:   deps.Analyzer,
		retriever:  deps.Retriever,
		threshold:  deps.Threshold,
		maxResults: deps.MaxResults,
		logger:     deps.Logger,
	}
}

type QueryInput struct {
	Query      string
	MaxResults int
}

type QueryOutput struct {
	Query             string   `json:"query"`
	Intent            string   `json:"intent"`
	EnhancedQuery     string   `json:"enhanced_query,omitempty"`
	Context           string   `json:"context"`
	Citations         []string `json:"citations"`
	AverageSimilarity float64  `json:"average_similarity"`
	ResultCount       int      `json:"result_count"`
	CacheHit          bool     `json:"cache_hit"`
	CacheAgeSeconds   int64    `json:"cache_age_seconds,omitempty"`
}

func (s *QueryService) Answer(ctx context.Context, input QueryInput) (QueryOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return QueryOutput{}, fmt.Errorf("%w: query is required", ErrValidation)
	}
	limit := input.MaxResults
	if limit <= 0 || limit > s.maxResults {
		limit = s.maxResults
	}

	// The lookup blocks on purpose: the miss/hit outcome decides whether
	// the expensive analysis runs at all.
	var (
		queryAnalysis cache.Analysis
		enhancement   cache.Enhancement
		cacheHit      bool
		cacheAge      time.Duration
	)
	entry, hit, err := s.store.Find(ctx, query)
	if err != nil {
		// Cache trouble degrades to a miss; the request proceeds with
		// full analysis instead of erroring.
		if s.logger != nil {
			s.logger.Printf("cache lookup failed, treating as miss err=%v", err)
		}
		hit = false
	}
	if hit {
		queryAnalysis = entry.Analysis
		enhancement = entry.Enhancement
		cacheHit = true
		cacheAge = entry.Age(time.Now().UTC())
	} else {
		queryAnalysis = s.analyzer.Analyze(query)
		enhancement = s.analyzer.Enhance(query, queryAnalysis)
	}

	searchQuery := query
	if enhancement.ShouldEnhance && strings.TrimSpace(enhancement.Enhanced) != "" {
		searchQuery = enhancement.Enhanced
	}

	results, err := s.retriever.Search(ctx, searchQuery, limit)
	if err != nil {
		return QueryOutput{}, fmt.Errorf("vector search: %w", err)
	}
	relevant := contextbuilder.FilterRelevant(results, s.threshold)

	deduplicate := queryAnalysis.Intent == analysis.IntentListDocuments
	contextText := contextbuilder.BuildContext(relevant, contextbuilder.BuildOptions{
		DeduplicateDocuments: deduplicate,
	})

	output := QueryOutput{
		Query:             query,
		Intent:            queryAnalysis.Intent,
		Context:           contextText,
		Citations:         contextbuilder.UniqueFilenames(relevant),
		AverageSimilarity: contextbuilder.AverageSimilarity(relevant),
		ResultCount:       len(relevant),
		CacheHit:          cacheHit,
	}
	if enhancement.ShouldEnhance {
		output.EnhancedQuery = enhancement.Enhanced
	}
	if cacheHit {
		output.CacheAgeSeconds = int64(cacheAge.Seconds())
	}

	// Initiation is synchronous, completion is not awaited: a lost write
	// costs one future cache miss, never response latency.
	if !cacheHit && s.writer != nil {
		s.writer.Save(query, queryAnalysis, enhancement)
	}
	return output, nil
}
