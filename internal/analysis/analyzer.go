package analysis

import (
	"regexp"
	"strings"

	"github.com/rafaelmq/docquery-back/internal/cache"
)

// Intent tags produced by the analyzer. Document-listing queries get
// per-document deduplicated context; everything else keeps all chunks.
const (
	IntentGeneral       = "general"
	IntentListDocuments = "list-documents"
	IntentArticleLookup = "article-lookup"
	IntentSummary       = "summary"
)

var (
	articlePattern = regexp.MustCompile(`(?i)\b(?:article|art\.?|artigo)\s*(\d+)`)

	listMarkers    = []string{"list", "which documents", "what documents", "available documents", "uploaded files"}
	summaryMarkers = []string{"summarize", "summary", "overview", "resumo"}

	stopwords = map[string]struct{}{
		"a": {}, "an": {}, "and": {}, "are": {}, "for": {}, "from": {},
		"in": {}, "is": {}, "of": {}, "on": {}, "the": {}, "to": {},
		"what": {}, "which": {}, "with": {},
	}
)

// Analyzer classifies queries with lexical heuristics. It stands in for
// the LLM-backed classifier on the cache-miss path; its output shape is
// what the cache persists.
type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

func (a *Analyzer) Analyze(query string) cache.Analysis {
	normalized := strings.ToLower(strings.TrimSpace(query))

	analysis := cache.Analysis{
		Intent:   IntentGeneral,
		Keywords: extractKeywords(normalized),
	}

	if match := articlePattern.FindStringSubmatch(query); match != nil {
		analysis.Intent = IntentArticleLookup
		analysis.ArticleNumber = match[1]
		return analysis
	}
	for _, marker := range listMarkers {
		if strings.Contains(normalized, marker) {
			analysis.Intent = IntentListDocuments
			return analysis
		}
	}
	for _, marker := range summaryMarkers {
		if strings.Contains(normalized, marker) {
			analysis.Intent = IntentSummary
			return analysis
		}
	}
	return analysis
}

// Enhance rewrites the query for retrieval when the analysis suggests a
// sharper form. The original query always survives in the enhancement
// record for auditability.
func (a *Analyzer) Enhance(query string, analysis cache.Analysis) cache.Enhancement {
	enhancement := cache.Enhancement{
		Enhanced:      strings.TrimSpace(query),
		ShouldEnhance: false,
		ArticleNumber: analysis.ArticleNumber,
		Intent:        analysis.Intent,
	}

	switch analysis.Intent {
	case IntentArticleLookup:
		enhancement.Enhanced = "article " + analysis.ArticleNumber + " " + strings.TrimSpace(query)
		enhancement.ShouldEnhance = true
	case IntentSummary:
		if len(analysis.Keywords) > 0 {
			enhancement.Enhanced = strings.TrimSpace(query) + " " + strings.Join(analysis.Keywords, " ")
			enhancement.ShouldEnhance = true
		}
	}
	return enhancement
}

func extractKeywords(normalized string) []string {
	fields := strings.FieldsFunc(normalized, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})

	keywords := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if len(field) < 3 {
			continue
		}
		if _, skip := stopwords[field]; skip {
			continue
		}
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		keywords = append(keywords, field)
	}
	if len(keywords) > 8 {
		keywords = keywords[:8]
	}
	return keywords
}
