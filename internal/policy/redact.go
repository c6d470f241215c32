package policy

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`(?:\+?\d[\d()\-\s.]{7,}\d)`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`)
)

// RedactPII masks contact and payment data inside free text before it is
// persisted into job metadata or surfaced to polling clients.
func RedactPII(value string) string {
	masked := emailPattern.ReplaceAllString(value, "[email_redacted]")
	masked = cardPattern.ReplaceAllString(masked, "[card_redacted]")
	masked = phonePattern.ReplaceAllString(masked, "[phone_redacted]")
	return masked
}

// ProjectMetadata prepares caller-supplied job metadata for a status
// response: the named bulk fields (the original task input) are dropped
// and remaining string values are PII-redacted. Non-object metadata is
// passed through redacted.
func ProjectMetadata(metadata json.RawMessage, dropKeys ...string) json.RawMessage {
	trimmed := strings.TrimSpace(string(metadata))
	if trimmed == "" {
		return nil
	}

	var decoded any
	if err := json.Unmarshal(metadata, &decoded); err != nil {
		return json.RawMessage(strconvQuote(RedactPII(trimmed)))
	}

	drop := make(map[string]struct{}, len(dropKeys))
	for _, key := range dropKeys {
		drop[key] = struct{}{}
	}

	projected := projectValue(decoded, drop, true)
	encoded, err := json.Marshal(projected)
	if err != nil {
		return nil
	}
	return encoded
}

func projectValue(value any, drop map[string]struct{}, topLevel bool) any {
	switch typed := value.(type) {
	case map[string]any:
		cloned := make(map[string]any, len(typed))
		for key, child := range typed {
			if topLevel {
				if _, skip := drop[key]; skip {
					continue
				}
			}
			cloned[key] = projectValue(child, drop, false)
		}
		return cloned
	case []any:
		cloned := make([]any, 0, len(typed))
		for _, child := range typed {
			cloned = append(cloned, projectValue(child, drop, false))
		}
		return cloned
	case string:
		return RedactPII(typed)
	default:
		return value
	}
}

func strconvQuote(value string) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return `""`
	}
	return string(encoded)
}
