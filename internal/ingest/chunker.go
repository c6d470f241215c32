package ingest

import "strings"

// SplitWords cuts text into word windows of chunkSize words with the
// given overlap between consecutive chunks. Overlap keeps sentences that
// straddle a boundary retrievable from either side.
func SplitWords(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 200
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 10
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= chunkSize {
		return []string{strings.Join(words, " ")}
	}

	step := chunkSize - overlap
	chunks := make([]string, 0, (len(words)/step)+1)
	for start := 0; start < len(words); start += step {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
