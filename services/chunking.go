package services

import (
	"strings"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 120
)

// CleanText normalizes extracted document text: NUL bytes become spaces and
// every whitespace run collapses to a single space.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	return strings.Join(strings.Fields(text), " ")
}

// ChunkText splits text into windows of chunkSize words where consecutive
// windows share overlap words. The start always advances by at least one
// word, so an overlap at or above chunkSize still terminates.
func ChunkText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{}
	}

	step := chunkSize - overlap
	if step < 1 {
		step = 1
	}

	var chunks []string
	for start := 0; ; start += step {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end >= len(words) {
			break
		}
	}
	return chunks
}
