package services

import (
	"strings"

	"construction-safety-assistant/models"
)

const (
	DefaultContextBudget = 1800
	DefaultChunkCap      = 400

	// ContextSeparator joins accepted chunks in the context block.
	ContextSeparator = "\n---\n"
)

var injectionMarkers = []string{"ignore previous", "disregard", "system prompt"}

// SanitizeContext drops any chunk carrying a prompt-injection marker, caps the
// rest at perChunk characters and stops once maxChars have been accepted.
// An empty result means no usable context survived.
func SanitizeContext(chunks []models.DocumentChunk, maxChars, perChunk int) string {
	if maxChars <= 0 {
		maxChars = DefaultContextBudget
	}
	if perChunk <= 0 {
		perChunk = DefaultChunkCap
	}

	var kept []string
	total := 0
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) == "" || hasInjectionMarker(c.Text) {
			continue
		}
		snippet := truncateRunes(c.Text, perChunk)
		kept = append(kept, snippet)
		total += len([]rune(snippet))
		if total >= maxChars {
			break
		}
	}
	return strings.Join(kept, ContextSeparator)
}

func hasInjectionMarker(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range injectionMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
