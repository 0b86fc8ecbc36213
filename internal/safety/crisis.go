package safety

import "strings"

type CrisisSignal struct {
	Triggered    bool
	MatchedTerms []string
}

// Detector matches user text against a lowercase crisis lexicon. Matching is a
// plain substring test after lowercasing: any hit escalates, so false positives
// are accepted in exchange for recall.
type Detector struct {
	lexicon []string
}

// ParseLexicon splits a comma-separated term list, lowercasing and dropping blanks and duplicates.
func ParseLexicon(csv string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, raw := range strings.Split(csv, ",") {
		term := strings.ToLower(strings.TrimSpace(raw))
		if term == "" {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return terms
}

func NewDetector(lexiconCSV string) *Detector {
	return &Detector{lexicon: ParseLexicon(lexiconCSV)}
}

// Terms returns a copy of the lexicon.
func (d *Detector) Terms() []string {
	return append([]string(nil), d.lexicon...)
}

// Detect returns the matched terms in lexicon order.
func (d *Detector) Detect(text string) CrisisSignal {
	lower := strings.ToLower(text)
	var hits []string
	for _, term := range d.lexicon {
		if strings.Contains(lower, term) {
			hits = append(hits, term)
		}
	}
	return CrisisSignal{Triggered: len(hits) > 0, MatchedTerms: hits}
}
