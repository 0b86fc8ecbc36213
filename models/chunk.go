package models

// DocumentChunk is a piece of an ingested manual. Immutable once added to an index.
type DocumentChunk struct {
	Text     string  `json:"text"`
	Document string  `json:"document"`
	Section  *string `json:"section,omitempty"`
	Page     *int    `json:"page,omitempty"`
}

// SourceRef returns the citation for this chunk.
func (c DocumentChunk) SourceRef() SourceRef {
	return SourceRef{Document: c.Document, Section: c.Section, Page: c.Page}
}

type RetrievalResult struct {
	Chunk DocumentChunk
	Score float32
}
