package models

import "time"

// ChatLog is the audit record of one chat request. User text is stored only as a digest.
type ChatLog struct {
	ID          string      `bson:"_id" json:"id"`
	RequestID   string      `bson:"request_id" json:"request_id"`
	Mode        string      `bson:"mode" json:"mode"`
	SafetyNotes string      `bson:"safety_notes,omitempty" json:"safety_notes,omitempty"`
	Outcome     string      `bson:"outcome" json:"outcome"`
	QueryDigest string      `bson:"query_digest" json:"query_digest"`
	Citations   []SourceRef `bson:"citations" json:"citations"`
	ReplyChars  int         `bson:"reply_chars" json:"reply_chars"`
	LatencyMs   int64       `bson:"latency_ms" json:"latency_ms"`
	Timestamp   time.Time   `bson:"timestamp" json:"timestamp"`
}

// ChatLogFilter narrows chat log listing and export.
type ChatLogFilter struct {
	SafetyNotes string
	Since       time.Time
	Limit       int64
}
