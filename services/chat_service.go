package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"construction-safety-assistant/internal/ai"
	"construction-safety-assistant/internal/logger"
	"construction-safety-assistant/internal/safety"
	"construction-safety-assistant/internal/telemetry"
	"construction-safety-assistant/models"
	"construction-safety-assistant/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ContextRetriever finds the chunks most relevant to a query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]models.RetrievalResult, error)
}

// ChatRecorder receives one audit entry per handled request.
type ChatRecorder interface {
	Record(ctx context.Context, entry models.ChatLog)
}

// ChatService runs a chat request through crisis detection, mode routing,
// retrieval and generation, in that order.
type ChatService struct {
	detector  *safety.Detector
	retriever ContextRetriever
	generator ai.Generator
	k         int
	metrics   *telemetry.Metrics
	recorder  ChatRecorder
}

func NewChatService(detector *safety.Detector, retriever ContextRetriever, generator ai.Generator, k int) *ChatService {
	if k <= 0 {
		k = 4
	}
	return &ChatService{
		detector:  detector,
		retriever: retriever,
		generator: generator,
		k:         k,
	}
}

// WithMetrics records outcome counters and retrieval sizes.
func (s *ChatService) WithMetrics(m *telemetry.Metrics) *ChatService {
	s.metrics = m
	return s
}

// WithRecorder sends an audit entry for every handled request.
func (s *ChatService) WithRecorder(r ChatRecorder) *ChatService {
	s.recorder = r
	return s
}

// HandleChat returns policy outcomes as ordinary responses. Only retrieval and
// generation failures are returned as errors.
func (s *ChatService) HandleChat(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	ctx, span := otel.Tracer("chat-service").Start(ctx, "chat.handle")
	defer span.End()

	start := time.Now()
	mode := req.Mode
	if mode == "" {
		mode = models.ModeAuto
	}
	userText := userText(req.Messages)

	resp, err := s.respond(ctx, mode, userText)
	if err != nil {
		span.RecordError(err)
		logger.Error("Chat request failed",
			"request_id", utils.RequestIDFrom(ctx),
			"mode", mode,
			"error", err,
		)
		s.metrics.RecordChatOutcome(ctx, mode, "error")
		return nil, err
	}

	outcome := resp.Outcome()
	span.SetAttributes(
		attribute.String("chat.mode", mode),
		attribute.String("chat.outcome", outcome),
		attribute.Int("chat.citations", len(resp.Citations)),
	)
	s.metrics.RecordChatOutcome(ctx, mode, outcome)

	latency := time.Since(start)
	logger.Info("Chat request handled",
		"request_id", utils.RequestIDFrom(ctx),
		"mode", mode,
		"outcome", outcome,
		"citations", len(resp.Citations),
		"latency_ms", latency.Milliseconds(),
	)

	if s.recorder != nil {
		entry := models.ChatLog{
			ID:          uuid.NewString(),
			RequestID:   utils.RequestIDFrom(ctx),
			Mode:        mode,
			Outcome:     outcome,
			QueryDigest: digest(userText),
			Citations:   resp.Citations,
			ReplyChars:  len([]rune(resp.Reply)),
			LatencyMs:   latency.Milliseconds(),
			Timestamp:   time.Now().UTC(),
		}
		if resp.SafetyNotes != nil {
			entry.SafetyNotes = *resp.SafetyNotes
		}
		s.recorder.Record(ctx, entry)
	}

	return resp, nil
}

func (s *ChatService) respond(ctx context.Context, mode, query string) (*models.ChatResponse, error) {
	if signal := s.detector.Detect(query); signal.Triggered {
		logger.Warn("Crisis escalation triggered",
			"request_id", utils.RequestIDFrom(ctx),
			"matched_terms", len(signal.MatchedTerms),
		)
		return models.NewPolicyResponse(safety.CrisisMessage(), models.SafetyCrisisEscalation), nil
	}

	if mode == models.ModeWellbeing {
		return models.NewPolicyResponse(safety.WellbeingResponse(), models.SafetyWellbeing), nil
	}

	results, err := s.retriever.Retrieve(ctx, query, s.k)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}
	s.metrics.RecordRetrieval(ctx, len(results))
	if len(results) == 0 {
		return models.NewPolicyResponse(safety.NoContextMessage(), models.SafetyNoContext), nil
	}

	chunks := make([]models.DocumentChunk, len(results))
	citations := make([]models.SourceRef, len(results))
	for i, r := range results {
		chunks[i] = r.Chunk
		citations[i] = r.Chunk.SourceRef()
	}

	contextBlock := SanitizeContext(chunks, DefaultContextBudget, DefaultChunkCap)
	if contextBlock == "" {
		return models.NewPolicyResponse(safety.NoContextMessage(), models.SafetyNoContext), nil
	}

	reply, err := s.generator.Generate(ctx, BuildPrompt(query, contextBlock, citations))
	if err != nil {
		return nil, fmt.Errorf("generating reply: %w", err)
	}

	return &models.ChatResponse{Reply: reply, Citations: citations}, nil
}

// BuildPrompt assembles the grounded prompt sent to the model.
func BuildPrompt(query, contextBlock string, citations []models.SourceRef) string {
	lines := make([]string, 0, len(citations))
	for _, c := range citations {
		lines = append(lines, CitationLine(c))
	}
	return strings.Join([]string{
		safety.AIDisclosure,
		safety.TechBoundary,
		safety.PromptInjectionWarning,
		"Use ONLY the context below. If insufficient, say you lack information and suggest supervisor review.",
		"Context:",
		contextBlock,
		"Citations:",
		strings.Join(lines, "\n"),
		"User question:",
		query,
		"Answer with concise steps, cite sources by name + section/page, and do not invent information.",
	}, "\n")
}

// CitationLine renders "- doc (section p.page)" with placeholders for missing parts.
func CitationLine(c models.SourceRef) string {
	section := "unknown section"
	if c.Section != nil && *c.Section != "" {
		section = *c.Section
	}
	page := "?"
	if c.Page != nil && *c.Page != 0 {
		page = strconv.Itoa(*c.Page)
	}
	return fmt.Sprintf("- %s (%s p.%s)", c.Document, section, page)
}

func userText(turns []models.ChatTurn) string {
	var parts []string
	for _, t := range turns {
		if t.Role == models.RoleUser {
			parts = append(parts, t.Content)
		}
	}
	return strings.Join(parts, " ")
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
