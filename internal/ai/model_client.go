package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"construction-safety-assistant/internal/config"
	"construction-safety-assistant/internal/logger"
	"construction-safety-assistant/internal/telemetry"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

const (
	generationBackend = "model server"
	systemInstruction = "You are a concise, safety-focused assistant."
)

// Generator turns a fully assembled prompt into reply text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ModelClient talks to an OpenAI-compatible chat completions endpoint (vLLM).
// One call per prompt: no retries, no streaming.
type ModelClient struct {
	url         string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
	limiter     *rate.Limiter
	metrics     *telemetry.Metrics
}

func NewModelClient(cfg *config.Config, metrics *telemetry.Metrics) *ModelClient {
	rpm := cfg.GenerationRPM
	if rpm <= 0 {
		rpm = 120
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ModelServer",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		// A malformed body still proves the server is up.
		IsSuccessful: func(err error) bool {
			var shape *ResponseShapeError
			return err == nil || errors.As(err, &shape)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.RecordCircuitBreakerState(name, to.String())
		},
	})

	return &ModelClient{
		url:         cfg.ModelServerURL,
		model:       cfg.ModelName,
		temperature: 0.3,
		maxTokens:   512,
		httpClient:  &http.Client{Timeout: time.Duration(cfg.ModelTimeoutSeconds) * time.Second},
		breaker:     breaker,
		limiter:     rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
		metrics:     metrics,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends the prompt as the user turn under a fixed system instruction
// and returns the first choice's content.
func (c *ModelClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("generation-client").Start(ctx, "model.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("model.name", c.model),
		attribute.Int("model.prompt_chars", len(prompt)),
	)

	start := time.Now()
	reply, err := c.generate(ctx, prompt)
	c.metrics.RecordGeneration(ctx, c.model, time.Since(start).Seconds(), err == nil)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return reply, nil
}

func (c *ModelClient) generate(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", &TransportError{Backend: generationBackend, Err: err}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", &TransportError{Backend: generationBackend, Err: err}
		}
		return "", err
	}
	return result.(string), nil
}

func (c *ModelClient) post(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Backend: generationBackend, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return "", &TransportError{Backend: generationBackend, StatusCode: resp.StatusCode}
	}

	var body chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &ResponseShapeError{Backend: generationBackend, Reason: "is not valid JSON", Err: err}
	}
	if len(body.Choices) == 0 {
		return "", &ResponseShapeError{Backend: generationBackend, Reason: "has no choices"}
	}
	msg := body.Choices[0].Message
	if msg == nil || msg.Content == nil {
		return "", &ResponseShapeError{Backend: generationBackend, Reason: "has no choices[0].message.content"}
	}
	return *msg.Content, nil
}
