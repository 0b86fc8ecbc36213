package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"construction-safety-assistant/internal/config"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const embeddingBackend = "embedding server"

// Embedder maps texts to L2-normalized vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// NewEmbedder picks the provider named in the config.
func NewEmbedder(ctx context.Context, cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "openai", "":
		return NewOpenAIEmbedder(cfg.EmbeddingServerURL, cfg.EmbeddingModel, cfg.EmbeddingAPIKey, cfg.EmbeddingDim), nil
	case "google":
		return NewGoogleEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDim)
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingProvider)
	}
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint, such as a
// text-embeddings-inference or vLLM server hosting bge-small.
type OpenAIEmbedder struct {
	baseURL    string
	model      string
	apiKey     string
	dim        int
	httpClient *http.Client
}

func NewOpenAIEmbedder(baseURL, model, apiKey string, dim int) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
		dim:        dim,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *OpenAIEmbedder) Dimension() int { return e.dim }

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(embeddingRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling embedding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Backend: embeddingBackend, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return nil, &TransportError{Backend: embeddingBackend, StatusCode: resp.StatusCode}
	}

	var body embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &ResponseShapeError{Backend: embeddingBackend, Reason: "is not valid JSON", Err: err}
	}
	if len(body.Data) != len(texts) {
		return nil, &ResponseShapeError{
			Backend: embeddingBackend,
			Reason:  fmt.Sprintf("has %d embeddings for %d inputs", len(body.Data), len(texts)),
		}
	}

	sort.SliceStable(body.Data, func(i, j int) bool { return body.Data[i].Index < body.Data[j].Index })

	out := make([][]float32, len(body.Data))
	for i, d := range body.Data {
		if len(d.Embedding) != e.dim {
			return nil, &ResponseShapeError{
				Backend: embeddingBackend,
				Reason:  fmt.Sprintf("has dimension %d, configured %d", len(d.Embedding), e.dim),
			}
		}
		out[i] = Normalize(d.Embedding)
	}
	return out, nil
}

// GoogleEmbedder uses the Generative AI embedding models.
type GoogleEmbedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
	dim    int
}

func NewGoogleEmbedder(ctx context.Context, apiKey, model string, dim int) (*GoogleEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GoogleEmbedder{client: client, model: client.EmbeddingModel(model), dim: dim}, nil
}

func (g *GoogleEmbedder) Dimension() int { return g.dim }

func (g *GoogleEmbedder) Close() error { return g.client.Close() }

func (g *GoogleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, &TransportError{Backend: "genai", Err: err}
	}
	if resp.Embedding == nil {
		return nil, &ResponseShapeError{Backend: "genai", Reason: "has no embedding"}
	}
	return g.checked(resp.Embedding.Values)
}

func (g *GoogleEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	batch := g.model.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}
	resp, err := g.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, &TransportError{Backend: "genai", Err: err}
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, &ResponseShapeError{
			Backend: "genai",
			Reason:  fmt.Sprintf("has %d embeddings for %d inputs", len(resp.Embeddings), len(texts)),
		}
	}
	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, &ResponseShapeError{Backend: "genai", Reason: fmt.Sprintf("has no embedding at %d", i)}
		}
		v, err := g.checked(emb.Values)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (g *GoogleEmbedder) checked(values []float32) ([]float32, error) {
	if len(values) != g.dim {
		return nil, &ResponseShapeError{
			Backend: "genai",
			Reason:  fmt.Sprintf("has dimension %d, configured %d", len(values), g.dim),
		}
	}
	return Normalize(values), nil
}

// Normalize returns a unit-length copy of v. A zero vector is returned as zeros.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}
