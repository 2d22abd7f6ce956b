package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aksharjobs/matchscore/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel          = "gemini-2.5-flash"
	defaultEmbeddingModel = "gemini-embedding-001"
	defaultMaxRetries     = 3
	defaultRetryDelay     = 2 * time.Second
	// maxQuotaDelay is the longest server-requested wait that is still retried.
	maxQuotaDelay = 30 * time.Second
)

var retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*s`)

// modelsAPI is the subset of genai.Models used by the Generator.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Options configure a Generator.
type Options struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	MaxRetries     int
	Logger         *zap.Logger
}

// Generator wraps the Google GenAI client for prompt completion and text embeddings.
type Generator struct {
	models         modelsAPI
	modelName      string
	embeddingModel string
	maxRetries     int
	retryDelay     time.Duration
	logger         *zap.Logger
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, opts Options) (*Generator, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, opts), nil
}

func newGenerator(models modelsAPI, opts Options) *Generator {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	embeddingModel := strings.TrimSpace(opts.EmbeddingModel)
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		models:         models,
		modelName:      model,
		embeddingModel: embeddingModel,
		maxRetries:     maxRetries,
		retryDelay:     defaultRetryDelay,
		logger:         logger,
	}
}

// GenerateContent sends the prompt to Gemini and returns the textual response.
// The model is asked for a JSON response.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	config := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}

	return utils.Retry(ctx, g.retryPolicy("generate content"), func(ctx context.Context) (string, error) {
		resp, err := g.models.GenerateContent(ctx, g.modelName, genai.Text(prompt), config)
		if err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}
		return responseText(resp)
	})
}

// Embed returns one embedding per text, in order.
func (g *Generator) Embed(ctx context.Context, texts ...string) ([][]float32, error) {
	if g == nil || g.models == nil {
		return nil, errors.New("gemini generator is not initialized")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	config := &genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"}

	return utils.Retry(ctx, g.retryPolicy("embed content"), func(ctx context.Context) ([][]float32, error) {
		resp, err := g.models.EmbedContent(ctx, g.embeddingModel, contents, config)
		if err != nil {
			return nil, fmt.Errorf("embed content: %w", err)
		}
		if resp == nil || len(resp.Embeddings) != len(texts) {
			return nil, fmt.Errorf("gemini api returned %d embeddings for %d texts", embeddingsLen(resp), len(texts))
		}

		vectors := make([][]float32, 0, len(resp.Embeddings))
		for _, embedding := range resp.Embeddings {
			if embedding == nil || len(embedding.Values) == 0 {
				return nil, errors.New("gemini api returned an empty embedding")
			}
			vectors = append(vectors, embedding.Values)
		}
		return vectors, nil
	})
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}

// EmbeddingModel returns the model used by Embed.
func (g *Generator) EmbeddingModel() string {
	if g == nil {
		return ""
	}
	return g.embeddingModel
}

// Embeddings exposes the embedding side of the generator, reporting the
// embedding model as its model name.
func (g *Generator) Embeddings() *Embeddings {
	return &Embeddings{generator: g}
}

// Embeddings adapts a Generator to the similarity embedder contract.
type Embeddings struct {
	generator *Generator
}

func (e *Embeddings) Embed(ctx context.Context, texts ...string) ([][]float32, error) {
	return e.generator.Embed(ctx, texts...)
}

func (e *Embeddings) Model() string {
	return e.generator.EmbeddingModel()
}

func (g *Generator) retryPolicy(operation string) utils.RetryPolicy {
	return utils.RetryPolicy{
		Attempts: g.maxRetries,
		Delay: func(attempt int, err error) (time.Duration, bool) {
			return retryDelay(err, time.Duration(attempt)*g.retryDelay)
		},
		OnRetry: func(attempt int, delay time.Duration, err error) {
			g.logger.Warn("retrying gemini request",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		},
	}
}

// retryDelay decides whether err is temporary and how long to wait. Server
// errors use the linear backoff; quota errors use the delay requested by the
// server when it is short enough.
func retryDelay(err error, backoff time.Duration) (time.Duration, bool) {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	default:
		return 0, false
	}

	switch {
	case apiErr.Code >= http.StatusInternalServerError:
		return backoff, true
	case apiErr.Code == http.StatusTooManyRequests:
		requested, ok := requestedDelay(apiErr.Message)
		if !ok {
			return backoff, true
		}
		if requested > maxQuotaDelay {
			return 0, false
		}
		return requested, true
	default:
		return 0, false
	}
}

func requestedDelay(message string) (time.Duration, bool) {
	m := retryAfterPattern.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned empty response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

func embeddingsLen(resp *genai.EmbedContentResponse) int {
	if resp == nil {
		return 0
	}
	return len(resp.Embeddings)
}
