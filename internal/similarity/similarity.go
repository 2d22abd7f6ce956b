package similarity

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

// Embedder turns texts into dense vectors. Implementations must be deterministic
// for identical inputs.
type Embedder interface {
	Embed(ctx context.Context, texts ...string) ([][]float32, error)
	Model() string
}

// Engine computes semantic similarity of two texts.
type Engine struct {
	embedder Embedder
	cache    VectorCache
	logger   *zap.Logger
}

// NewEngine creates an Engine. The cache is optional.
func NewEngine(embedder Embedder, cache VectorCache, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{embedder: embedder, cache: cache, logger: logger}
}

// Similarity returns the cosine similarity of the two texts clamped to [0,1].
// Empty text on either side yields 0 without calling the embedder.
func (e *Engine) Similarity(ctx context.Context, a, b string) (float64, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return 0, nil
	}
	if e == nil || e.embedder == nil {
		return 0, errors.New("similarity engine has no embedder")
	}

	vectors, err := e.vectors(ctx, a, b)
	if err != nil {
		return 0, err
	}

	return Cosine(vectors[0], vectors[1]), nil
}

// vectors returns the embeddings of the texts, serving cached vectors when
// available and embedding the rest in one request.
func (e *Engine) vectors(ctx context.Context, texts ...string) ([][]float32, error) {
	model := e.embedder.Model()
	result := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	missing := make([]string, 0, len(texts))
	missingIdx := make([]int, 0, len(texts))
	for i, text := range texts {
		keys[i] = textKey(text)
		if e.cache != nil {
			vector, err := e.cache.Get(ctx, keys[i], model)
			switch {
			case err == nil:
				result[i] = vector
				continue
			case !errors.Is(err, ErrCacheMiss):
				e.logger.Warn("reading cached embedding", zap.String("key", keys[i]), zap.Error(err))
			}
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return result, nil
	}

	embedded, err := e.embedder.Embed(ctx, missing...)
	if err != nil {
		return nil, fmt.Errorf("embed texts: %w", err)
	}
	if len(embedded) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embedded), len(missing))
	}

	for j, idx := range missingIdx {
		result[idx] = embedded[j]
		if e.cache == nil {
			continue
		}
		if err := e.cache.Set(ctx, keys[idx], model, embedded[j]); err != nil {
			e.logger.Warn("caching embedding", zap.String("key", keys[idx]), zap.Error(err))
		}
	}

	e.logger.Debug("embedded texts",
		zap.Int("requested", len(texts)),
		zap.Int("embedded", len(missing)),
		zap.String("model", model),
	)

	return result, nil
}

// Cosine returns dot(a,b)/(|a||b|) clamped to [0,1]. Mismatched lengths or
// zero vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) {
		return 0
	}
	return math.Min(1, math.Max(0, sim))
}

func textKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", sum[:])
}
