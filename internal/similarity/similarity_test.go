package similarity

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// stubEmbedder builds a bag-of-letters vector so identical texts get identical vectors.
type stubEmbedder struct {
	mu    sync.Mutex
	calls int
	texts []string
	err   error
}

func (s *stubEmbedder) Embed(_ context.Context, texts ...string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.texts = append(s.texts, texts...)
	if s.err != nil {
		return nil, s.err
	}

	result := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vector := make([]float32, 26)
		for _, r := range strings.ToLower(text) {
			if r >= 'a' && r <= 'z' {
				vector[r-'a']++
			}
		}
		result = append(result, vector)
	}
	return result, nil
}

func (s *stubEmbedder) Model() string { return "stub-embedding" }

func TestCosine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		a, b   []float32
		expect float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, expect: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, expect: 0},
		{name: "opposite clamps to zero", a: []float32{1, 0}, b: []float32{-1, 0}, expect: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, expect: 0},
		{name: "length mismatch", a: []float32{1}, b: []float32{1, 1}, expect: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.expect) > 1e-9 {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}

func TestSimilarityEmptyInputSkipsEmbedder(t *testing.T) {
	embedder := &stubEmbedder{}
	engine := NewEngine(embedder, nil, nil)

	got, err := engine.Similarity(context.Background(), "   ", "golang developer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != 0 {
		t.Fatalf("expected 0 for empty input, got %v", got)
	}

	if embedder.calls != 0 {
		t.Fatalf("expected embedder not to be called, got %d calls", embedder.calls)
	}
}

func TestSimilarityDeterministic(t *testing.T) {
	engine := NewEngine(&stubEmbedder{}, nil, nil)
	ctx := context.Background()

	first, err := engine.Similarity(ctx, "python developer with sql", "senior python engineer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := engine.Similarity(ctx, "python developer with sql", "senior python engineer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != second {
		t.Fatalf("expected identical results, got %v and %v", first, second)
	}

	if first <= 0 || first > 1 {
		t.Fatalf("expected similarity in (0,1], got %v", first)
	}
}

func TestSimilarityPropagatesEmbedderError(t *testing.T) {
	engine := NewEngine(&stubEmbedder{err: errors.New("quota")}, nil, nil)

	if _, err := engine.Similarity(context.Background(), "a", "b"); err == nil {
		t.Fatalf("expected error from embedder")
	}
}

func TestSimilarityUsesRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	embedder := &stubEmbedder{}
	engine := NewEngine(embedder, NewRedisVectorCache(client, time.Hour), nil)
	ctx := context.Background()

	first, err := engine.Similarity(ctx, "resume text", "job text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := engine.Similarity(ctx, "resume text", "another job text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first <= 0 || second <= 0 {
		t.Fatalf("expected positive similarities, got %v and %v", first, second)
	}

	if embedder.calls != 2 {
		t.Fatalf("expected 2 embed calls, got %d", embedder.calls)
	}

	// the resume text is served from the cache on the second call
	if len(embedder.texts) != 3 {
		t.Fatalf("expected 3 embedded texts, got %d: %v", len(embedder.texts), embedder.texts)
	}

	key := vectorKeyPrefix + textKey("resume text")
	if ttl := mr.TTL(key); ttl <= 0 {
		t.Fatalf("expected ttl on %s, got %v", key, ttl)
	}
}

func TestRedisVectorCacheIgnoresOtherModel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cache := NewRedisVectorCache(client, 0)
	ctx := context.Background()

	if err := cache.Set(ctx, "k", "model-a", []float32{1, 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := cache.Get(ctx, "k", "model-b"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss for other model, got %v", err)
	}

	vector, err := cache.Get(ctx, "k", "model-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(vector) != 2 || vector[1] != 2 {
		t.Fatalf("unexpected vector: %v", vector)
	}

	if _, err := cache.Get(ctx, "missing", "model-a"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}
}
