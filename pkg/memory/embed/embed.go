package embed

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder is a pluggable text-embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrNotSupported is returned by providers that produced no embedding.
var ErrNotSupported = errors.New("embeddings not supported by this provider")

// DefaultDimension matches text-embedding-3-small.
const DefaultDimension = 1536

// Config selects an embedding provider.
type Config struct {
	Provider  string
	Model     string
	Dimension int
	CacheDir  string
}

// New builds the embedder named by cfg.Provider:
// openai | gemini (google, vertex) | ollama | fastembed | dummy.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		return NewOpenAIEmbedder(cfg.Model, cfg.Dimension)
	case "google", "gemini", "vertex", "vertexai":
		return NewVertexAIEmbedder(ctx, cfg.Model)
	case "ollama":
		return NewOllamaEmbedder(cfg.Model)
	case "fastembed":
		return NewFastEmbedder(ctx, &Options{Model: cfg.Model, CacheDir: cfg.CacheDir})
	case "", "dummy":
		return NewDummyEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// ---------- Dummy (offline) ----------

// DummyEmbedder hashes lower-cased word tokens into a fixed number of buckets
// and L2-normalises the result. Deterministic, so texts sharing words score
// higher under cosine or L2 than unrelated texts.
type DummyEmbedder struct {
	Dim int
}

func NewDummyEmbedder(dim int) DummyEmbedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return DummyEmbedder{Dim: dim}
}

func (d DummyEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return DummyEmbedding(text, d.Dim), nil
}

// DummyEmbedding is kept for tests and fallbacks.
func DummyEmbedding(text string, dim int) []float32 {
	if dim <= 0 {
		dim = DefaultDimension
	}
	vec := make([]float32, dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%uint32(dim)] += 1
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
