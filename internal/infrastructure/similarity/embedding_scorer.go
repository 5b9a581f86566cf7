package similarity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
	"github.com/kirillkom/segment-advisor/internal/core/ports"
)

const defaultCacheSize = 2048

// EmbeddingScorer rates redundancy as the cosine similarity of document
// embeddings, clamped to [0,1]. Vectors are cached by content hash.
type EmbeddingScorer struct {
	embedder ports.Embedder
	cacheMu  sync.Mutex
	cache    *lru.Cache[string, []float32]
}

func NewEmbeddingScorer(embedder ports.Embedder, cacheSize int) (*EmbeddingScorer, error) {
	if embedder == nil {
		return nil, errors.New("scorer embedder is required")
	}
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}
	return &EmbeddingScorer{embedder: embedder, cache: cache}, nil
}

func (s *EmbeddingScorer) Similarity(ctx context.Context, a, b domain.Document) (float64, error) {
	if a.Content == b.Content {
		return 1, nil
	}
	if err := s.Warm(ctx, []domain.Document{a, b}); err != nil {
		return 0, err
	}
	va, okA := s.lookup(a.Content)
	vb, okB := s.lookup(b.Content)
	if !okA || !okB {
		return 0, errors.New("embedding evicted before comparison")
	}
	return cosine(va, vb)
}

// Warm embeds every uncached document in one batch.
func (s *EmbeddingScorer) Warm(ctx context.Context, docs []domain.Document) error {
	seen := make(map[string]struct{}, len(docs))
	missing := make([]string, 0, len(docs))
	for _, doc := range docs {
		key := cacheKey(doc.Content)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := s.lookup(doc.Content); !ok {
			missing = append(missing, doc.Content)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	vectors, err := s.embedder.Embed(ctx, missing)
	if err != nil {
		return fmt.Errorf("embed for redundancy: %w", err)
	}
	if len(vectors) != len(missing) {
		return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(missing))
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	for i, text := range missing {
		s.cache.Add(cacheKey(text), vectors[i])
	}
	return nil
}

func (s *EmbeddingScorer) lookup(text string) ([]float32, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.cache.Get(cacheKey(text))
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector size mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(0, math.Min(1, sim)), nil
}
