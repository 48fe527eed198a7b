package memory

import (
	"context"
	"math"
	"sort"
	"sync"
)

// InMemoryIndex implements Index for tests and lightweight deployments.
type InMemoryIndex struct {
	mu      sync.RWMutex
	nextSeq int64
	turns   map[string][]Turn
}

func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{turns: make(map[string][]Turn)}
}

func (x *InMemoryIndex) Insert(_ context.Context, turn Turn) (Turn, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.turns == nil {
		x.turns = make(map[string][]Turn)
	}
	x.nextSeq++
	turn.Sequence = x.nextSeq
	turn.Embedding = append([]float32(nil), turn.Embedding...)
	turn.Score = 0
	x.turns[turn.SessionID] = append(x.turns[turn.SessionID], turn)
	return turn, nil
}

func (x *InMemoryIndex) Search(_ context.Context, sessionID string, query []float32, k int) ([]Turn, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if k <= 0 {
		return nil, nil
	}
	stored := x.turns[sessionID]
	scored := make([]Turn, 0, len(stored))
	for _, t := range stored {
		t.Score = cosineSimilarity(query, t.Embedding)
		scored = append(scored, t)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Sequence > scored[j].Sequence
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Replay returns a session's turns in insertion order.
func (x *InMemoryIndex) Replay(sessionID string) []Turn {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]Turn(nil), x.turns[sessionID]...)
}

func (x *InMemoryIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n := 0
	for _, turns := range x.turns {
		n += len(turns)
	}
	return n
}

func (x *InMemoryIndex) Close(context.Context) error { return nil }

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	length := len(a)
	if len(b) < length {
		length = len(b)
	}
	for i := 0; i < length; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
