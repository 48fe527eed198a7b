package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/prince1katiyar/Parking-project/pkg/memory/embed"
)

const defaultCallTimeout = 10 * time.Second

// Store is the per-session conversation memory: an embedder in front of an Index.
type Store struct {
	index    Index
	embedder embed.Embedder
	dim      int
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithDimension pins the embedding dimension; vectors of any other length are rejected.
func WithDimension(dim int) StoreOption {
	return func(s *Store) { s.dim = dim }
}

// WithCallTimeout bounds each embedding and index call that has no deadline of its own.
func WithCallTimeout(d time.Duration) StoreOption {
	return func(s *Store) { s.timeout = d }
}

func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewStore(index Index, embedder embed.Embedder, opts ...StoreOption) (*Store, error) {
	if index == nil {
		return nil, errors.New("memory store requires an index")
	}
	if embedder == nil {
		return nil, errors.New("memory store requires an embedder")
	}
	s := &Store{
		index:    index,
		embedder: embedder,
		timeout:  defaultCallTimeout,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Append embeds and persists one turn. Blank text is a no-op that reports
// inserted == false without error. The turn is durable when Append returns.
func (s *Store) Append(ctx context.Context, sessionID string, role Role, text string) (Turn, bool, error) {
	if strings.TrimSpace(text) == "" {
		return Turn{}, false, nil
	}
	if strings.TrimSpace(sessionID) == "" {
		return Turn{}, false, fmt.Errorf("%w: session id is required", ErrStoreFailure)
	}
	if !role.Valid() {
		return Turn{}, false, fmt.Errorf("%w: unknown role %q", ErrStoreFailure, role)
	}

	vec, err := s.embed(ctx, text)
	if err != nil {
		return Turn{}, false, err
	}

	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	turn, err := s.index.Insert(callCtx, Turn{
		SessionID: sessionID,
		Role:      role,
		Text:      text,
		Embedding: vec,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return Turn{}, false, fmt.Errorf("%w: insert turn: %w", ErrStoreFailure, err)
	}
	s.logger.Debug("memory turn stored",
		zap.String("session_id", sessionID),
		zap.String("role", string(role)),
		zap.Int64("sequence", turn.Sequence))
	return turn, true, nil
}

// Retrieve returns up to k turns of sessionID ordered from most to least
// similar to query, ties going to the most recently inserted turn. Candidates
// from the index are re-checked against sessionID before inclusion.
func (s *Store) Retrieve(ctx context.Context, sessionID, query string, k int) ([]Turn, error) {
	if strings.TrimSpace(query) == "" || k <= 0 {
		return []Turn{}, nil
	}
	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	candidates, err := s.index.Search(callCtx, sessionID, vec, k)
	if err != nil {
		return nil, fmt.Errorf("%w: search turns: %w", ErrStoreFailure, err)
	}

	out := make([]Turn, 0, len(candidates))
	for _, c := range candidates {
		if c.SessionID != sessionID {
			s.logger.Warn("dropping memory candidate from another session",
				zap.String("session_id", sessionID),
				zap.Int64("sequence", c.Sequence))
			continue
		}
		out = append(out, c)
	}
	sortBySimilarity(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Close releases the underlying index.
func (s *Store) Close(ctx context.Context) error {
	return s.index.Close(ctx)
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	vec, err := s.embedder.Embed(callCtx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed: %w", ErrStoreFailure, err)
	}
	if len(vec) == 0 || (s.dim > 0 && len(vec) != s.dim) {
		return nil, fmt.Errorf("%w: %w: got %d, want %d", ErrStoreFailure, ErrDimensionMismatch, len(vec), s.dim)
	}
	return vec, nil
}

func (s *Store) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline || s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func sortBySimilarity(turns []Turn) {
	sort.SliceStable(turns, func(i, j int) bool {
		if turns[i].Score != turns[j].Score {
			return turns[i].Score > turns[j].Score
		}
		return turns[i].Sequence > turns[j].Sequence
	})
}
