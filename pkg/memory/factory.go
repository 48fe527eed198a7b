package memory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMilvus   = "milvus"
	BackendQdrant   = "qdrant"
)

// IndexOptions selects and configures an Index backend.
type IndexOptions struct {
	Backend     string
	Dimension   int
	PostgresDSN string
	Milvus      MilvusConfig
	Qdrant      QdrantConfig
}

// OpenIndex returns the Index named by opts.Backend. An empty backend means in-memory.
func OpenIndex(ctx context.Context, opts IndexOptions, logger *zap.Logger) (Index, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendMemory:
		return NewInMemoryIndex(), nil
	case BackendPostgres:
		idx, err := NewPostgresIndex(ctx, opts.PostgresDSN, opts.Dimension)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case BackendMilvus:
		cfg := opts.Milvus
		if cfg.Dimension == 0 {
			cfg.Dimension = opts.Dimension
		}
		idx, err := NewMilvusIndex(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case BackendQdrant:
		cfg := opts.Qdrant
		if cfg.Dimension == 0 {
			cfg.Dimension = opts.Dimension
		}
		idx, err := NewQdrantIndex(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown memory backend: %s", opts.Backend)
	}
}
