package parking

import (
	"context"
	"fmt"
	"strings"
)

// Backend options accepted by Open.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Options selects and configures a Store backend.
type Options struct {
	Backend       string
	PostgresDSN   string
	MongoURI      string
	MongoDatabase string
}

// Open returns the Store named by opts.Backend. An empty backend means in-memory.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendMemory:
		return NewInMemoryStore(), nil
	case BackendPostgres:
		return NewPostgresStore(ctx, opts.PostgresDSN)
	case BackendMongo:
		return NewMongoStore(ctx, opts.MongoURI, opts.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown parking store backend: %s", opts.Backend)
	}
}
