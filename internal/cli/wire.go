package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/prince1katiyar/Parking-project/internal/config"
	"github.com/prince1katiyar/Parking-project/internal/observability"
	"github.com/prince1katiyar/Parking-project/pkg/memory"
	"github.com/prince1katiyar/Parking-project/pkg/memory/embed"
	"github.com/prince1katiyar/Parking-project/pkg/models"
	"github.com/prince1katiyar/Parking-project/pkg/parking"
	"github.com/prince1katiyar/Parking-project/pkg/runtime"
	"github.com/prince1katiyar/Parking-project/pkg/tools"
)

type app struct {
	cfg     config.Config
	logger  *zap.Logger
	store   parking.Store
	metrics *observability.Metrics
	runtime *runtime.Runtime
	closers []func(context.Context) error
}

func openStore(ctx context.Context, cfg config.Config) (parking.Store, error) {
	store, err := parking.Open(ctx, parking.Options{
		Backend:       cfg.Store.Backend,
		PostgresDSN:   cfg.Store.PostgresDSN,
		MongoURI:      cfg.Store.MongoURI,
		MongoDatabase: cfg.Store.MongoDatabase,
	})
	if err != nil {
		return nil, fmt.Errorf("open parking store: %w", err)
	}
	return store, nil
}

// wireApp opens every backend named by cfg and assembles the runtime. On
// error anything already opened is closed again.
func wireApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	if cfg.Store.Seed {
		n, err := parking.Seed(ctx, store, parking.DefaultSeed())
		if err != nil {
			return nil, fmt.Errorf("seed parking store: %w", err)
		}
		logger.Info("parking store seeded", zap.Int("slots", n))
	}

	a.metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	a.store = observability.InstrumentStore(store, a.metrics)

	registry, err := tools.NewParkingRegistry(a.store)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}

	embedder, err := embed.New(ctx, embed.Config{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		CacheDir:  cfg.Embedding.CacheDir,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	if closer, ok := closerOf(embedder); ok {
		a.closers = append(a.closers, closer)
	}
	index, err := memory.OpenIndex(ctx, memory.IndexOptions{
		Backend:     cfg.Memory.Backend,
		Dimension:   cfg.Embedding.Dimension,
		PostgresDSN: cfg.Memory.PostgresDSN,
		Milvus: memory.MilvusConfig{
			Address:    cfg.Memory.Milvus.Address,
			Username:   cfg.Memory.Milvus.Username,
			Password:   cfg.Memory.Milvus.Password,
			Collection: cfg.Memory.Milvus.Collection,
		},
		Qdrant: memory.QdrantConfig{
			Host:       cfg.Memory.Qdrant.Host,
			Port:       cfg.Memory.Qdrant.Port,
			APIKey:     cfg.Memory.Qdrant.APIKey,
			UseTLS:     cfg.Memory.Qdrant.UseTLS,
			Collection: cfg.Memory.Qdrant.Collection,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open memory index: %w", err)
	}
	mem, err := memory.NewStore(index, embedder,
		memory.WithDimension(cfg.Embedding.Dimension),
		memory.WithCallTimeout(cfg.Memory.CallTimeout),
		memory.WithLogger(logger),
	)
	if err != nil {
		_ = index.Close(ctx)
		return nil, fmt.Errorf("create memory store: %w", err)
	}
	a.closers = append(a.closers, mem.Close)

	var locker runtime.Locker
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closer, _ := closerOf(client)
		a.closers = append(a.closers, closer)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		if locker, err = runtime.NewRedisLocker(client, cfg.Redis.LockTTL); err != nil {
			return nil, err
		}
		logger.Info("using redis session lock", zap.String("addr", cfg.Redis.Addr))
	}

	a.runtime, err = runtime.New(ctx,
		runtime.WithDecider(func(ctx context.Context) (models.Decider, error) {
			return models.NewDecider(ctx, cfg.Model.Provider, cfg.Model.Name)
		}),
		runtime.WithRegistry(registry),
		runtime.WithMemory(mem),
		runtime.WithLocker(locker),
		runtime.WithSystemPrompt(cfg.Agent.SystemPrompt),
		runtime.WithMaxIterations(cfg.Agent.MaxIterations),
		runtime.WithCallTimeout(cfg.Agent.CallTimeout),
		runtime.WithContextLimit(cfg.Agent.ContextLimit),
		runtime.WithLogger(logger),
		runtime.WithObserver(a.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	return a, nil
}

func closerOf(v any) (func(context.Context) error, bool) {
	c, ok := v.(io.Closer)
	if !ok {
		return nil, false
	}
	return func(context.Context) error { return c.Close() }, true
}

// Close releases backends in reverse order of opening.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
