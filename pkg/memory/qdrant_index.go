package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

const (
	DefaultQdrantCollection = "parking_conversations"
	DefaultQdrantPort       = 6334

	qdrantFieldSession   = "session_id"
	qdrantFieldRole      = "role"
	qdrantFieldText      = "text"
	qdrantFieldSequence  = "sequence"
	qdrantFieldCreatedAt = "created_at"
)

// QdrantConfig configures a QdrantIndex. Port is the gRPC port.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
}

// QdrantIndex stores turns as points in a cosine collection with a keyword
// index on session_id. Upserts wait for the write to be applied.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dim        int
	logger     *zap.Logger
}

func NewQdrantIndex(ctx context.Context, cfg QdrantConfig, logger *zap.Logger) (*QdrantIndex, error) {
	if cfg.Host == "" {
		return nil, errors.New("qdrant host is required")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("qdrant index requires a positive embedding dimension")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultQdrantPort
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultQdrantCollection
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cli, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}
	q := &QdrantIndex{client: cli, collection: cfg.Collection, dim: cfg.Dimension, logger: logger}
	if err := q.ensureCollection(ctx); err != nil {
		_ = cli.Close()
		return nil, err
	}
	return q, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}
	q.logger.Info("creating qdrant collection",
		zap.String("collection", q.collection), zap.Int("dimension", q.dim))
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		FieldName:      qdrantFieldSession,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to index session_id: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Insert(ctx context.Context, turn Turn) (Turn, error) {
	if len(turn.Embedding) != q.dim {
		return Turn{}, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(turn.Embedding), q.dim)
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	turn.Sequence = turn.CreatedAt.UnixNano()

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(uuid.NewString()),
			Vectors: qdrant.NewVectors(turn.Embedding...),
			Payload: map[string]*qdrant.Value{
				qdrantFieldSession:   qdrant.NewValueString(turn.SessionID),
				qdrantFieldRole:      qdrant.NewValueString(string(turn.Role)),
				qdrantFieldText:      qdrant.NewValueString(turn.Text),
				qdrantFieldSequence:  qdrant.NewValueInt(turn.Sequence),
				qdrantFieldCreatedAt: qdrant.NewValueString(turn.CreatedAt.Format(time.RFC3339Nano)),
			},
		}},
	})
	if err != nil {
		return Turn{}, fmt.Errorf("failed to upsert turn: %w", err)
	}
	return turn, nil
}

// Search runs a cosine query restricted to sessionID by a payload filter.
func (q *QdrantIndex) Search(ctx context.Context, sessionID string, query []float32, k int) ([]Turn, error) {
	if k <= 0 {
		return nil, nil
	}
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(qdrantFieldSession, sessionID)},
		},
		Limit:       qdrant.PtrOf(uint64(k)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	turns := make([]Turn, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		t := Turn{
			SessionID: payload[qdrantFieldSession].GetStringValue(),
			Role:      Role(payload[qdrantFieldRole].GetStringValue()),
			Text:      payload[qdrantFieldText].GetStringValue(),
			Sequence:  payload[qdrantFieldSequence].GetIntegerValue(),
			Score:     float64(p.GetScore()),
		}
		if ts, err := time.Parse(time.RFC3339Nano, payload[qdrantFieldCreatedAt].GetStringValue()); err == nil {
			t.CreatedAt = ts
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (q *QdrantIndex) Close(context.Context) error {
	if q == nil || q.client == nil {
		return nil
	}
	return q.client.Close()
}
