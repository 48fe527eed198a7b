package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	client "github.com/milvus-io/milvus/client/v2/milvusclient"
	"go.uber.org/zap"
)

const (
	DefaultMilvusCollection = "parking_conversations"

	milvusFieldID        = "id"
	milvusFieldSession   = "session_id"
	milvusFieldText      = "text"
	milvusFieldRole      = "role"
	milvusFieldCreatedAt = "created_at"
	milvusFieldEmbedding = "embedding"

	milvusNList  = 128
	milvusNProbe = 10
)

// MilvusConfig configures a MilvusIndex.
type MilvusConfig struct {
	Address    string
	Username   string
	Password   string
	Collection string
	Dimension  int
}

// MilvusIndex stores turns in a Milvus collection (L2 metric, IVF_FLAT).
// Every insert is flushed before it returns.
type MilvusIndex struct {
	client     *client.Client
	collection string
	dim        int
	logger     *zap.Logger
}

func NewMilvusIndex(ctx context.Context, cfg MilvusConfig, logger *zap.Logger) (*MilvusIndex, error) {
	if cfg.Address == "" {
		return nil, errors.New("milvus address is required")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("milvus index requires a positive embedding dimension")
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultMilvusCollection
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cli, err := client.New(ctx, &client.ClientConfig{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}
	m := &MilvusIndex{client: cli, collection: cfg.Collection, dim: cfg.Dimension, logger: logger}
	if err := m.ensureCollection(ctx); err != nil {
		_ = cli.Close(ctx)
		return nil, err
	}
	return m, nil
}

func (m *MilvusIndex) ensureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, client.NewHasCollectionOption(m.collection))
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !has {
		m.logger.Info("creating milvus collection",
			zap.String("collection", m.collection), zap.Int("dimension", m.dim))
		schema := &entity.Schema{
			CollectionName: m.collection,
			Description:    "Parking conversation history",
			AutoID:         true,
			Fields: []*entity.Field{
				entity.NewField().
					WithName(milvusFieldID).
					WithDataType(entity.FieldTypeInt64).
					WithIsPrimaryKey(true).
					WithIsAutoID(true),
				entity.NewField().
					WithName(milvusFieldSession).
					WithDataType(entity.FieldTypeVarChar).
					WithMaxLength(255),
				entity.NewField().
					WithName(milvusFieldText).
					WithDataType(entity.FieldTypeVarChar).
					WithMaxLength(65535),
				entity.NewField().
					WithName(milvusFieldRole).
					WithDataType(entity.FieldTypeVarChar).
					WithMaxLength(16),
				entity.NewField().
					WithName(milvusFieldCreatedAt).
					WithDataType(entity.FieldTypeInt64),
				entity.NewField().
					WithName(milvusFieldEmbedding).
					WithDataType(entity.FieldTypeFloatVector).
					WithDim(int64(m.dim)),
			},
		}
		idx := client.NewCreateIndexOption(m.collection, milvusFieldEmbedding, index.NewIvfFlatIndex(entity.L2, milvusNList))
		if err := m.client.CreateCollection(ctx, client.NewCreateCollectionOption(m.collection, schema).WithIndexOptions(idx)); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}
	loadTask, err := m.client.LoadCollection(ctx, client.NewLoadCollectionOption(m.collection))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed waiting for collection load: %w", err)
	}
	return nil
}

func (m *MilvusIndex) Insert(ctx context.Context, turn Turn) (Turn, error) {
	if len(turn.Embedding) != m.dim {
		return Turn{}, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(turn.Embedding), m.dim)
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	opt := client.NewColumnBasedInsertOption(m.collection).
		WithVarcharColumn(milvusFieldSession, []string{turn.SessionID}).
		WithVarcharColumn(milvusFieldText, []string{turn.Text}).
		WithVarcharColumn(milvusFieldRole, []string{string(turn.Role)}).
		WithInt64Column(milvusFieldCreatedAt, []int64{turn.CreatedAt.UnixNano()}).
		WithFloatVectorColumn(milvusFieldEmbedding, m.dim, [][]float32{turn.Embedding})
	res, err := m.client.Insert(ctx, opt)
	if err != nil {
		return Turn{}, fmt.Errorf("failed to insert turn: %w", err)
	}
	if res.IDs != nil && res.IDs.Len() > 0 {
		if id, err := res.IDs.GetAsInt64(0); err == nil {
			turn.Sequence = id
		}
	}
	if turn.Sequence == 0 {
		turn.Sequence = turn.CreatedAt.UnixNano()
	}

	flushTask, err := m.client.Flush(ctx, client.NewFlushOption(m.collection))
	if err != nil {
		return Turn{}, fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return Turn{}, fmt.Errorf("failed waiting for flush: %w", err)
	}
	return turn, nil
}

// Search runs an L2 nearest-neighbour query filtered on session_id.
// Score is the negated distance so that larger means closer.
func (m *MilvusIndex) Search(ctx context.Context, sessionID string, query []float32, k int) ([]Turn, error) {
	if k <= 0 {
		return nil, nil
	}
	opt := client.NewSearchOption(m.collection, k, []entity.Vector{entity.FloatVector(query)}).
		WithANNSField(milvusFieldEmbedding).
		WithAnnParam(index.NewIvfAnnParam(milvusNProbe)).
		WithFilter(milvusFieldSession+" == {sid}").
		WithTemplateParam("sid", sessionID).
		WithOutputFields(milvusFieldSession, milvusFieldText, milvusFieldRole, milvusFieldCreatedAt)
	sets, err := m.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(sets) == 0 {
		return nil, nil
	}
	return convertMilvusResult(sets[0])
}

func convertMilvusResult(set client.ResultSet) ([]Turn, error) {
	sessions := set.GetColumn(milvusFieldSession)
	texts := set.GetColumn(milvusFieldText)
	roles := set.GetColumn(milvusFieldRole)
	created := set.GetColumn(milvusFieldCreatedAt)
	if sessions == nil || texts == nil || roles == nil {
		return nil, errors.New("milvus result is missing output fields")
	}

	turns := make([]Turn, 0, set.ResultCount)
	for i := 0; i < set.ResultCount; i++ {
		var (
			t   Turn
			err error
		)
		if t.SessionID, err = sessions.GetAsString(i); err != nil {
			return nil, err
		}
		if t.Text, err = texts.GetAsString(i); err != nil {
			return nil, err
		}
		role, err := roles.GetAsString(i)
		if err != nil {
			return nil, err
		}
		t.Role = Role(role)
		if created != nil {
			if ns, err := created.GetAsInt64(i); err == nil {
				t.CreatedAt = time.Unix(0, ns).UTC()
			}
		}
		if set.IDs != nil {
			if id, err := set.IDs.GetAsInt64(i); err == nil {
				t.Sequence = id
			}
		}
		if i < len(set.Scores) {
			t.Score = -float64(set.Scores[i])
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (m *MilvusIndex) Close(ctx context.Context) error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close(ctx)
}
