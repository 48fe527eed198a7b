package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresIndex implements Index using Postgres + pgvector.
type PostgresIndex struct {
	DB  *pgxpool.Pool
	dim int
}

// NewPostgresIndex connects to Postgres and ensures the turn table exists.
func NewPostgresIndex(ctx context.Context, connStr string, dim int) (*PostgresIndex, error) {
	if dim <= 0 {
		return nil, errors.New("postgres index requires a positive embedding dimension")
	}
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	idx := &PostgresIndex{DB: db, dim: dim}
	if err := idx.CreateSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// CreateSchema ensures the pgvector extension and turn table are available.
func (p *PostgresIndex) CreateSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS conversation_turns (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`, p.dim),
		`CREATE INDEX IF NOT EXISTS idx_conversation_turns_session ON conversation_turns (session_id, id);`,
	}
	for _, stmt := range stmts {
		if _, err := p.DB.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}
	return nil
}

// Insert writes the turn in a single autocommitted statement.
func (p *PostgresIndex) Insert(ctx context.Context, turn Turn) (Turn, error) {
	err := p.DB.QueryRow(ctx, `
		INSERT INTO conversation_turns (session_id, role, text, embedding, created_at)
		VALUES ($1, $2, $3, $4::vector, $5)
		RETURNING id`,
		turn.SessionID, string(turn.Role), turn.Text, pgvector.NewVector(turn.Embedding), turn.CreatedAt,
	).Scan(&turn.Sequence)
	if err != nil {
		return Turn{}, err
	}
	return turn, nil
}

// Search orders by L2 distance within the session; Score is the negated distance.
func (p *PostgresIndex) Search(ctx context.Context, sessionID string, query []float32, k int) ([]Turn, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := p.DB.Query(ctx, `
		SELECT id, session_id, role, text, created_at, (embedding <-> $1::vector) AS distance
		FROM conversation_turns
		WHERE session_id = $2
		ORDER BY distance ASC, id DESC
		LIMIT $3`,
		pgvector.NewVector(query), sessionID, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			t        Turn
			role     string
			distance float64
		)
		if err := rows.Scan(&t.Sequence, &t.SessionID, &role, &t.Text, &t.CreatedAt, &distance); err != nil {
			return nil, err
		}
		t.Role = Role(role)
		t.Score = -distance
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Close releases the underlying Postgres connection pool.
func (p *PostgresIndex) Close(context.Context) error {
	if p == nil || p.DB == nil {
		return nil
	}
	p.DB.Close()
	return nil
}
