package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/notesqa/internal/models"
)

type HistoryStoreConfig struct {
	ConnString  string
	TableName   string
	VectorDim   int
	SearchLimit int
}

// HistoryStore archives answered questions in Postgres, one row per answer
// chunk, with a pgvector embedding for similarity search.
type HistoryStore struct {
	config HistoryStoreConfig
	pool   *pgxpool.Pool
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func NewWithConfig(ctx context.Context, config HistoryStoreConfig) (*HistoryStore, error) {
	if config.TableName == "" {
		config.TableName = "query_history"
	}
	if !tableNamePattern.MatchString(config.TableName) {
		return nil, fmt.Errorf("invalid table name %q", config.TableName)
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 5
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	hs := &HistoryStore{
		config: config,
		pool:   pool,
	}

	if err := hs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return hs, nil
}

func (hs *HistoryStore) initialize(ctx context.Context) error {
	if _, err := hs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			answer_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			question TEXT NOT NULL,
			chunk TEXT NOT NULL,
			context JSONB,
			tokens INTEGER,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (answer_id, chunk_index)
		)`, hs.config.TableName, hs.config.VectorDim)

	if _, err := hs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING hnsw (embedding vector_cosine_ops)`,
		hs.config.TableName, hs.config.TableName)

	if _, err := hs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Store writes every chunk of answer with its embedding in one transaction.
// embeddings must line up with answer.Chunks.
func (hs *HistoryStore) Store(ctx context.Context, answer models.ProcessedAnswer, embeddings [][]float32) error {
	if len(embeddings) != len(answer.Chunks) {
		return fmt.Errorf("got %d embeddings for %d chunks", len(embeddings), len(answer.Chunks))
	}
	if answer.ID == "" {
		return errors.New("answer has no ID")
	}

	contextJSON, err := json.Marshal(answer.Context)
	if err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}

	tx, err := hs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (answer_id, chunk_index, question, chunk, context, tokens, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (answer_id, chunk_index) DO UPDATE SET
			chunk = EXCLUDED.chunk,
			embedding = EXCLUDED.embedding`,
		hs.config.TableName)

	question := sanitizeUTF8(answer.Question)
	for i, chunk := range answer.Chunks {
		if len(embeddings[i]) != hs.config.VectorDim {
			return fmt.Errorf("embedding %d has dimension %d, want %d", i, len(embeddings[i]), hs.config.VectorDim)
		}

		_, err = tx.Exec(ctx, stmt,
			answer.ID,
			i,
			question,
			sanitizeUTF8(chunk),
			contextJSON,
			answer.Tokens,
			pgvector.NewVector(embeddings[i]),
			answer.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Query returns the archived chunks nearest to embedding by cosine distance.
func (hs *HistoryStore) Query(ctx context.Context, embedding []float32, limit int) ([]models.HistoryMatch, error) {
	if limit <= 0 {
		limit = hs.config.SearchLimit
	}

	query := fmt.Sprintf(`
		SELECT answer_id, question, chunk, embedding <=> $1 AS distance, created_at
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		hs.config.TableName)

	rows, err := hs.pool.Query(ctx, query, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var matches []models.HistoryMatch
	for rows.Next() {
		var m models.HistoryMatch
		if err := rows.Scan(&m.AnswerID, &m.Question, &m.Chunk, &m.Distance, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	return matches, nil
}

func (hs *HistoryStore) Close() {
	if hs.pool != nil {
		hs.pool.Close()
	}
}

// sanitizeUTF8 drops invalid bytes, which Postgres rejects in TEXT columns.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
