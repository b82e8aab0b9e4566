package types

import (
	"context"

	"github.com/xhad/notesqa/internal/models"
)

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type HistoryStore interface {
	Store(ctx context.Context, answer models.ProcessedAnswer, embeddings [][]float32) error
	Query(ctx context.Context, embedding []float32, limit int) ([]models.HistoryMatch, error)
	Close()
}

type Processor interface {
	Process(records []models.AnswerRecord) ([]models.ProcessedAnswer, error)
}
