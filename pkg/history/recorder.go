// Package history archives answers from the genAI service so earlier
// answers can be searched by meaning.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xhad/notesqa/internal/models"
	"github.com/xhad/notesqa/internal/types"
)

var ErrEmptyQuery = errors.New("search text is empty")

type Recorder struct {
	processor types.Processor
	embedder  types.Embedder
	store     types.HistoryStore
	logger    *zap.Logger
	now       func() time.Time
}

func NewRecorder(processor types.Processor, embedder types.Embedder, store types.HistoryStore, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		processor: processor,
		embedder:  embedder,
		store:     store,
		logger:    logger.Named("history"),
		now:       time.Now,
	}
}

// Record chunks, embeds and stores resp. It returns the ID assigned to the
// answer, or "" when the answer had nothing worth storing.
func (r *Recorder) Record(ctx context.Context, resp models.QueryResponse) (string, error) {
	record := models.AnswerRecord{
		ID:        uuid.NewString(),
		Question:  resp.Question,
		Response:  resp.Response,
		Context:   resp.Context,
		Tokens:    resp.Tokens,
		CreatedAt: r.now().UTC(),
	}

	processed, err := r.processor.Process([]models.AnswerRecord{record})
	if err != nil {
		return "", fmt.Errorf("failed to process answer: %w", err)
	}
	if len(processed) == 0 {
		r.logger.Debug("Skipping empty answer", zap.String("question", resp.Question))
		return "", nil
	}

	answer := processed[0]
	embeddings, err := r.embedder.EmbedDocuments(ctx, answer.Chunks)
	if err != nil {
		return "", fmt.Errorf("failed to embed answer: %w", err)
	}

	if err := r.store.Store(ctx, answer, embeddings); err != nil {
		return "", err
	}

	r.logger.Info("Recorded answer",
		zap.String("id", answer.ID),
		zap.Int("chunks", len(answer.Chunks)))

	return answer.ID, nil
}

// Search returns up to limit archived chunks closest in meaning to text.
func (r *Recorder) Search(ctx context.Context, text string, limit int) ([]models.HistoryMatch, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}

	embedding, err := r.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	return r.store.Query(ctx, embedding, limit)
}

func (r *Recorder) Close() {
	r.store.Close()
}
