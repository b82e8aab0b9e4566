package queries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/xhad/notesqa/internal/models"
	"github.com/xhad/notesqa/pkg/sse"
)

var ErrNoReader = errors.New("failed to get response reader")

// Stream is a pull iterator over the chunks of one streamed answer. It owns
// the underlying response until Close is called.
type Stream struct {
	ctx      context.Context
	body     io.ReadCloser
	reader   *sse.Reader
	logger   *zap.Logger
	complete json.RawMessage
	finished bool
}

// OpenStream submits question to the streaming endpoint and returns once the
// response headers have arrived. Cancelling ctx aborts the read loop.
func (c *Client) OpenStream(ctx context.Context, question string) (*Stream, error) {
	req, err := c.api.NewRequest(ctx, http.MethodPost, "/queries/streams", nil, models.QueryRequest{Question: question})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.api.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body []byte
		if resp.Body != nil {
			body, _ = io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}
	if resp.Body == nil {
		return nil, ErrNoReader
	}

	return &Stream{
		ctx:    ctx,
		body:   resp.Body,
		reader: sse.NewReader(resp.Body),
		logger: c.logger,
	}, nil
}

// Next returns the next chunk. It returns io.EOF when the server ends the
// stream or sends the done sentinel. Frames that are not valid JSON are
// logged and skipped.
func (s *Stream) Next() (models.StreamChunk, error) {
	for {
		if s.finished {
			return models.StreamChunk{}, io.EOF
		}
		if err := s.ctx.Err(); err != nil {
			return models.StreamChunk{}, err
		}

		payload, err := s.reader.Next()
		if errors.Is(err, io.EOF) {
			s.finished = true
			return models.StreamChunk{}, io.EOF
		}
		if err != nil {
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				return models.StreamChunk{}, ctxErr
			}
			return models.StreamChunk{}, fmt.Errorf("failed to read stream: %w", err)
		}

		var chunk models.StreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			s.logger.Warn("Failed to parse SSE data",
				zap.String("data", payload),
				zap.Error(err))
			continue
		}

		if chunk.Type == models.ChunkComplete {
			s.complete = chunk.Data
		}
		return chunk, nil
	}
}

// Complete returns the payload of the complete chunk, if one has been read.
func (s *Stream) Complete() (json.RawMessage, bool) {
	return s.complete, s.complete != nil
}

func (s *Stream) Close() error {
	s.finished = true
	return s.body.Close()
}

// StreamHandlers receive the events of SubmitQueryStream. OnComplete and
// OnError may be nil.
type StreamHandlers struct {
	OnChunk    func(chunk models.StreamChunk)
	OnComplete func(data json.RawMessage)
	OnError    func(message string)
}

// SubmitQueryStream streams the answer to question through h. Every chunk
// goes to OnChunk; a complete chunk additionally goes to OnComplete. A failed
// request or an interrupted read is passed to OnError and also returned.
func (c *Client) SubmitQueryStream(ctx context.Context, question string, h StreamHandlers) (err error) {
	defer func() {
		if err != nil && h.OnError != nil {
			h.OnError(err.Error())
		}
	}()

	stream, err := c.OpenStream(ctx, question)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if h.OnChunk != nil {
			h.OnChunk(chunk)
		}
		if chunk.Type == models.ChunkComplete && h.OnComplete != nil {
			h.OnComplete(chunk.Data)
		}
	}
}

// StatusError reports a streaming request the server refused.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}
