package models

import (
	"encoding/json"
	"fmt"
)

type QueryRequest struct {
	Question string `json:"question"`
}

type QueryResponse struct {
	Question string   `json:"question"`
	Response string   `json:"response"`
	Context  []string `json:"context"`
	Tokens   int      `json:"tokens"`
}

// ChunkType discriminates the records of a streamed answer.
type ChunkType string

const (
	ChunkContext  ChunkType = "context"
	ChunkAnswer   ChunkType = "answer"
	ChunkComplete ChunkType = "complete"
	ChunkError    ChunkType = "error"
)

// StreamChunk is one event of a streamed answer. Data is only meaningful
// when Type is ChunkComplete.
type StreamChunk struct {
	Type    ChunkType       `json:"type"`
	Step    string          `json:"step,omitempty"`
	Context []string        `json:"context,omitempty"`
	Content string          `json:"content,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Response decodes the final answer carried by a complete chunk.
func (c StreamChunk) Response() (*QueryResponse, error) {
	if c.Type != ChunkComplete {
		return nil, fmt.Errorf("chunk of type %q carries no response", c.Type)
	}
	var resp QueryResponse
	if err := json.Unmarshal(c.Data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode complete chunk: %w", err)
	}
	return &resp, nil
}
