package models

import "time"

// AnswerRecord is a completed question/answer pair kept in the history archive.
type AnswerRecord struct {
	ID        string
	Question  string
	Response  string
	Context   []string
	Tokens    int
	CreatedAt time.Time
}

type ProcessedAnswer struct {
	AnswerRecord
	Chunks []string
}

// HistoryMatch is an archived chunk returned by a similarity search.
type HistoryMatch struct {
	AnswerID  string
	Question  string
	Chunk     string
	Distance  float64
	CreatedAt time.Time
}
