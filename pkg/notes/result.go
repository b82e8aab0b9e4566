package notes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/xhad/notesqa/internal/models"
)

// ErrorType classifies why a note could not be loaded.
type ErrorType string

const (
	ErrorValidation ErrorType = "validation"
	ErrorNotFound   ErrorType = "not_found"
	ErrorServer     ErrorType = "server_error"
	ErrorNetwork    ErrorType = "network_error"
	ErrorUnknown    ErrorType = "unknown"
)

// LoadError describes a failed load. Details carries the raw payload behind
// the failure: the error body, the 422 detail array, or the transport error.
type LoadError struct {
	Type    ErrorType
	Message string
	Details interface{}
}

func (e *LoadError) Error() string {
	return e.Message
}

// LoadNoteResult is either Success or Failure.
type LoadNoteResult interface {
	OK() bool
	loadNoteResult()
}

type Success struct {
	Data models.Note
}

func (Success) OK() bool        { return true }
func (Success) loadNoteResult() {}

type Failure struct {
	Err LoadError
}

func (Failure) OK() bool        { return false }
func (Failure) loadNoteResult() {}

func failure(t ErrorType, message string, details interface{}) Failure {
	return Failure{Err: LoadError{Type: t, Message: message, Details: details}}
}

// Classify maps the reply to GET /notes/{id} onto a LoadNoteResult. The
// checks run in order and the first match wins.
func Classify(id int, status int, body []byte) LoadNoteResult {
	raw := json.RawMessage(body)

	switch {
	case status == http.StatusNotFound:
		return failure(ErrorNotFound, fmt.Sprintf("Note with ID %d not found", id), raw)
	case status == http.StatusUnprocessableEntity:
		return classifyValidation(body)
	case status >= 500:
		return failure(ErrorServer, "Server error occurred while loading the note", raw)
	case status < 200 || status >= 300:
		return failure(ErrorUnknown, "An unexpected error occurred", raw)
	}

	var note models.Note
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || json.Unmarshal(trimmed, &note) != nil {
		return failure(ErrorUnknown, "An unexpected error occurred", raw)
	}
	return Success{Data: note}
}

func classifyValidation(body []byte) Failure {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	_ = json.Unmarshal(body, &payload)

	var issues []models.ValidationIssue
	if len(payload.Detail) > 0 && json.Unmarshal(payload.Detail, &issues) == nil && len(issues) > 0 {
		first := issues[0]
		return failure(ErrorValidation,
			fmt.Sprintf("Validation error: %s (%s)", first.Msg, first.Type),
			payload.Detail)
	}

	var details interface{}
	if payload.Detail != nil {
		details = payload.Detail
	}
	return failure(ErrorValidation, "Invalid request parameters", details)
}

func networkFailure(err error) Failure {
	message := err.Error()
	if message == "" {
		message = "Network error occurred"
	}
	return failure(ErrorNetwork, message, err)
}
