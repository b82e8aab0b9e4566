package notes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/notesqa/internal/models"
)

var mockNote = models.Note{
	ID:           1,
	Title:        "Test Note",
	Content:      "This is a test note content",
	CreatedAt:    "2025-07-22T10:00:00Z",
	UpdatedAt:    "2025-07-22T10:00:00Z",
	DocumentType: "note",
}

// notesServer answers GET /notes/{id} with the given status and body and
// records the requested paths.
func notesServer(t *testing.T, status int, body string) (*httptest.Server, *[]string) {
	t.Helper()
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		paths = append(paths, r.URL.Path)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &paths
}

func newService(t *testing.T, baseURL string) *Service {
	t.Helper()
	s, err := NewWithConfig(Config{BaseURL: baseURL})
	require.NoError(t, err)
	return s
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestLoadNoteSuccess(t *testing.T) {
	server, paths := notesServer(t, http.StatusOK, mustJSON(t, mockNote))
	s := newService(t, server.URL)

	result := s.LoadNote(context.Background(), 1)

	assert.Equal(t, []string{"/notes/1"}, *paths)
	require.True(t, result.OK())
	success, ok := result.(Success)
	require.True(t, ok)
	assert.Equal(t, mockNote, success.Data)
}

func TestLoadNoteDifferentIDs(t *testing.T) {
	customNote := mockNote
	customNote.ID = 42
	customNote.Title = "Custom Note"

	server, paths := notesServer(t, http.StatusOK, mustJSON(t, customNote))
	s := newService(t, server.URL)

	result := s.LoadNote(context.Background(), 42)

	assert.Equal(t, []string{"/notes/42"}, *paths)
	require.IsType(t, Success{}, result)
	assert.Equal(t, customNote, result.(Success).Data)
}

func TestLoadNoteIsRepeatable(t *testing.T) {
	server, _ := notesServer(t, http.StatusOK, mustJSON(t, mockNote))
	s := newService(t, server.URL)

	first := s.LoadNote(context.Background(), 1)
	second := s.LoadNote(context.Background(), 1)
	assert.Equal(t, first, second)
}

func TestLoadNoteFailures(t *testing.T) {
	validationError := `{"detail":[{"type":"int_parsing","loc":["path","id"],"msg":"Input should be a valid integer","input":"invalid"}]}`

	tests := []struct {
		name            string
		id              int
		status          int
		body            string
		expectedType    ErrorType
		expectedMessage string
		expectedDetails string
	}{
		{
			name:            "not found",
			id:              1,
			status:          http.StatusNotFound,
			body:            `{"detail":"Note not found"}`,
			expectedType:    ErrorNotFound,
			expectedMessage: "Note with ID 1 not found",
			expectedDetails: `{"detail":"Note not found"}`,
		},
		{
			name:            "validation",
			id:              999,
			status:          http.StatusUnprocessableEntity,
			body:            validationError,
			expectedType:    ErrorValidation,
			expectedMessage: "Validation error: Input should be a valid integer (int_parsing)",
			expectedDetails: `[{"type":"int_parsing","loc":["path","id"],"msg":"Input should be a valid integer","input":"invalid"}]`,
		},
		{
			name:            "validation without detail entries",
			id:              1,
			status:          http.StatusUnprocessableEntity,
			body:            `{"detail":[]}`,
			expectedType:    ErrorValidation,
			expectedMessage: "Invalid request parameters",
			expectedDetails: `[]`,
		},
		{
			name:            "server error",
			id:              1,
			status:          http.StatusInternalServerError,
			body:            `{"detail":"Internal server error"}`,
			expectedType:    ErrorServer,
			expectedMessage: "Server error occurred while loading the note",
			expectedDetails: `{"detail":"Internal server error"}`,
		},
		{
			name:            "bad gateway",
			id:              1,
			status:          http.StatusBadGateway,
			body:            `{"detail":"upstream"}`,
			expectedType:    ErrorServer,
			expectedMessage: "Server error occurred while loading the note",
			expectedDetails: `{"detail":"upstream"}`,
		},
		{
			name:            "unexpected status",
			id:              1,
			status:          http.StatusTeapot,
			body:            `{"detail":"Some unexpected error"}`,
			expectedType:    ErrorUnknown,
			expectedMessage: "An unexpected error occurred",
			expectedDetails: `{"detail":"Some unexpected error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, paths := notesServer(t, tt.status, tt.body)
			s := newService(t, server.URL)

			result := s.LoadNote(context.Background(), tt.id)

			assert.Len(t, *paths, 1)
			assert.False(t, result.OK())
			failure, ok := result.(Failure)
			require.True(t, ok)
			assert.Equal(t, tt.expectedType, failure.Err.Type)
			assert.Equal(t, tt.expectedMessage, failure.Err.Message)

			details, ok := failure.Err.Details.(json.RawMessage)
			require.True(t, ok)
			assert.JSONEq(t, tt.expectedDetails, string(details))
		})
	}
}

func TestLoadNoteNetworkError(t *testing.T) {
	transportErr := errors.New("Network connection failed")
	s, err := NewWithConfig(Config{
		BaseURL: "http://notes.test",
		HTTPClient: doerFunc(func(*http.Request) (*http.Response, error) {
			return nil, transportErr
		}),
	})
	require.NoError(t, err)

	result := s.LoadNote(context.Background(), 1)

	failure, ok := result.(Failure)
	require.True(t, ok)
	assert.Equal(t, ErrorNetwork, failure.Err.Type)
	assert.Equal(t, "Network connection failed", failure.Err.Message)
	assert.Equal(t, transportErr, failure.Err.Details)
}

func TestLoadNoteUnreachableServer(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	result := newService(t, url).LoadNote(context.Background(), 7)

	failure, ok := result.(Failure)
	require.True(t, ok)
	assert.Equal(t, ErrorNetwork, failure.Err.Type)
	assert.NotEmpty(t, failure.Err.Message)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected ErrorType
		message  string
	}{
		{"validation without detail field", 422, `{}`, ErrorValidation, "Invalid request parameters"},
		{"validation with string detail", 422, `{"detail":"bad"}`, ErrorValidation, "Invalid request parameters"},
		{"validation with non json body", 422, `oops`, ErrorValidation, "Invalid request parameters"},
		{"ok with empty body", 200, ``, ErrorUnknown, "An unexpected error occurred"},
		{"ok with null body", 200, `null`, ErrorUnknown, "An unexpected error occurred"},
		{"ok with malformed body", 200, `{"id":`, ErrorUnknown, "An unexpected error occurred"},
		{"redirect", 304, ``, ErrorUnknown, "An unexpected error occurred"},
		{"not found with empty body", 404, ``, ErrorNotFound, "Note with ID 3 not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Classify(3, tt.status, []byte(tt.body))
			failure, ok := result.(Failure)
			require.True(t, ok)
			assert.Equal(t, tt.expected, failure.Err.Type)
			assert.Equal(t, tt.message, failure.Err.Message)
			assert.Equal(t, tt.message, failure.Err.Error())
		})
	}
}

func TestListNotes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notes/", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("size"))
		json.NewEncoder(w).Encode(models.NotePage{
			Items: []models.Note{mockNote},
			Total: 1,
			Page:  1,
			Size:  10,
			Pages: 1,
		})
	}))
	defer server.Close()

	page, err := newService(t, server.URL).ListNotes(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []models.Note{mockNote}, page.Items)
	assert.Equal(t, 1, page.Total)
}

func TestListNotesError(t *testing.T) {
	server, _ := notesServer(t, http.StatusInternalServerError, `{"detail":"db down"}`)

	_, err := newService(t, server.URL).ListNotes(context.Background(), 10)
	require.Error(t, err)
	assert.Equal(t, `API Error: {"detail":"db down"}`, err.Error())
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health/", r.URL.Path)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	s := newService(t, server.URL)

	body, err := s.Health(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	report := s.CheckHealth(context.Background())
	assert.True(t, report.IsHealthy)
	assert.Empty(t, report.Error)
}

func TestCheckHealthFailure(t *testing.T) {
	server, _ := notesServer(t, http.StatusServiceUnavailable, `{"detail":"maintenance"}`)

	report := newService(t, server.URL).CheckHealth(context.Background())
	assert.False(t, report.IsHealthy)
	assert.Equal(t, `API Error: {"detail":"maintenance"}`, report.Error)
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }
