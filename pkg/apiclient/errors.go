package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// APIError is a non-2xx reply. Body is the raw error payload.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API Error: %s", e.Payload())
}

// Payload renders the body as compact JSON. Bodies that are not JSON are
// rendered as a JSON string.
func (e *APIError) Payload() string {
	trimmed := bytes.TrimSpace(e.Body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.String()
		}
	}
	quoted, _ := json.Marshal(string(trimmed))
	return string(quoted)
}
