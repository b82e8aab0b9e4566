package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate API endpoints
	endpoints := []struct {
		field string
		value string
	}{
		{"api.base_url", c.API.BaseURL},
		{"api.notes_url", c.API.NotesURL},
		{"api.genai_url", c.API.GenAIURL},
	}
	for _, ep := range endpoints {
		if ep.value == "" {
			errors = append(errors, ValidationError{
				Field:   ep.field,
				Message: "URL is required",
			})
			continue
		}
		if !isHTTPURL(ep.value) {
			errors = append(errors, ValidationError{
				Field:   ep.field,
				Message: fmt.Sprintf("invalid service URL: %s", ep.value),
			})
		}
	}

	if c.API.Timeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "api.timeout",
			Message: "timeout must not be negative",
		})
	}

	if c.API.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "api.rate_limit",
			Message: "rate_limit must not be negative",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if u, err := url.Parse(c.Database.URL); err != nil || u.Scheme == "" {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Database.SearchLimit < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.search_limit",
			Message: "search_limit must be positive",
		})
	}

	// Validate Processor config
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.UI.PageSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "ui.page_size",
			Message: "page_size must be positive",
		})
	}

	return errors
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
