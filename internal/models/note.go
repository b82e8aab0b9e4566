package models

// Note is a snapshot of a note owned by the notes service. Timestamps are kept
// exactly as the service sends them.
type Note struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	DocumentType string `json:"document_type"`
}

// NotePage is one page of the notes listing.
type NotePage struct {
	Items []Note `json:"items"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Size  int    `json:"size"`
	Pages int    `json:"pages"`
}

// ValidationIssue is a single entry of a 422 response's detail array.
type ValidationIssue struct {
	Type  string        `json:"type"`
	Loc   []interface{} `json:"loc"`
	Msg   string        `json:"msg"`
	Input interface{}   `json:"input,omitempty"`
}
