package server

import "time"

// UploadResponse reports what an accepted upload produced.
type UploadResponse struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Chunks     int    `json:"chunks"`
}

// QueryRequest is the body of a chat query. UseLatestDocument defaults to
// true when the field is omitted; an explicit document id still wins.
type QueryRequest struct {
	SessionID         string `json:"session_id"`
	Query             string `json:"query"`
	DocumentID        string `json:"document_id,omitempty"`
	UseLatestDocument bool   `json:"use_latest_document"`
}

// Source is one retrieved passage that grounded an answer.
type Source struct {
	DocumentID string  `json:"document_id"`
	ChunkID    uint64  `json:"chunk_id"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
}

// DocumentContext identifies the document a scoped answer focused on.
type DocumentContext struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Uploaded time.Time `json:"uploaded"`
}

// QueryResponse is the body of a chat answer.
type QueryResponse struct {
	Answer          string           `json:"answer"`
	Sources         []Source         `json:"sources"`
	DocumentContext *DocumentContext `json:"document_context,omitempty"`
}

// DocumentEntry is one row of the document listing.
type DocumentEntry struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Filetype   string    `json:"filetype"`
	UploadedAt time.Time `json:"uploaded_at"`
	Chunks     int       `json:"chunks"`
}

// DocumentsResponse is the body of the document listing.
type DocumentsResponse struct {
	Documents []DocumentEntry `json:"documents"`
}

// HealthResponse reports service and vector index health.
type HealthResponse struct {
	Status    string `json:"status"`
	Index     string `json:"index"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse is the body of any non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
