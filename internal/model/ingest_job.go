package model

// IngestJob is the queue payload for asynchronous document ingestion.
type IngestJob struct {
	SessionID   string       `json:"session_id"`
	Filename    string       `json:"filename"`
	ContentType string       `json:"content_type,omitempty"`
	UserID      *uint        `json:"user_id,omitempty"`
	Chunks      []ChunkInput `json:"chunks"`
}
