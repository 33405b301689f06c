package model

import "time"

// DocumentChunk stores one section-tagged chunk of an uploaded document.
type DocumentChunk struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SessionID    string    `gorm:"size:64;not null;index:idx_chunk_session_doc,priority:1" json:"session_id"`
	Filename     string    `gorm:"size:255;not null;index:idx_chunk_session_doc,priority:2" json:"filename"`
	SectionID    string    `gorm:"size:64;not null;index" json:"section_id"`
	SectionTitle string    `gorm:"size:512" json:"section_title"`
	SectionLevel int       `gorm:"not null" json:"section_level"`
	ChunkIndex   int       `gorm:"not null" json:"chunk_index"`
	TotalChunks  int       `gorm:"not null" json:"total_chunks"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	PageNumber   *int      `json:"page_number,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewDocumentChunks converts tagged chunks into records owned by one document.
func NewDocumentChunks(sessionID, filename string, tagged []TaggedChunk) []DocumentChunk {
	out := make([]DocumentChunk, len(tagged))
	for i, t := range tagged {
		out[i] = DocumentChunk{
			SessionID:    sessionID,
			Filename:     filename,
			SectionID:    t.SectionID,
			SectionTitle: t.SectionTitle,
			SectionLevel: t.SectionLevel,
			ChunkIndex:   t.Index,
			TotalChunks:  t.TotalChunks,
			Content:      t.Content,
			PageNumber:   t.PageNumber,
		}
	}
	return out
}
