package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// DocumentOutline stores the normalized sections of one document in a session.
// A re-upload of identical content hits the same (session, fingerprint) row.
type DocumentOutline struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	SessionID          string         `gorm:"size:64;not null;uniqueIndex:idx_outline_session_fp,priority:1;index:idx_outline_session_file,priority:1" json:"session_id"`
	ContentFingerprint string         `gorm:"size:64;not null;uniqueIndex:idx_outline_session_fp,priority:2" json:"content_fingerprint"`
	Filename           string         `gorm:"size:255;not null;index:idx_outline_session_file,priority:2" json:"filename"`
	ChunkCount         int            `gorm:"not null" json:"chunk_count"`
	Sections           datatypes.JSON `gorm:"type:json" json:"-"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// SectionList returns the parsed sections; empty on parse error.
func (o *DocumentOutline) SectionList() []Section {
	if len(o.Sections) == 0 {
		return nil
	}
	var sections []Section
	_ = json.Unmarshal(o.Sections, &sections)
	return sections
}

// SetSections stores the sections as JSON.
func (o *DocumentOutline) SetSections(sections []Section) {
	if len(sections) == 0 {
		o.Sections = datatypes.JSON("[]")
		return
	}
	b, _ := json.Marshal(sections)
	o.Sections = datatypes.JSON(b)
}

// SessionOutline stores the unified outline of every document in a session.
type SessionOutline struct {
	SessionID string         `gorm:"primaryKey;size:64" json:"session_id"`
	Sections  datatypes.JSON `gorm:"type:json" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SectionList returns the parsed unified sections; empty on parse error.
func (o *SessionOutline) SectionList() []UnifiedSection {
	if len(o.Sections) == 0 {
		return nil
	}
	var sections []UnifiedSection
	_ = json.Unmarshal(o.Sections, &sections)
	return sections
}

// SetSections stores the unified sections as JSON.
func (o *SessionOutline) SetSections(sections []UnifiedSection) {
	if len(sections) == 0 {
		o.Sections = datatypes.JSON("[]")
		return
	}
	b, _ := json.Marshal(sections)
	o.Sections = datatypes.JSON(b)
}
