package model

// ChunkInput is one ordered unit of extracted document text as handed over by
// the upstream extractor. Index is implied by position in the slice.
type ChunkInput struct {
	Content    string `json:"content"`
	PageNumber *int   `json:"page_number,omitempty"`
}

// RawSectionProposal is an untrusted section boundary suggested by the
// boundary extractor. Any field may be missing or out of range.
type RawSectionProposal struct {
	Title      string `json:"title"`
	Level      int    `json:"level"`
	PageNumber *int   `json:"page_number,omitempty"`
	StartChunk *int   `json:"start_chunk,omitempty"`
	EndChunk   *int   `json:"end_chunk,omitempty"`
	Parent     *int   `json:"parent,omitempty"` // index into the proposal list
}

// Section is a normalized, chunk-bounded section of one document.
type Section struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Level        int    `json:"level"`
	PageNumber   *int   `json:"page_number,omitempty"`
	StartChunk   int    `json:"start_chunk"`
	EndChunk     int    `json:"end_chunk"`
	ParentID     string `json:"parent_id,omitempty"`
	DocumentName string `json:"document_name"`
}

// ChunkCount returns how many chunks the section spans.
func (s Section) ChunkCount() int {
	return s.EndChunk - s.StartChunk + 1
}

// RelatedSection points at a section of another document grouped with a
// unified section.
type RelatedSection struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Level        int    `json:"level"`
	PageNumber   *int   `json:"page_number,omitempty"`
	DocumentName string `json:"document_name"`
}

// UnifiedSection is a session-level section. Grouped sections carry the
// sections of other documents judged to cover the same topic.
type UnifiedSection struct {
	Section
	GroupID         string           `json:"group_id,omitempty"`
	Grouped         bool             `json:"grouped"`
	RelatedSections []RelatedSection `json:"related_sections"`
}

// MemberIDs returns the id of the section and of every related section.
func (u UnifiedSection) MemberIDs() []string {
	ids := make([]string, 0, len(u.RelatedSections)+1)
	ids = append(ids, u.ID)
	for _, r := range u.RelatedSections {
		ids = append(ids, r.ID)
	}
	return ids
}

// TaggedChunk is a chunk annotated with the section that owns it.
type TaggedChunk struct {
	Index        int    `json:"index"`
	TotalChunks  int    `json:"total_chunks"`
	Content      string `json:"content"`
	PageNumber   *int   `json:"page_number,omitempty"`
	SectionID    string `json:"section_id"`
	SectionTitle string `json:"section_title"`
	SectionLevel int    `json:"section_level"`
}
