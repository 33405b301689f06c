package outline

import (
	"errors"
	"sort"

	"gopherai-study/internal/model"
)

var ErrNoSections = errors.New("no sections to tag chunks against")

// Tag assigns every chunk to exactly one section. When ranges overlap the
// latest covering section wins; an index no section covers falls back to the
// first section.
func Tag(chunks []model.ChunkInput, sections []model.Section) ([]model.TaggedChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	if len(sections) == 0 {
		return nil, ErrNoSections
	}

	sorted := make([]model.Section, len(sections))
	copy(sorted, sections)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartChunk < sorted[j].StartChunk })

	total := len(chunks)
	tagged := make([]model.TaggedChunk, total)
	for i, c := range chunks {
		owner := ownerOf(sorted, i)
		tagged[i] = model.TaggedChunk{
			Index:        i,
			TotalChunks:  total,
			Content:      c.Content,
			PageNumber:   c.PageNumber,
			SectionID:    owner.ID,
			SectionTitle: owner.Title,
			SectionLevel: owner.Level,
		}
	}
	return tagged, nil
}

func ownerOf(sorted []model.Section, idx int) model.Section {
	pos := sort.Search(len(sorted), func(k int) bool { return sorted[k].StartChunk > idx }) - 1
	for k := pos; k >= 0; k-- {
		if sorted[k].EndChunk >= idx {
			return sorted[k]
		}
	}
	return sorted[0]
}
