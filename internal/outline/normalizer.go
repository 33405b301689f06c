package outline

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"gopherai-study/internal/model"
	"gopherai-study/internal/pkg/fingerprint"
)

// Path names the rung of the fallback ladder that produced an outline.
type Path string

const (
	PathDeclared    Path = "declared"
	PathEqualShare  Path = "equal_share"
	PathPageGrouped Path = "page_grouped"
	PathSingle      Path = "single"
)

const (
	defaultMaxDepth    = 3
	defaultMaxSections = 50
)

type NormalizeConfig struct {
	MaxDepth         int
	MinSectionChunks int
	MaxSections      int
}

func DefaultNormalizeConfig() NormalizeConfig {
	return NormalizeConfig{
		MaxDepth:         defaultMaxDepth,
		MinSectionChunks: 1,
		MaxSections:      defaultMaxSections,
	}
}

// DocumentRef identifies the document whose sections are being normalized.
type DocumentRef struct {
	Name        string
	Fingerprint string
}

type Result struct {
	Sections []model.Section
	Path     Path
}

type span struct {
	start    int
	end      int
	proposal int // -1 when the span does not come from a proposal
	title    string
	page     *int
}

func (s span) size() int { return s.end - s.start + 1 }

// Normalize repairs raw proposals into sections that partition
// [0, len(chunks)-1] without gaps. An extraction error or an empty proposal
// list degrades to page-grouped sections, then to a single section.
func Normalize(doc DocumentRef, chunks []model.ChunkInput, proposals []model.RawSectionProposal, extractErr error, cfg NormalizeConfig) Result {
	cfg = cfg.withDefaults()
	n := len(chunks)
	if n == 0 {
		return Result{Path: PathSingle}
	}

	var (
		spans []span
		path  Path
	)
	if extractErr != nil || len(proposals) == 0 {
		spans, path = pageSpans(doc, chunks, cfg.MaxSections)
	} else {
		if len(proposals) > cfg.MaxSections {
			proposals = proposals[:cfg.MaxSections]
		}
		if len(proposals) > n {
			proposals = proposals[:n]
		}
		var ok bool
		spans, ok = declaredSpans(proposals, n)
		path = PathDeclared
		if !ok {
			spans = equalShareSpans(n, len(proposals))
			path = PathEqualShare
		}
	}
	spans = mergeShort(spans, cfg.MinSectionChunks)

	return Result{
		Sections: buildSections(doc, chunks, proposals, spans, cfg.MaxDepth),
		Path:     path,
	}
}

func (c NormalizeConfig) withDefaults() NormalizeConfig {
	if c.MaxDepth <= 0 {
		c.MaxDepth = defaultMaxDepth
	}
	if c.MinSectionChunks <= 0 {
		c.MinSectionChunks = 1
	}
	if c.MaxSections <= 0 {
		c.MaxSections = defaultMaxSections
	}
	return c
}

// declaredSpans keeps the proposed starts when every proposal carries an
// in-range start/end pair and no two proposals start at the same chunk.
// Ends are rewritten so adjacent sections touch.
func declaredSpans(proposals []model.RawSectionProposal, n int) ([]span, bool) {
	spans := make([]span, 0, len(proposals))
	for i, p := range proposals {
		if p.StartChunk == nil || p.EndChunk == nil {
			return nil, false
		}
		start, end := *p.StartChunk, *p.EndChunk
		if start < 0 || start > end || end > n-1 {
			return nil, false
		}
		spans = append(spans, span{start: start, end: end, proposal: i})
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := 1; i < len(spans); i++ {
		if spans[i].start == spans[i-1].start {
			return nil, false
		}
	}
	spans[0].start = 0
	for i := range spans {
		if i == len(spans)-1 {
			spans[i].end = n - 1
		} else {
			spans[i].end = spans[i+1].start - 1
		}
	}
	return spans, true
}

// equalShareSpans splits n chunks into count spans, giving the remainder to
// the last spans. Requires count <= n.
func equalShareSpans(n, count int) []span {
	base, rem := n/count, n%count
	spans := make([]span, 0, count)
	start := 0
	for i := 0; i < count; i++ {
		size := base
		if i >= count-rem {
			size++
		}
		spans = append(spans, span{start: start, end: start + size - 1, proposal: i})
		start += size
	}
	return spans
}

// pageSpans groups contiguous chunks sharing a page number. Chunks without a
// page inherit the nearest preceding page.
func pageSpans(doc DocumentRef, chunks []model.ChunkInput, maxSections int) ([]span, Path) {
	pages := make([]int, len(chunks))
	known := false
	last := 0
	for i, c := range chunks {
		if c.PageNumber != nil {
			if !known {
				for j := 0; j < i; j++ {
					pages[j] = *c.PageNumber
				}
			}
			known = true
			last = *c.PageNumber
		}
		pages[i] = last
	}
	if !known {
		return []span{{start: 0, end: len(chunks) - 1, proposal: -1, title: documentTitle(doc.Name)}}, PathSingle
	}

	var runs []span
	for i, p := range pages {
		if len(runs) > 0 && pages[i-1] == p {
			runs[len(runs)-1].end = i
			continue
		}
		page := p
		runs = append(runs, span{start: i, end: i, proposal: -1, title: fmt.Sprintf("Page %d", p), page: &page})
	}
	if len(runs) <= maxSections {
		return runs, PathPageGrouped
	}

	per := (len(runs) + maxSections - 1) / maxSections
	grouped := make([]span, 0, maxSections)
	for i := 0; i < len(runs); i += per {
		j := i + per - 1
		if j >= len(runs) {
			j = len(runs) - 1
		}
		first, lastRun := runs[i], runs[j]
		title := first.title
		if j > i {
			title = fmt.Sprintf("Pages %d-%d", *first.page, *lastRun.page)
		}
		grouped = append(grouped, span{start: first.start, end: lastRun.end, proposal: -1, title: title, page: first.page})
	}
	return grouped, PathPageGrouped
}

// mergeShort folds spans shorter than minChunks into their predecessor.
// A short leading span is folded into its successor.
func mergeShort(spans []span, minChunks int) []span {
	if minChunks <= 1 || len(spans) < 2 {
		return spans
	}
	out := make([]span, 0, len(spans))
	for _, s := range spans {
		if len(out) > 0 && s.size() < minChunks {
			out[len(out)-1].end = s.end
			continue
		}
		out = append(out, s)
	}
	if len(out) > 1 && out[0].size() < minChunks {
		out[1].start = out[0].start
		out = out[1:]
	}
	return out
}

func buildSections(doc DocumentRef, chunks []model.ChunkInput, proposals []model.RawSectionProposal, spans []span, maxDepth int) []model.Section {
	sections := make([]model.Section, len(spans))
	byProposal := make(map[int]int, len(spans))
	for i, s := range spans {
		sec := model.Section{
			ID:           fingerprint.Section(doc.Fingerprint, i),
			Title:        s.title,
			Level:        1,
			PageNumber:   s.page,
			StartChunk:   s.start,
			EndChunk:     s.end,
			DocumentName: doc.Name,
		}
		if s.proposal >= 0 && s.proposal < len(proposals) {
			p := proposals[s.proposal]
			sec.Title = strings.TrimSpace(p.Title)
			sec.Level = clampLevel(p.Level, maxDepth)
			if p.PageNumber != nil && *p.PageNumber > 0 {
				page := *p.PageNumber
				sec.PageNumber = &page
			}
			byProposal[s.proposal] = i
		}
		if sec.Title == "" {
			sec.Title = fmt.Sprintf("Section %d", i+1)
		}
		if sec.PageNumber == nil && chunks[s.start].PageNumber != nil {
			page := *chunks[s.start].PageNumber
			sec.PageNumber = &page
		}
		sections[i] = sec
	}

	for i, s := range spans {
		if s.proposal < 0 || s.proposal >= len(proposals) {
			continue
		}
		parent := proposals[s.proposal].Parent
		if parent == nil {
			continue
		}
		if at, ok := byProposal[*parent]; ok && at < i {
			sections[i].ParentID = sections[at].ID
		}
	}
	return sections
}

func clampLevel(level, maxDepth int) int {
	if level < 1 {
		return 1
	}
	if level > maxDepth {
		return maxDepth
	}
	return level
}

func documentTitle(name string) string {
	title := strings.TrimSpace(strings.TrimSuffix(name, filepath.Ext(name)))
	if title == "" {
		return "Document"
	}
	return title
}
