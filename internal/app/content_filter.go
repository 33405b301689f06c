package app

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"gopherai-study/internal/model"
	"gopherai-study/internal/outline"
)

// ContentFilter scopes chunk retrieval to a session and optionally to a set
// of sections. No query ever crosses the session boundary.
type ContentFilter struct {
	chunks          ChunkStore
	sessionOutlines SessionOutlineStore
}

func NewContentFilter(chunks ChunkStore, sessionOutlines SessionOutlineStore) *ContentFilter {
	return &ContentFilter{chunks: chunks, sessionOutlines: sessionOutlines}
}

// ChunksForChat returns the session's chunks restricted to sectionIDs. When
// the scoped read fails it degrades to every chunk of the session.
func (f *ContentFilter) ChunksForChat(ctx context.Context, sessionID string, sectionIDs []string) ([]model.DocumentChunk, error) {
	if len(sectionIDs) > 0 {
		chunks, err := f.scoped(ctx, sessionID, sectionIDs)
		if err == nil {
			return chunks, nil
		}
		logutil.GetLogger(ctx).Warn("scoped chunk retrieval failed, using whole session",
			zap.String("session_id", sessionID), zap.Strings("section_ids", sectionIDs), zap.Error(err))
	}
	chunks, err := f.chunks.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, storageErr("list session chunks", err)
	}
	return chunks, nil
}

// ChunksForQuiz is ChunksForChat without the fallback: any storage failure
// yields no content so the sufficiency policy decides what happens next.
func (f *ContentFilter) ChunksForQuiz(ctx context.Context, sessionID string, sectionIDs []string) []model.DocumentChunk {
	var (
		chunks []model.DocumentChunk
		err    error
	)
	if len(sectionIDs) > 0 {
		chunks, err = f.scoped(ctx, sessionID, sectionIDs)
	} else {
		chunks, err = f.chunks.ListBySession(ctx, sessionID)
	}
	if err != nil {
		logutil.GetLogger(ctx).Warn("quiz content retrieval failed",
			zap.String("session_id", sessionID), zap.Strings("section_ids", sectionIDs), zap.Error(err))
		return nil
	}
	return chunks
}

func (f *ContentFilter) scoped(ctx context.Context, sessionID string, sectionIDs []string) ([]model.DocumentChunk, error) {
	return f.chunks.ListBySessionAndSections(ctx, sessionID, f.ExpandSections(ctx, sessionID, sectionIDs))
}

// ExpandSections adds the related sections of any grouped unified section
// named in ids. Lookup failures leave ids unchanged.
func (f *ContentFilter) ExpandSections(ctx context.Context, sessionID string, ids []string) []string {
	if f.sessionOutlines == nil {
		return ids
	}
	record, err := f.sessionOutlines.GetBySession(ctx, sessionID)
	if err != nil || record == nil {
		return ids
	}
	return outline.ExpandSectionIDs(record.SectionList(), ids)
}

// ContentLength counts the runes of trimmed chunk text. Overlap between
// neighbouring chunks is counted on both sides.
func ContentLength(chunks []model.DocumentChunk) int {
	n := 0
	for _, c := range chunks {
		n += utf8.RuneCountInString(strings.TrimSpace(c.Content))
	}
	return n
}

// JoinContent concatenates chunk text in retrieval order.
func JoinContent(chunks []model.DocumentChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if text := strings.TrimSpace(c.Content); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}
