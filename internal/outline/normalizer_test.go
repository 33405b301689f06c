package outline

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"gopherai-study/internal/model"
)

func intPtr(v int) *int { return &v }

func plainChunks(n int) []model.ChunkInput {
	chunks := make([]model.ChunkInput, n)
	for i := range chunks {
		chunks[i] = model.ChunkInput{Content: "chunk"}
	}
	return chunks
}

func pagedChunks(pages ...int) []model.ChunkInput {
	chunks := make([]model.ChunkInput, len(pages))
	for i, p := range pages {
		chunks[i] = model.ChunkInput{Content: "chunk", PageNumber: intPtr(p)}
	}
	return chunks
}

func testDoc() DocumentRef {
	return DocumentRef{Name: "notes.pdf", Fingerprint: "fp-notes"}
}

func requirePartition(t *testing.T, sections []model.Section, n int) {
	t.Helper()
	require.NotEmpty(t, sections)
	require.Equal(t, 0, sections[0].StartChunk)
	require.Equal(t, n-1, sections[len(sections)-1].EndChunk)
	for i, s := range sections {
		require.LessOrEqual(t, s.StartChunk, s.EndChunk, "section %d is empty", i)
		if i > 0 {
			require.Equal(t, sections[i-1].EndChunk+1, s.StartChunk, "gap or overlap before section %d", i)
		}
	}
}

func TestNormalize_MalformedSingleProposalFallsBackToEqualShare(t *testing.T) {
	proposals := []model.RawSectionProposal{
		{Title: "Everything", Level: 1, StartChunk: intPtr(5), EndChunk: intPtr(50)},
	}

	res := Normalize(testDoc(), plainChunks(10), proposals, nil, DefaultNormalizeConfig())

	require.Equal(t, PathEqualShare, res.Path)
	require.Len(t, res.Sections, 1)
	require.Equal(t, 0, res.Sections[0].StartChunk)
	require.Equal(t, 9, res.Sections[0].EndChunk)
	require.Equal(t, "Everything", res.Sections[0].Title)
}

func TestNormalize_DeclaredRangesAreKeptAndMadeContiguous(t *testing.T) {
	proposals := []model.RawSectionProposal{
		{Title: "Second", Level: 2, StartChunk: intPtr(4), EndChunk: intPtr(6)},
		{Title: "First", Level: 1, StartChunk: intPtr(1), EndChunk: intPtr(2)},
	}

	res := Normalize(testDoc(), plainChunks(8), proposals, nil, DefaultNormalizeConfig())

	require.Equal(t, PathDeclared, res.Path)
	require.Len(t, res.Sections, 2)
	require.Equal(t, "First", res.Sections[0].Title)
	require.Equal(t, 0, res.Sections[0].StartChunk)
	require.Equal(t, 3, res.Sections[0].EndChunk)
	require.Equal(t, "Second", res.Sections[1].Title)
	require.Equal(t, 4, res.Sections[1].StartChunk)
	require.Equal(t, 7, res.Sections[1].EndChunk)
}

func TestNormalize_DuplicateStartsFallBackToEqualShare(t *testing.T) {
	proposals := []model.RawSectionProposal{
		{Title: "A", StartChunk: intPtr(0), EndChunk: intPtr(3)},
		{Title: "B", StartChunk: intPtr(0), EndChunk: intPtr(4)},
	}

	res := Normalize(testDoc(), plainChunks(5), proposals, nil, DefaultNormalizeConfig())

	require.Equal(t, PathEqualShare, res.Path)
	requirePartition(t, res.Sections, 5)
}

func TestNormalize_EqualShareGivesRemainderToLastSections(t *testing.T) {
	proposals := []model.RawSectionProposal{{Title: "A"}, {Title: "B"}, {Title: "C"}}

	res := Normalize(testDoc(), plainChunks(11), proposals, nil, DefaultNormalizeConfig())

	require.Equal(t, PathEqualShare, res.Path)
	sizes := []int{}
	for _, s := range res.Sections {
		sizes = append(sizes, s.ChunkCount())
	}
	require.Equal(t, []int{3, 4, 4}, sizes)
}

func TestNormalize_MoreProposalsThanChunks(t *testing.T) {
	proposals := []model.RawSectionProposal{{Title: "A"}, {Title: "B"}, {Title: "C"}, {Title: "D"}}

	res := Normalize(testDoc(), plainChunks(2), proposals, nil, DefaultNormalizeConfig())

	require.Len(t, res.Sections, 2)
	requirePartition(t, res.Sections, 2)
}

func TestNormalize_ExtractorFailureGroupsByPage(t *testing.T) {
	chunks := pagedChunks(1, 1, 2, 3, 3, 3)

	res := Normalize(testDoc(), chunks, nil, errors.New("extractor timeout"), DefaultNormalizeConfig())

	require.Equal(t, PathPageGrouped, res.Path)
	require.Len(t, res.Sections, 3)
	require.Equal(t, "Page 1", res.Sections[0].Title)
	require.Equal(t, 1, res.Sections[0].EndChunk)
	require.Equal(t, 2, *res.Sections[1].PageNumber)
	requirePartition(t, res.Sections, 6)
}

func TestNormalize_PageGroupingRespectsMaxSections(t *testing.T) {
	chunks := pagedChunks(1, 2, 3, 4, 5)
	cfg := DefaultNormalizeConfig()
	cfg.MaxSections = 2

	res := Normalize(testDoc(), chunks, nil, nil, cfg)

	require.Len(t, res.Sections, 2)
	require.Equal(t, "Pages 1-3", res.Sections[0].Title)
	requirePartition(t, res.Sections, 5)
}

func TestNormalize_NoPagesYieldsSingleSection(t *testing.T) {
	res := Normalize(testDoc(), plainChunks(4), nil, nil, DefaultNormalizeConfig())

	require.Equal(t, PathSingle, res.Path)
	require.Len(t, res.Sections, 1)
	require.Equal(t, "notes", res.Sections[0].Title)
	requirePartition(t, res.Sections, 4)
}

func TestNormalize_ClampsLevelAndFillsTitles(t *testing.T) {
	proposals := []model.RawSectionProposal{
		{Title: "  ", Level: 0},
		{Title: "Deep", Level: 9, Parent: intPtr(0)},
	}

	res := Normalize(testDoc(), pagedChunks(1, 1, 2, 2), proposals, nil, DefaultNormalizeConfig())

	require.Equal(t, "Section 1", res.Sections[0].Title)
	require.Equal(t, 1, res.Sections[0].Level)
	require.Equal(t, 3, res.Sections[1].Level)
	require.Equal(t, res.Sections[0].ID, res.Sections[1].ParentID)
	require.Equal(t, 2, *res.Sections[1].PageNumber)
}

func TestNormalize_MergesShortSections(t *testing.T) {
	proposals := []model.RawSectionProposal{
		{Title: "A", StartChunk: intPtr(0), EndChunk: intPtr(3)},
		{Title: "B", StartChunk: intPtr(4), EndChunk: intPtr(4)},
		{Title: "C", StartChunk: intPtr(5), EndChunk: intPtr(9)},
	}
	cfg := DefaultNormalizeConfig()
	cfg.MinSectionChunks = 2

	res := Normalize(testDoc(), plainChunks(10), proposals, nil, cfg)

	require.Len(t, res.Sections, 2)
	require.Equal(t, "A", res.Sections[0].Title)
	require.Equal(t, 4, res.Sections[0].EndChunk)
	requirePartition(t, res.Sections, 10)
}

func TestNormalize_SectionIDsAreStable(t *testing.T) {
	proposals := []model.RawSectionProposal{{Title: "A"}, {Title: "B"}}
	first := Normalize(testDoc(), plainChunks(6), proposals, nil, DefaultNormalizeConfig())
	second := Normalize(testDoc(), plainChunks(6), proposals, nil, DefaultNormalizeConfig())
	require.Equal(t, first.Sections, second.Sections)
	require.NotEqual(t, first.Sections[0].ID, first.Sections[1].ID)
}

func TestNormalize_PartitionTotality(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for n := 1; n <= 40; n++ {
		for trial := 0; trial < 25; trial++ {
			count := rng.Intn(8)
			proposals := make([]model.RawSectionProposal, count)
			for i := range proposals {
				p := model.RawSectionProposal{Title: "s", Level: rng.Intn(6) - 1}
				if rng.Intn(3) > 0 {
					p.StartChunk = intPtr(rng.Intn(n+4) - 2)
				}
				if rng.Intn(3) > 0 {
					p.EndChunk = intPtr(rng.Intn(n+4) - 2)
				}
				proposals[i] = p
			}
			var extractErr error
			if rng.Intn(10) == 0 {
				extractErr = errors.New("boom")
			}
			cfg := DefaultNormalizeConfig()
			cfg.MinSectionChunks = 1 + rng.Intn(3)

			res := Normalize(testDoc(), plainChunks(n), proposals, extractErr, cfg)

			requirePartition(t, res.Sections, n)
			for _, s := range res.Sections {
				require.GreaterOrEqual(t, s.Level, 1)
				require.LessOrEqual(t, s.Level, 3)
			}
		}
	}
}
