package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gopherai-study/internal/model"
)

func TestEstimatedQuestions(t *testing.T) {
	tests := []struct {
		length int
		want   int
	}{
		{0, 1},
		{300, 1},
		{599, 1},
		{1200, 2},
		{6100, 10},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, EstimatedQuestions(tt.length, 600), "length %d", tt.length)
	}
}

func ingestSection(t *testing.T, h *harness, title, content string) *IngestResult {
	t.Helper()
	h.outlines.extractor = &scriptedExtractor{byMarker: map[string][]model.RawSectionProposal{
		content[:8]: {declared(title, 0, 0)},
	}}
	return h.ingest(t, "s1", strings.ToLower(title)+".pdf", pagedChunks(content))
}

func TestQuizService_ShortContentIsToppedUpExternally(t *testing.T) {
	h := newHarness(t, nil)
	res := ingestSection(t, h, "Mitosis", strings.Repeat("m", 300))
	sectionID := res.Sections[0].ID

	out, err := h.quiz.Generate(context.Background(), QuizInput{SessionID: "s1", SectionIDs: []string{sectionID}, Count: 5, Difficulty: "easy"})

	require.NoError(t, err)
	require.NotZero(t, out.QuizSessionID)
	require.Equal(t, 1, out.EstimatedQuestions)
	require.Equal(t, []int{1}, h.generator.contentCalls)
	require.Len(t, h.generator.topicCalls, 1)
	require.Equal(t, 4, h.generator.topicCalls[0].count)
	require.Equal(t, "Mitosis", h.generator.topicCalls[0].topic)
	require.Len(t, out.Questions, 5)
	require.Equal(t, 1, out.DocumentQuestions)
	require.Equal(t, 4, out.ExternalQuestions)
	require.Equal(t, model.QuestionOriginDocument, out.Questions[0].Origin)
	require.Equal(t, model.QuestionOriginExternal, out.Questions[4].Origin)

	stored, err := h.quiz.ListSectionQuestions(context.Background(), "s1", sectionID)
	require.NoError(t, err)
	require.Len(t, stored, 5)
	ledger, err := h.ledger.ListBySession(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	require.Len(t, ledger[0].ServedIDList(), 5)
	require.Equal(t, []string{sectionID}, ledger[0].SectionIDList())
}

func TestQuizService_SecondRequestExcludesServedQuestions(t *testing.T) {
	h := newHarness(t, nil)
	h.generator.repeat = true
	res := ingestSection(t, h, "Enzymes", strings.Repeat("e", 1800))
	input := QuizInput{SessionID: "s1", SectionIDs: []string{res.Sections[0].ID}, Count: 3}

	first, err := h.quiz.Generate(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, 3, first.DocumentQuestions)

	second, err := h.quiz.Generate(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, second.Questions, 3)
	require.Zero(t, second.DocumentQuestions)

	firstIDs := make(map[string]struct{})
	for _, q := range first.Questions {
		firstIDs[q.ID] = struct{}{}
	}
	for _, q := range second.Questions {
		require.NotContains(t, firstIDs, q.ID)
		require.Equal(t, model.QuestionOriginExternal, q.Origin)
	}
	// the second request retried document generation once before going external
	require.Equal(t, []int{3, 3, 3}, h.generator.contentCalls)
}

func TestQuizService_GroupedSectionsShareServedQuestions(t *testing.T) {
	ext := &scriptedExtractor{byMarker: map[string][]model.RawSectionProposal{
		"doc-a": {declared("Photosynthesis", 0, 0)},
		"doc-b": {declared("Photosynthesis basics", 0, 0)},
	}}
	h := newHarness(t, ext)
	h.generator.repeat = true
	a := h.ingest(t, "s1", "a.pdf", pagedChunks("doc-a light reactions"))
	b := h.ingest(t, "s1", "b.pdf", pagedChunks("doc-b chlorophyll"))

	first, err := h.quiz.Generate(context.Background(), QuizInput{SessionID: "s1", SectionIDs: []string{a.Sections[0].ID}, Count: 1})
	require.NoError(t, err)
	require.Equal(t, []string{a.Sections[0].ID}, first.SectionIDs)
	require.Equal(t, 1, first.DocumentQuestions)

	second, err := h.quiz.Generate(context.Background(), QuizInput{SessionID: "s1", SectionIDs: []string{b.Sections[0].ID}, Count: 1})
	require.NoError(t, err)
	require.Equal(t, 0, second.DocumentQuestions)
	require.Equal(t, 1, second.ExternalQuestions)
	require.NotEqual(t, first.Questions[0].ID, second.Questions[0].ID)

	served, err := h.quiz.ListSectionQuestions(context.Background(), "s1", b.Sections[0].ID)
	require.NoError(t, err)
	require.Len(t, served, 2)
}

func TestQuizService_InsufficientContentIsAnErrorAndNotRecorded(t *testing.T) {
	h := newHarness(t, nil)
	h.generator.topicLimit = 2
	res := ingestSection(t, h, "Osmosis", strings.Repeat("o", 700))

	_, err := h.quiz.Generate(context.Background(), QuizInput{SessionID: "s1", SectionIDs: []string{res.Sections[0].ID}, Count: 6})

	require.ErrorIs(t, err, ErrInsufficientContent)
	var insufficient *InsufficientContentError
	require.True(t, errors.As(err, &insufficient))
	require.Equal(t, 6, insufficient.Requested)
	require.Equal(t, 3, insufficient.Available)
	require.False(t, errors.Is(err, ErrStorageUnavailable))

	ledger, err := h.ledger.ListBySession(context.Background(), "s1")
	require.NoError(t, err)
	require.Empty(t, ledger)
}

func TestQuizService_GenerationFailuresFallThroughToTopic(t *testing.T) {
	h := newHarness(t, nil)
	h.generator.contentErr = errors.New("model down")
	res := ingestSection(t, h, "Respiration", strings.Repeat("r", 1300))

	out, err := h.quiz.Generate(context.Background(), QuizInput{SessionID: "s1", SectionIDs: []string{res.Sections[0].ID}, Count: 2})

	require.NoError(t, err)
	require.Equal(t, 2, out.ExternalQuestions)
	require.Len(t, h.generator.contentCalls, 2)
}

func TestQuizService_TimedOutDocumentPassStillReachesTopic(t *testing.T) {
	h := newHarness(t, nil)
	h.generator.blockContent = true
	res := ingestSection(t, h, "Photosynthesis", strings.Repeat("p", 3000))
	quiz := NewQuizService(h.filter, h.questions, h.ledger, h.lifecycle, h.generator, h.metrics,
		QuizOptions{CharsPerQuestion: 600, MaxContentChars: 12000, GenerationTimeout: 50 * time.Millisecond})

	out, err := quiz.Generate(context.Background(), QuizInput{SessionID: "s1", SectionIDs: []string{res.Sections[0].ID}, Count: 3})

	require.NoError(t, err)
	require.Len(t, h.generator.contentCalls, 2)
	require.Len(t, h.generator.topicCalls, 1)
	require.Equal(t, 3, h.generator.topicCalls[0].count)
	require.Equal(t, 0, out.DocumentQuestions)
	require.Equal(t, 3, out.ExternalQuestions)
}

func TestQuizService_GeneratorOutageIsRetryableNotInsufficient(t *testing.T) {
	h := newHarness(t, nil)
	h.generator.contentErr = context.DeadlineExceeded
	h.generator.topicErr = errors.New("model down")
	res := ingestSection(t, h, "Glycolysis", strings.Repeat("g", 1800))

	_, err := h.quiz.Generate(context.Background(), QuizInput{SessionID: "s1", SectionIDs: []string{res.Sections[0].ID}, Count: 3})

	require.ErrorIs(t, err, ErrGenerationUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, errors.Is(err, ErrInsufficientContent))

	ledger, err := h.ledger.ListBySession(context.Background(), "s1")
	require.NoError(t, err)
	require.Empty(t, ledger)
}

func TestQuizService_NoContentUsesQueryAsTopic(t *testing.T) {
	h := newHarness(t, nil)

	out, err := h.quiz.Generate(context.Background(), QuizInput{SessionID: "s1", SectionIDs: []string{"unknown"}, Count: 2, Query: "cell biology"})

	require.NoError(t, err)
	require.Empty(t, h.generator.contentCalls)
	require.Equal(t, "unknown", h.generator.topicCalls[0].topic)
	require.Equal(t, 2, out.ExternalQuestions)

	_, err = h.quiz.Generate(context.Background(), QuizInput{SessionID: "s1", Count: 1, Query: "cell biology"})
	require.NoError(t, err)
	require.Equal(t, "cell biology", h.generator.topicCalls[1].topic)
}

func TestQuizService_Validation(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.quiz.Generate(context.Background(), QuizInput{Count: 1})
	require.ErrorIs(t, err, ErrMissingSessionID)

	_, err = h.quiz.Generate(context.Background(), QuizInput{SessionID: "s1"})
	require.ErrorIs(t, err, ErrInvalidInput)

	questions, err := h.quiz.ListSectionQuestions(context.Background(), "s1", "nothing")
	require.NoError(t, err)
	require.Empty(t, questions)
}

func TestDeriveTopic(t *testing.T) {
	chunks := []model.DocumentChunk{{SectionTitle: "A"}, {SectionTitle: "B"}, {SectionTitle: "A"}}
	require.Equal(t, "A, B", deriveTopic(chunks, []string{"x"}, "q"))
	require.Equal(t, "x, y", deriveTopic(nil, []string{"x", "y"}, "q"))
	require.Equal(t, "q", deriveTopic(nil, nil, " q "))
}
