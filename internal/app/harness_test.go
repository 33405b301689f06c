package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"gopherai-study/internal/cache"
	"gopherai-study/internal/metrics"
	"gopherai-study/internal/model"
	"gopherai-study/internal/outline"
	"gopherai-study/internal/pkg/fingerprint"
	"gopherai-study/internal/repository"
	"gopherai-study/internal/testutil"
)

var baseTime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptedExtractor returns the proposals registered for the first marker
// found in the document text.
type scriptedExtractor struct {
	byMarker map[string][]model.RawSectionProposal
	err      error
}

func (e *scriptedExtractor) ExtractSections(_ context.Context, text string, _ int) ([]model.RawSectionProposal, error) {
	if e.err != nil {
		return nil, e.err
	}
	for marker, proposals := range e.byMarker {
		if strings.Contains(text, marker) {
			return proposals, nil
		}
	}
	return nil, nil
}

type topicCall struct {
	topic string
	count int
}

// fakeGenerator writes numbered questions. With repeat set, every content
// call returns the same prompts.
type fakeGenerator struct {
	mu           sync.Mutex
	repeat       bool
	contentCalls []int
	topicCalls   []topicCall
	contentErr   error
	topicErr     error
	topicLimit   int
	seq          int
	// blockContent makes FromContent wait for its context to end.
	blockContent bool
}

func question(prompt string) model.Question {
	return model.Question{
		ID:           fingerprint.Text(prompt),
		Prompt:       prompt,
		Options:      []string{"a", "b", "c", "d"},
		CorrectIndex: 1,
	}
}

func (g *fakeGenerator) FromContent(ctx context.Context, content string, count int, _ string) ([]model.Question, error) {
	if g.blockContent {
		<-ctx.Done()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.contentCalls = append(g.contentCalls, count)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.contentErr != nil {
		return nil, g.contentErr
	}
	out := make([]model.Question, 0, count)
	for i := 0; i < count; i++ {
		n := i
		if !g.repeat {
			g.seq++
			n = g.seq
		}
		q := question(fmt.Sprintf("document question %d", n))
		q.Origin = model.QuestionOriginDocument
		q.ContentFingerprint = fingerprint.Text(content)
		out = append(out, q)
	}
	return out, nil
}

func (g *fakeGenerator) FromTopic(ctx context.Context, topic string, count int, _ string) ([]model.Question, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.topicCalls = append(g.topicCalls, topicCall{topic: topic, count: count})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.topicErr != nil {
		return nil, g.topicErr
	}
	if g.topicLimit > 0 && count > g.topicLimit {
		count = g.topicLimit
	}
	out := make([]model.Question, 0, count)
	for i := 0; i < count; i++ {
		g.seq++
		q := question(fmt.Sprintf("topic question %d about %s", g.seq, topic))
		q.Origin = model.QuestionOriginExternal
		out = append(out, q)
	}
	return out, nil
}

type harness struct {
	clock           *fakeClock
	chunks          *repository.ChunkRepository
	documents       *repository.DocumentOutlineRepository
	sessionOutlines *repository.SessionOutlineRepository
	sessions        *repository.StudySessionRepository
	questions       *repository.QuizQuestionRepository
	ledger          *repository.QuizSessionRepository
	tracker         *cache.MemoryLiveness
	cache           *cache.OutlineCache
	metrics         *metrics.Metrics

	lifecycle *LifecycleService
	outlines  *OutlineService
	filter    *ContentFilter
	quiz      *QuizService
	generator *fakeGenerator
}

func newHarness(t *testing.T, extractor SectionExtractor) *harness {
	t.Helper()
	db := testutil.OpenTestDB(t)
	h := &harness{
		clock:           &fakeClock{now: baseTime},
		chunks:          repository.NewChunkRepository(db),
		documents:       repository.NewDocumentOutlineRepository(db),
		sessionOutlines: repository.NewSessionOutlineRepository(db),
		sessions:        repository.NewStudySessionRepository(db),
		questions:       repository.NewQuizQuestionRepository(db),
		ledger:          repository.NewQuizSessionRepository(db),
		tracker:         cache.NewMemoryLiveness(),
		cache:           cache.NewOutlineCache(16, time.Hour),
		metrics:         metrics.New(),
		generator:       &fakeGenerator{},
	}
	h.lifecycle = NewLifecycleService(h.sessions, h.tracker, h.chunks, h.documents, h.sessionOutlines,
		h.questions, h.ledger, h.cache, h.metrics, LifecycleOptions{TTL: time.Hour, HeartbeatTimeout: 5 * time.Minute})
	h.lifecycle.SetClock(h.clock.Now)
	h.outlines = NewOutlineService(h.chunks, h.documents, h.sessionOutlines, h.lifecycle, extractor, h.cache, h.metrics,
		OutlineOptions{
			Normalize: outline.DefaultNormalizeConfig(),
			Unify:     outline.DefaultUnifyConfig(),
		})
	h.filter = NewContentFilter(h.chunks, h.sessionOutlines)
	h.quiz = NewQuizService(h.filter, h.questions, h.ledger, h.lifecycle, h.generator, h.metrics,
		QuizOptions{CharsPerQuestion: 600, MaxContentChars: 12000})
	return h
}

func intPtr(v int) *int { return &v }

// pagedChunks builds one chunk per entry of contents, each on its own page.
func pagedChunks(contents ...string) []model.ChunkInput {
	out := make([]model.ChunkInput, len(contents))
	for i, c := range contents {
		out[i] = model.ChunkInput{Content: c, PageNumber: intPtr(i + 1)}
	}
	return out
}

func declared(title string, start, end int) model.RawSectionProposal {
	return model.RawSectionProposal{Title: title, Level: 1, StartChunk: intPtr(start), EndChunk: intPtr(end)}
}

func (h *harness) ingest(t *testing.T, sessionID, filename string, chunks []model.ChunkInput) *IngestResult {
	t.Helper()
	res, err := h.outlines.Ingest(context.Background(), IngestInput{SessionID: sessionID, Filename: filename, Chunks: chunks})
	if err != nil {
		t.Fatalf("ingest %s: %v", filename, err)
	}
	return res
}
