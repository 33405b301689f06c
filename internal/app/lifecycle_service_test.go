package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func seedSessionWithQuiz(t *testing.T, h *harness, sessionID string) {
	t.Helper()
	res, err := h.outlines.Ingest(context.Background(), IngestInput{
		SessionID: sessionID,
		Filename:  "lecture.pdf",
		Chunks:    pagedChunks(strings.Repeat(sessionID, 400), "second page"),
	})
	require.NoError(t, err)
	_, err = h.quiz.Generate(context.Background(), QuizInput{SessionID: sessionID, SectionIDs: []string{res.Sections[0].ID}, Count: 2})
	require.NoError(t, err)
}

func requireSessionGone(t *testing.T, h *harness, sessionID string) {
	t.Helper()
	ctx := context.Background()
	chunks, err := h.chunks.ListBySession(ctx, sessionID)
	require.NoError(t, err)
	require.Empty(t, chunks)
	docs, err := h.documents.ListBySession(ctx, sessionID)
	require.NoError(t, err)
	require.Empty(t, docs)
	so, err := h.sessionOutlines.GetBySession(ctx, sessionID)
	require.NoError(t, err)
	require.Nil(t, so)
	ledger, err := h.ledger.ListBySession(ctx, sessionID)
	require.NoError(t, err)
	require.Empty(t, ledger)
	s, err := h.sessions.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Nil(t, s)

	unified, err := h.outlines.GetSessionOutline(ctx, sessionID)
	require.NoError(t, err)
	require.Empty(t, unified)
}

func TestLifecycle_SweepEvictsSessionsPastTTL(t *testing.T) {
	h := newHarness(t, nil)
	seedSessionWithQuiz(t, h, "idle")
	h.clock.Advance(30 * time.Minute)
	seedSessionWithQuiz(t, h, "busy")

	h.clock.Advance(35 * time.Minute)
	report, err := h.lifecycle.Sweep(context.Background())

	require.NoError(t, err)
	require.Equal(t, 1, report.Evicted)
	requireSessionGone(t, h, "idle")

	busy, err := h.chunks.ListBySession(context.Background(), "busy")
	require.NoError(t, err)
	require.NotEmpty(t, busy)
}

func TestLifecycle_HeartbeatKeepsSessionAlive(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	seedSessionWithQuiz(t, h, "s1")

	h.clock.Advance(50 * time.Minute)
	require.NoError(t, h.lifecycle.Heartbeat(ctx, "s1", nil))

	h.clock.Advance(15 * time.Minute)
	report, err := h.lifecycle.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, report.Evicted)
	require.Equal(t, 1, report.Flushed)
	require.Equal(t, 1, report.Pruned)

	s, err := h.sessions.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, s.LastAccessedAt.Equal(baseTime.Add(50*time.Minute)))

	h.clock.Advance(50 * time.Minute)
	report, err = h.lifecycle.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Evicted)
	requireSessionGone(t, h, "s1")
}

func TestLifecycle_HeartbeatRegistersUnknownSession(t *testing.T) {
	h := newHarness(t, nil)
	uid := uint(3)

	require.NoError(t, h.lifecycle.Heartbeat(context.Background(), "fresh", &uid))

	s, err := h.sessions.Get(context.Background(), "fresh")
	require.NoError(t, err)
	require.NotNil(t, s)
	require.EqualValues(t, 3, *s.UserID)
	snap, err := h.tracker.Snapshot(context.Background())
	require.NoError(t, err)
	require.Contains(t, snap, "fresh")
}

func TestLifecycle_TeardownAndIdempotentEvict(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	seedSessionWithQuiz(t, h, "s1")
	seedSessionWithQuiz(t, h, "s2")
	require.NoError(t, h.lifecycle.Heartbeat(ctx, "s1", nil))

	require.NoError(t, h.lifecycle.Teardown(ctx, "s1"))
	requireSessionGone(t, h, "s1")
	snap, err := h.tracker.Snapshot(ctx)
	require.NoError(t, err)
	require.NotContains(t, snap, "s1")

	require.NoError(t, h.lifecycle.Evict(ctx, "s1"))
	require.NoError(t, h.lifecycle.Teardown(ctx, "never-existed"))

	other, err := h.chunks.ListBySession(ctx, "s2")
	require.NoError(t, err)
	require.NotEmpty(t, other)
}

type failingDelete struct {
	QuizSessionStore
	fail bool
}

func (f *failingDelete) DeleteBySession(ctx context.Context, sessionID string) error {
	if f.fail {
		return errors.New("ledger unavailable")
	}
	return f.QuizSessionStore.DeleteBySession(ctx, sessionID)
}

func TestLifecycle_FailedEvictionIsRetriedNextSweep(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	seedSessionWithQuiz(t, h, "s1")
	ledger := &failingDelete{QuizSessionStore: h.ledger, fail: true}
	lc := NewLifecycleService(h.sessions, h.tracker, h.chunks, h.documents, h.sessionOutlines,
		h.questions, ledger, h.cache, h.metrics, LifecycleOptions{TTL: time.Hour})
	lc.SetClock(h.clock.Now)
	h.clock.Advance(2 * time.Hour)

	report, err := lc.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	s, err := h.sessions.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, s, "session row survives a failed eviction")

	ledger.fail = false
	report, err = lc.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Evicted)
	requireSessionGone(t, h, "s1")
}

// staleExpiredList reports extra sessions as expired, the way a listing taken
// just before a heartbeat landed would.
type staleExpiredList struct {
	StudySessionStore
	extra []string
}

func (s *staleExpiredList) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	ids, err := s.StudySessionStore.ListExpired(ctx, now, limit)
	return append(ids, s.extra...), err
}

func TestLifecycle_SweepSkipsSessionRefreshedAfterListing(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	seedSessionWithQuiz(t, h, "s1")
	sessions := &staleExpiredList{StudySessionStore: h.sessions, extra: []string{"s1"}}
	lc := NewLifecycleService(sessions, h.tracker, h.chunks, h.documents, h.sessionOutlines,
		h.questions, h.ledger, h.cache, h.metrics, LifecycleOptions{TTL: time.Hour})
	lc.SetClock(h.clock.Now)

	report, err := lc.Sweep(ctx)

	require.NoError(t, err)
	require.Equal(t, 0, report.Evicted)
	require.Equal(t, 1, report.Skipped)
	chunks, err := h.chunks.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	require.NoError(t, lc.Teardown(ctx, "s1"))
	requireSessionGone(t, h, "s1")
}

func TestLifecycle_RequiresSessionID(t *testing.T) {
	h := newHarness(t, nil)
	require.ErrorIs(t, h.lifecycle.Heartbeat(context.Background(), " ", nil), ErrMissingSessionID)
	require.ErrorIs(t, h.lifecycle.Teardown(context.Background(), ""), ErrMissingSessionID)
}
