package app

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"gopherai-study/internal/cache"
	"gopherai-study/internal/metrics"
)

const (
	defaultSessionTTL       = time.Hour
	defaultHeartbeatTimeout = 5 * time.Minute
	defaultSweepBatch       = 500
)

type LifecycleOptions struct {
	TTL              time.Duration
	HeartbeatTimeout time.Duration
	SweepBatch       int
}

// LifecycleService moves sessions from active to expired and evicts every
// record they own.
type LifecycleService struct {
	sessions        StudySessionStore
	tracker         cache.LivenessTracker
	chunks          ChunkStore
	documents       DocumentOutlineStore
	sessionOutlines SessionOutlineStore
	questions       QuizQuestionStore
	ledger          QuizSessionStore
	cache           *cache.OutlineCache
	metrics         *metrics.Metrics
	opts            LifecycleOptions
	now             func() time.Time
}

func NewLifecycleService(
	sessions StudySessionStore,
	tracker cache.LivenessTracker,
	chunks ChunkStore,
	documents DocumentOutlineStore,
	sessionOutlines SessionOutlineStore,
	questions QuizQuestionStore,
	ledger QuizSessionStore,
	outlineCache *cache.OutlineCache,
	m *metrics.Metrics,
	opts LifecycleOptions,
) *LifecycleService {
	if opts.TTL <= 0 {
		opts.TTL = defaultSessionTTL
	}
	if opts.HeartbeatTimeout <= 0 {
		opts.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if opts.SweepBatch <= 0 {
		opts.SweepBatch = defaultSweepBatch
	}
	if tracker == nil {
		tracker = cache.NewMemoryLiveness()
	}
	return &LifecycleService{
		sessions:        sessions,
		tracker:         tracker,
		chunks:          chunks,
		documents:       documents,
		sessionOutlines: sessionOutlines,
		questions:       questions,
		ledger:          ledger,
		cache:           outlineCache,
		metrics:         m,
		opts:            opts,
		now:             time.Now,
	}
}

// SetClock replaces the time source.
func (s *LifecycleService) SetClock(now func() time.Time) {
	s.now = now
}

// Touch registers the session if needed and refreshes its last access.
func (s *LifecycleService) Touch(ctx context.Context, sessionID string, userID *uint) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrMissingSessionID
	}
	if err := s.sessions.Touch(ctx, sessionID, userID, s.now(), s.opts.TTL); err != nil {
		return storageErr("touch session", err)
	}
	return nil
}

// Heartbeat records a liveness signal. The tracker is flushed into the
// session store by the sweep; unknown sessions are registered right away.
func (s *LifecycleService) Heartbeat(ctx context.Context, sessionID string, userID *uint) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrMissingSessionID
	}
	now := s.now()
	if err := s.tracker.Beat(ctx, sessionID, now); err != nil {
		logutil.GetLogger(ctx).Warn("liveness tracker unavailable, touching session directly",
			zap.String("session_id", sessionID), zap.Error(err))
		return s.Touch(ctx, sessionID, userID)
	}
	existing, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return storageErr("get session", err)
	}
	if existing == nil || userID != nil {
		return s.Touch(ctx, sessionID, userID)
	}
	return nil
}

// Teardown expires the session immediately and evicts its data.
func (s *LifecycleService) Teardown(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrMissingSessionID
	}
	if err := s.sessions.MarkExpired(ctx, sessionID); err != nil {
		return storageErr("expire session", err)
	}
	return s.Evict(ctx, sessionID)
}

// Evict deletes every record owned by the session. The session row goes last
// so an interrupted eviction is picked up again by the next sweep. Evicting a
// session that is already gone is a no-op.
func (s *LifecycleService) Evict(ctx context.Context, sessionID string) error {
	_, err := s.evict(ctx, sessionID, false)
	return err
}

// evict removes the session's records. With onlyExpired set a session that
// was refreshed since it was listed is left alone and false is returned.
func (s *LifecycleService) evict(ctx context.Context, sessionID string, onlyExpired bool) (bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return false, ErrMissingSessionID
	}
	existing, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return false, storageErr("get session", err)
	}
	if onlyExpired && existing != nil && !existing.Expired(s.now()) {
		logutil.GetLogger(ctx).Debug("session refreshed before eviction, skipping", zap.String("session_id", sessionID))
		return false, nil
	}
	steps := []struct {
		name string
		run  func(context.Context, string) error
	}{
		{"delete quiz questions", s.questions.DeleteBySession},
		{"delete quiz ledger", s.ledger.DeleteBySession},
		{"delete chunks", s.chunks.DeleteBySession},
		{"delete document outlines", s.documents.DeleteBySession},
		{"delete session outline", s.sessionOutlines.DeleteBySession},
	}
	for _, step := range steps {
		if err := step.run(ctx, sessionID); err != nil {
			return false, storageErr(step.name, err)
		}
	}
	if err := s.tracker.Remove(ctx, sessionID); err != nil {
		logutil.GetLogger(ctx).Warn("remove liveness entry failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	s.cache.Invalidate(sessionID)
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return false, storageErr("delete session", err)
	}
	if existing != nil {
		s.metrics.ObserveEviction()
		logutil.GetLogger(ctx).Info("session evicted", zap.String("session_id", sessionID), zap.String("status", existing.Status))
	}
	return true, nil
}

type SweepReport struct {
	Flushed int `json:"flushed"`
	Pruned  int `json:"pruned"`
	Evicted int `json:"evicted"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Sweep flushes tracked heartbeats into the session store, forgets heartbeats
// older than the heartbeat timeout and evicts every expired session.
func (s *LifecycleService) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	logger := logutil.GetLogger(ctx)
	now := s.now()

	beats, err := s.tracker.Snapshot(ctx)
	if err != nil {
		logger.Warn("read liveness tracker failed", zap.Error(err))
	}
	for sessionID, at := range beats {
		if err := s.sessions.Touch(ctx, sessionID, nil, at, s.opts.TTL); err != nil {
			logger.Warn("flush heartbeat failed", zap.String("session_id", sessionID), zap.Error(err))
			continue
		}
		report.Flushed++
	}
	pruned, err := s.tracker.Prune(ctx, now.Add(-s.opts.HeartbeatTimeout))
	if err != nil {
		logger.Warn("prune liveness tracker failed", zap.Error(err))
	}
	report.Pruned = int(pruned)

	expired, err := s.sessions.ListExpired(ctx, now, s.opts.SweepBatch)
	if err != nil {
		return report, storageErr("list expired sessions", err)
	}
	for _, sessionID := range expired {
		evicted, err := s.evict(ctx, sessionID, true)
		if err != nil {
			report.Failed++
			logger.Error("evict session failed", zap.String("session_id", sessionID), zap.Error(err))
			continue
		}
		if !evicted {
			report.Skipped++
			continue
		}
		report.Evicted++
	}
	if report.Evicted > 0 || report.Failed > 0 {
		logger.Info("session sweep finished",
			zap.Int("flushed", report.Flushed), zap.Int("pruned", report.Pruned),
			zap.Int("evicted", report.Evicted), zap.Int("failed", report.Failed))
	}
	return report, nil
}
