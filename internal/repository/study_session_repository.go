package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gopherai-study/internal/model"
)

type StudySessionRepository struct {
	db *gorm.DB
}

func NewStudySessionRepository(db *gorm.DB) *StudySessionRepository {
	return &StudySessionRepository{db: db}
}

// Touch registers the session or refreshes its access time. An older access
// time never overwrites a newer one, so late heartbeat flushes are harmless.
// Times are stored in UTC to keep them comparable on every driver.
func (r *StudySessionRepository) Touch(ctx context.Context, sessionID string, userID *uint, at time.Time, ttl time.Duration) error {
	at = at.UTC()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := model.StudySession{
			SessionID:      sessionID,
			UserID:         userID,
			Status:         model.SessionStatusActive,
			TTLSeconds:     int(ttl / time.Second),
			LastAccessedAt: at,
			ExpiresAt:      at.Add(ttl),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		updates := map[string]interface{}{
			"last_accessed_at": at,
			"expires_at":       at.Add(ttl),
			"ttl_seconds":      int(ttl / time.Second),
		}
		if userID != nil {
			updates["user_id"] = *userID
		}
		return tx.Model(&model.StudySession{}).
			Where("session_id = ? AND last_accessed_at < ?", sessionID, at).
			Updates(updates).Error
	})
	if err != nil {
		return fmt.Errorf("touch study session failed: %w", err)
	}
	return nil
}

func (r *StudySessionRepository) Get(ctx context.Context, sessionID string) (*model.StudySession, error) {
	var s model.StudySession
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get study session failed: %w", err)
	}
	return &s, nil
}

// MarkExpired flags the session for eviction. Unknown sessions are ignored.
func (r *StudySessionRepository) MarkExpired(ctx context.Context, sessionID string) error {
	if err := r.db.WithContext(ctx).Model(&model.StudySession{}).
		Where("session_id = ?", sessionID).
		Update("status", model.SessionStatusExpired).Error; err != nil {
		return fmt.Errorf("mark study session expired failed: %w", err)
	}
	return nil
}

// ListExpired returns up to limit session ids that are flagged expired or
// whose expiry is not after now, oldest first.
func (r *StudySessionRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	q := r.db.WithContext(ctx).Model(&model.StudySession{}).
		Where("status = ? OR expires_at <= ?", model.SessionStatusExpired, now.UTC()).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("session_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list expired study sessions failed: %w", err)
	}
	return ids, nil
}

func (r *StudySessionRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&model.StudySession{}).Error; err != nil {
		return fmt.Errorf("delete study session failed: %w", err)
	}
	return nil
}
