package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gopherai-study/internal/model"
)

type DocumentOutlineRepository struct {
	db *gorm.DB
}

func NewDocumentOutlineRepository(db *gorm.DB) *DocumentOutlineRepository {
	return &DocumentOutlineRepository{db: db}
}

// Upsert stores outline keyed by (session, content fingerprint), replacing the
// sections wholesale. Outlines of the same filename with another fingerprint
// are removed so a changed re-upload does not leave its old version behind.
func (r *DocumentOutlineRepository) Upsert(ctx context.Context, outline *model.DocumentOutline) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ? AND filename = ? AND content_fingerprint <> ?",
			outline.SessionID, outline.Filename, outline.ContentFingerprint).
			Delete(&model.DocumentOutline{}).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "content_fingerprint"}},
			DoUpdates: clause.AssignmentColumns([]string{"filename", "chunk_count", "sections", "updated_at"}),
		}).Create(outline).Error
	})
	if err != nil {
		return fmt.Errorf("upsert document outline failed: %w", err)
	}
	return nil
}

// ListBySession returns the session's outlines ordered by filename.
func (r *DocumentOutlineRepository) ListBySession(ctx context.Context, sessionID string) ([]model.DocumentOutline, error) {
	var list []model.DocumentOutline
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("filename ASC, id ASC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list document outlines failed: %w", err)
	}
	return list, nil
}

func (r *DocumentOutlineRepository) GetBySessionAndFilename(ctx context.Context, sessionID, filename string) (*model.DocumentOutline, error) {
	var outline model.DocumentOutline
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND filename = ?", sessionID, filename).
		Order("updated_at DESC").
		First(&outline).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document outline failed: %w", err)
	}
	return &outline, nil
}

// DeleteBySessionAndFilename reports how many outlines were removed.
func (r *DocumentOutlineRepository) DeleteBySessionAndFilename(ctx context.Context, sessionID, filename string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("session_id = ? AND filename = ?", sessionID, filename).
		Delete(&model.DocumentOutline{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete document outline failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *DocumentOutlineRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&model.DocumentOutline{}).Error; err != nil {
		return fmt.Errorf("delete document outlines by session failed: %w", err)
	}
	return nil
}

type SessionOutlineRepository struct {
	db *gorm.DB
}

func NewSessionOutlineRepository(db *gorm.DB) *SessionOutlineRepository {
	return &SessionOutlineRepository{db: db}
}

// Upsert replaces the unified outline of the session.
func (r *SessionOutlineRepository) Upsert(ctx context.Context, outline *model.SessionOutline) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"sections", "updated_at"}),
	}).Create(outline).Error; err != nil {
		return fmt.Errorf("upsert session outline failed: %w", err)
	}
	return nil
}

func (r *SessionOutlineRepository) GetBySession(ctx context.Context, sessionID string) (*model.SessionOutline, error) {
	var outline model.SessionOutline
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&outline).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session outline failed: %w", err)
	}
	return &outline, nil
}

func (r *SessionOutlineRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&model.SessionOutline{}).Error; err != nil {
		return fmt.Errorf("delete session outline failed: %w", err)
	}
	return nil
}
