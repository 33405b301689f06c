package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gopherai-study/internal/model"
)

type QuizQuestionRepository struct {
	db *gorm.DB
}

func NewQuizQuestionRepository(db *gorm.DB) *QuizQuestionRepository {
	return &QuizQuestionRepository{db: db}
}

// SaveBatch stores questions; rows already present for the same
// (session, section, question id) are left untouched.
func (r *QuizQuestionRepository) SaveBatch(ctx context.Context, questions []model.QuizQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&questions, 100).Error; err != nil {
		return fmt.Errorf("save quiz questions failed: %w", err)
	}
	return nil
}

func (r *QuizQuestionRepository) ListBySessionAndSection(ctx context.Context, sessionID, sectionID string) ([]model.QuizQuestion, error) {
	var list []model.QuizQuestion
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND section_id = ?", sessionID, sectionID).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list quiz questions failed: %w", err)
	}
	return list, nil
}

func (r *QuizQuestionRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&model.QuizQuestion{}).Error; err != nil {
		return fmt.Errorf("delete quiz questions failed: %w", err)
	}
	return nil
}

type QuizSessionRepository struct {
	db *gorm.DB
}

func NewQuizSessionRepository(db *gorm.DB) *QuizSessionRepository {
	return &QuizSessionRepository{db: db}
}

func (r *QuizSessionRepository) Create(ctx context.Context, qs *model.QuizSession) error {
	if err := r.db.WithContext(ctx).Create(qs).Error; err != nil {
		return fmt.Errorf("create quiz session failed: %w", err)
	}
	return nil
}

func (r *QuizSessionRepository) ListBySession(ctx context.Context, sessionID string) ([]model.QuizSession, error) {
	var list []model.QuizSession
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list quiz sessions failed: %w", err)
	}
	return list, nil
}

func (r *QuizSessionRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&model.QuizSession{}).Error; err != nil {
		return fmt.Errorf("delete quiz sessions failed: %w", err)
	}
	return nil
}
