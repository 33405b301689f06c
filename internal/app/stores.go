package app

import (
	"context"
	"time"

	"gopherai-study/internal/model"
)

// The interfaces below are satisfied by the gorm repositories in
// internal/repository.

type ChunkStore interface {
	ReplaceDocumentChunks(ctx context.Context, sessionID, filename string, chunks []model.DocumentChunk) error
	ListBySession(ctx context.Context, sessionID string) ([]model.DocumentChunk, error)
	ListBySessionAndSections(ctx context.Context, sessionID string, sectionIDs []string) ([]model.DocumentChunk, error)
	DeleteByDocument(ctx context.Context, sessionID, filename string) error
	DeleteBySession(ctx context.Context, sessionID string) error
}

type DocumentOutlineStore interface {
	Upsert(ctx context.Context, outline *model.DocumentOutline) error
	ListBySession(ctx context.Context, sessionID string) ([]model.DocumentOutline, error)
	GetBySessionAndFilename(ctx context.Context, sessionID, filename string) (*model.DocumentOutline, error)
	DeleteBySessionAndFilename(ctx context.Context, sessionID, filename string) (int64, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}

type SessionOutlineStore interface {
	Upsert(ctx context.Context, outline *model.SessionOutline) error
	GetBySession(ctx context.Context, sessionID string) (*model.SessionOutline, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}

type StudySessionStore interface {
	Touch(ctx context.Context, sessionID string, userID *uint, at time.Time, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*model.StudySession, error)
	MarkExpired(ctx context.Context, sessionID string) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error)
	Delete(ctx context.Context, sessionID string) error
}

type QuizQuestionStore interface {
	SaveBatch(ctx context.Context, questions []model.QuizQuestion) error
	ListBySessionAndSection(ctx context.Context, sessionID, sectionID string) ([]model.QuizQuestion, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}

type QuizSessionStore interface {
	Create(ctx context.Context, qs *model.QuizSession) error
	ListBySession(ctx context.Context, sessionID string) ([]model.QuizSession, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}

// SessionToucher registers activity on a session.
type SessionToucher interface {
	Touch(ctx context.Context, sessionID string, userID *uint) error
}
