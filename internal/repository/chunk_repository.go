package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"gopherai-study/internal/model"
)

const chunkBatchSize = 200

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ReplaceDocumentChunks swaps every chunk of (sessionID, filename) for chunks
// in one transaction so readers never see a half-replaced document.
func (r *ChunkRepository) ReplaceDocumentChunks(ctx context.Context, sessionID, filename string, chunks []model.DocumentChunk) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ? AND filename = ?", sessionID, filename).Delete(&model.DocumentChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.CreateInBatches(&chunks, chunkBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("replace document chunks failed: %w", err)
	}
	return nil
}

// ListBySession returns every chunk of the session ordered by document and index.
func (r *ChunkRepository) ListBySession(ctx context.Context, sessionID string) ([]model.DocumentChunk, error) {
	var chunks []model.DocumentChunk
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("filename ASC, chunk_index ASC").
		Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks by session failed: %w", err)
	}
	return chunks, nil
}

// ListBySessionAndSections returns the session's chunks tagged with any of sectionIDs.
func (r *ChunkRepository) ListBySessionAndSections(ctx context.Context, sessionID string, sectionIDs []string) ([]model.DocumentChunk, error) {
	if len(sectionIDs) == 0 {
		return nil, nil
	}
	var chunks []model.DocumentChunk
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND section_id IN ?", sessionID, sectionIDs).
		Order("filename ASC, chunk_index ASC").
		Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks by sections failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) DeleteByDocument(ctx context.Context, sessionID, filename string) error {
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND filename = ?", sessionID, filename).
		Delete(&model.DocumentChunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by document failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&model.DocumentChunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by session failed: %w", err)
	}
	return nil
}
