package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"logydesk/internal/model"
)

type DocumentChunkRepository struct {
	db *gorm.DB
}

func NewDocumentChunkRepository(db *gorm.DB) *DocumentChunkRepository {
	return &DocumentChunkRepository{db: db}
}

func (r *DocumentChunkRepository) Create(chunk *model.DocumentChunk) error {
	if err := r.db.Create(chunk).Error; err != nil {
		return fmt.Errorf("create document chunk failed: %w", err)
	}
	return nil
}

func (r *DocumentChunkRepository) GetByID(id uint) (*model.DocumentChunk, error) {
	var chunk model.DocumentChunk
	if err := r.db.First(&chunk, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document chunk failed: %w", err)
	}
	return &chunk, nil
}

// ListByDocumentID returns the document's chunks in creation order, which
// preserves source-text order.
func (r *DocumentChunkRepository) ListByDocumentID(documentID uint) ([]model.DocumentChunk, error) {
	var chunks []model.DocumentChunk
	if err := r.db.Where("document_id = ?", documentID).Order("id ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list document chunks failed: %w", err)
	}
	return chunks, nil
}

// ListEmbeddedByUserID returns every chunk of the user's documents that has a
// completed embedding.
func (r *DocumentChunkRepository) ListEmbeddedByUserID(userID uint) ([]model.DocumentChunk, error) {
	var chunks []model.DocumentChunk
	err := r.db.
		Joins("JOIN documents ON documents.id = document_chunks.document_id").
		Where("documents.user_id = ? AND document_chunks.embedding_status = ? AND document_chunks.embedding <> ''",
			userID, model.StatusCompleted).
		Order("document_chunks.id ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("list embedded chunks failed: %w", err)
	}
	return chunks, nil
}

// SearchContentByUserID is the keyword fallback: a case-insensitive substring
// scan over the user's chunk contents, capped at limit.
func (r *DocumentChunkRepository) SearchContentByUserID(userID uint, query string, limit int) ([]model.DocumentChunk, error) {
	if limit <= 0 {
		limit = 5
	}
	pattern := "%" + strings.ToLower(query) + "%"
	var chunks []model.DocumentChunk
	err := r.db.
		Joins("JOIN documents ON documents.id = document_chunks.document_id").
		Where("documents.user_id = ? AND LOWER(document_chunks.content) LIKE ?", userID, pattern).
		Order("document_chunks.id ASC").
		Limit(limit).
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("search chunks failed: %w", err)
	}
	return chunks, nil
}

// SetEmbeddingStatus updates the chunk's lifecycle state and error message.
func (r *DocumentChunkRepository) SetEmbeddingStatus(id uint, status model.ProcessingStatus, errorMessage string) error {
	updates := map[string]any{
		"embedding_status": status,
		"error_message":    errorMessage,
	}
	if err := r.db.Model(&model.DocumentChunk{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("update chunk status failed: %w", err)
	}
	return nil
}

// SaveEmbedding persists the vector and marks the chunk COMPLETED in one
// update. Re-running overwrites any previous vector.
func (r *DocumentChunkRepository) SaveEmbedding(id uint, embeddingJSON string) error {
	updates := map[string]any{
		"embedding":        embeddingJSON,
		"embedding_status": model.StatusCompleted,
		"error_message":    "",
	}
	if err := r.db.Model(&model.DocumentChunk{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("save chunk embedding failed: %w", err)
	}
	return nil
}

func (r *DocumentChunkRepository) DeleteByDocumentID(documentID uint) error {
	if err := r.db.Where("document_id = ?", documentID).Delete(&model.DocumentChunk{}).Error; err != nil {
		return fmt.Errorf("delete document chunks failed: %w", err)
	}
	return nil
}

func (r *DocumentChunkRepository) CountByDocumentID(documentID uint) (int64, error) {
	var n int64
	if err := r.db.Model(&model.DocumentChunk{}).Where("document_id = ?", documentID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count document chunks failed: %w", err)
	}
	return n, nil
}
