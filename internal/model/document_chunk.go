package model

import (
	"encoding/json"
	"time"
)

// DocumentChunk is one overlapping text window of a document. Rows are created
// in source-text order; the embedding worker fills Embedding and moves
// EmbeddingStatus independently of the parent document's status.
// Embedding is stored as a JSON array of float32 for portability.
type DocumentChunk struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	DocumentID      uint             `gorm:"not null;index" json:"document_id"`
	Content         string           `gorm:"type:text;not null" json:"content"`
	NumTokens       int              `gorm:"not null" json:"num_tokens"`
	Embedding       string           `gorm:"type:text" json:"-"`
	EmbeddingStatus ProcessingStatus `gorm:"size:20;not null;default:PENDING;index" json:"embedding_status"`
	ErrorMessage    string           `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// EmbeddingVector returns the parsed embedding slice; nil if absent or on
// parse error.
func (c *DocumentChunk) EmbeddingVector() []float32 {
	if c.Embedding == "" {
		return nil
	}
	var v []float32
	_ = json.Unmarshal([]byte(c.Embedding), &v)
	return v
}

// SetEmbedding stores the embedding as JSON.
func (c *DocumentChunk) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}
