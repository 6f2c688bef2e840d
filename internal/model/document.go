package model

import "time"

// Document is the metadata row for one uploaded file. ProcessingStatus is
// COMPLETED once every chunk row exists and its embedding job has been
// dispatched; chunk embeddings finish independently afterwards.
type Document struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	UserID           uint             `gorm:"not null;index" json:"user_id"`
	FileName         string           `gorm:"size:255;not null" json:"file_name"`
	FilePath         string           `gorm:"size:512;not null" json:"-"`
	FileSize         int64            `gorm:"not null" json:"file_size"`
	ContentType      string           `gorm:"size:100" json:"content_type"`
	ProcessingStatus ProcessingStatus `gorm:"size:20;not null;default:PENDING;index" json:"processing_status"`
	Summary          string           `gorm:"type:text" json:"summary,omitempty"`
	DocType          string           `gorm:"size:50" json:"doc_type,omitempty"`
	ErrorMessage     string           `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
