package model

import (
	"encoding/json"
	"time"
)

// ChatMessage is append-only; ordered by creation time within a session.
// Metadata is stored as a JSON object for portability across drivers.
type ChatMessage struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	SessionID uint   `gorm:"not null;index" json:"session_id"`
	UserID    uint   `gorm:"not null;index" json:"user_id"`
	Role      string `gorm:"size:16;not null;index" json:"role"`
	Content   string `gorm:"type:text;not null" json:"content"`
	// Metadata round-trips through the persistence queue, so it must marshal.
	Metadata  string    `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MetadataMap returns the parsed metadata object; nil if absent or on parse
// error.
func (m *ChatMessage) MetadataMap() map[string]any {
	if m.Metadata == "" {
		return nil
	}
	var out map[string]any
	_ = json.Unmarshal([]byte(m.Metadata), &out)
	return out
}

// SetMetadata stores the metadata object as JSON.
func (m *ChatMessage) SetMetadata(meta map[string]any) {
	if len(meta) == 0 {
		m.Metadata = ""
		return
	}
	b, _ := json.Marshal(meta)
	m.Metadata = string(b)
}
