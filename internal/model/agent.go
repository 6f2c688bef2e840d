package model

import "time"

const (
	AgentTypeMain = "main"
	AgentTypeSub  = "sub"
)

// Agent is a stored LLM configuration: one persona with a model, temperature
// and system prompt. The active "main" agent drives default chat settings;
// "sub" agents are auxiliary. AgentType is immutable after creation.
type Agent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index;uniqueIndex:idx_agent_user_name" json:"user_id"`
	Name         string    `gorm:"size:100;not null;uniqueIndex:idx_agent_user_name" json:"name"`
	AgentType    string    `gorm:"size:16;not null" json:"agent_type"`
	Model        string    `gorm:"size:100;not null" json:"model"`
	Temperature  float64   `gorm:"not null;default:0.7" json:"temperature"`
	SystemPrompt string    `gorm:"type:text" json:"system_prompt"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
