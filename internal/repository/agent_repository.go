package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"logydesk/internal/model"
)

type AgentRepository struct {
	db *gorm.DB
}

func NewAgentRepository(db *gorm.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

func (r *AgentRepository) Create(agent *model.Agent) error {
	if err := r.db.Create(agent).Error; err != nil {
		return fmt.Errorf("create agent failed: %w", err)
	}
	return nil
}

func (r *AgentRepository) Update(agent *model.Agent) error {
	if err := r.db.Save(agent).Error; err != nil {
		return fmt.Errorf("update agent failed: %w", err)
	}
	return nil
}

func (r *AgentRepository) GetByIDAndUserID(id, userID uint) (*model.Agent, error) {
	var agent model.Agent
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&agent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get agent failed: %w", err)
	}
	return &agent, nil
}

func (r *AgentRepository) GetByNameAndUserID(name string, userID uint) (*model.Agent, error) {
	var agent model.Agent
	if err := r.db.Where("name = ? AND user_id = ?", name, userID).First(&agent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get agent by name failed: %w", err)
	}
	return &agent, nil
}

// GetActiveMain returns the user's active main agent, nil if none.
func (r *AgentRepository) GetActiveMain(userID uint) (*model.Agent, error) {
	var agent model.Agent
	err := r.db.
		Where("user_id = ? AND agent_type = ? AND is_active = ?", userID, model.AgentTypeMain, true).
		Order("updated_at DESC").
		First(&agent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active main agent failed: %w", err)
	}
	return &agent, nil
}

func (r *AgentRepository) ListByUserID(userID uint) ([]model.Agent, error) {
	var agents []model.Agent
	if err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("list agents failed: %w", err)
	}
	return agents, nil
}

// DeactivateMainsExcept clears the active flag on every other main agent of
// the user, keeping at most one active main.
func (r *AgentRepository) DeactivateMainsExcept(userID, keepID uint) error {
	err := r.db.Model(&model.Agent{}).
		Where("user_id = ? AND agent_type = ? AND id <> ?", userID, model.AgentTypeMain, keepID).
		Update("is_active", false).Error
	if err != nil {
		return fmt.Errorf("deactivate main agents failed: %w", err)
	}
	return nil
}

func (r *AgentRepository) DeleteByIDAndUserID(id, userID uint) error {
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Agent{}).Error; err != nil {
		return fmt.Errorf("delete agent failed: %w", err)
	}
	return nil
}
