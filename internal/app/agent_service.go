package app

import (
	"errors"
	"strings"

	"logydesk/internal/model"
	"logydesk/internal/repository"
)

var (
	ErrAgentNotFound      = errors.New("agent not found")
	ErrAgentNameExists    = errors.New("agent name already exists")
	ErrInvalidAgentType   = errors.New("agent_type must be 'main' or 'sub'")
	ErrAgentTypeImmutable = errors.New("agent_type cannot be changed")
)

type AgentService struct {
	agentRepo *repository.AgentRepository
}

func NewAgentService(agentRepo *repository.AgentRepository) *AgentService {
	return &AgentService{agentRepo: agentRepo}
}

type CreateAgentInput struct {
	UserID       uint
	Name         string
	AgentType    string
	Model        string
	Temperature  float64
	SystemPrompt string
}

// UpdateAgentInput carries optional field updates; nil means keep.
// AgentType is intentionally absent: the type is immutable after creation.
type UpdateAgentInput struct {
	Name         *string
	Model        *string
	Temperature  *float64
	SystemPrompt *string
	IsActive     *bool
}

func (s *AgentService) Create(input CreateAgentInput) (*model.Agent, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	name := strings.TrimSpace(input.Name)
	if name == "" || strings.TrimSpace(input.Model) == "" {
		return nil, ErrInvalidInput
	}
	agentType := strings.ToLower(strings.TrimSpace(input.AgentType))
	if agentType != model.AgentTypeMain && agentType != model.AgentTypeSub {
		return nil, ErrInvalidAgentType
	}
	if input.Temperature < 0 || input.Temperature > 2 {
		return nil, ErrInvalidInput
	}

	existing, err := s.agentRepo.GetByNameAndUserID(name, input.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAgentNameExists
	}

	agent := &model.Agent{
		UserID:       input.UserID,
		Name:         name,
		AgentType:    agentType,
		Model:        strings.TrimSpace(input.Model),
		Temperature:  input.Temperature,
		SystemPrompt: input.SystemPrompt,
		IsActive:     true,
	}
	if err := s.agentRepo.Create(agent); err != nil {
		return nil, err
	}

	// A user has at most one active main agent; the newest one wins.
	if agent.AgentType == model.AgentTypeMain {
		if err := s.agentRepo.DeactivateMainsExcept(input.UserID, agent.ID); err != nil {
			return nil, err
		}
	}
	return agent, nil
}

func (s *AgentService) Get(userID, agentID uint) (*model.Agent, error) {
	if userID == 0 || agentID == 0 {
		return nil, ErrInvalidInput
	}
	agent, err := s.agentRepo.GetByIDAndUserID(agentID, userID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, ErrAgentNotFound
	}
	return agent, nil
}

func (s *AgentService) List(userID uint) ([]model.Agent, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.agentRepo.ListByUserID(userID)
}

func (s *AgentService) Update(userID, agentID uint, input UpdateAgentInput) (*model.Agent, error) {
	agent, err := s.Get(userID, agentID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrInvalidInput
		}
		if name != agent.Name {
			existing, err := s.agentRepo.GetByNameAndUserID(name, userID)
			if err != nil {
				return nil, err
			}
			if existing != nil && existing.ID != agent.ID {
				return nil, ErrAgentNameExists
			}
			agent.Name = name
		}
	}
	if input.Model != nil {
		if strings.TrimSpace(*input.Model) == "" {
			return nil, ErrInvalidInput
		}
		agent.Model = strings.TrimSpace(*input.Model)
	}
	if input.Temperature != nil {
		if *input.Temperature < 0 || *input.Temperature > 2 {
			return nil, ErrInvalidInput
		}
		agent.Temperature = *input.Temperature
	}
	if input.SystemPrompt != nil {
		agent.SystemPrompt = *input.SystemPrompt
	}
	if input.IsActive != nil {
		agent.IsActive = *input.IsActive
	}

	if err := s.agentRepo.Update(agent); err != nil {
		return nil, err
	}
	if agent.AgentType == model.AgentTypeMain && agent.IsActive {
		if err := s.agentRepo.DeactivateMainsExcept(userID, agent.ID); err != nil {
			return nil, err
		}
	}
	return agent, nil
}

func (s *AgentService) Delete(userID, agentID uint) error {
	if _, err := s.Get(userID, agentID); err != nil {
		return err
	}
	return s.agentRepo.DeleteByIDAndUserID(agentID, userID)
}

// ResolveChatDefaults returns the active main agent driving default chat
// settings, or nil when the user has none.
func (s *AgentService) ResolveChatDefaults(userID uint) (*model.Agent, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.agentRepo.GetActiveMain(userID)
}
