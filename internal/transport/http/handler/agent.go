package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"logydesk/internal/app"
	"logydesk/internal/transport/http/response"
)

type AgentHandler struct {
	agentService *app.AgentService
}

func NewAgentHandler(agentService *app.AgentService) *AgentHandler {
	return &AgentHandler{agentService: agentService}
}

type CreateAgentRequest struct {
	Name         string  `json:"name" binding:"required,min=1,max=64"`
	AgentType    string  `json:"agent_type" binding:"required"`
	Model        string  `json:"model" binding:"required,min=1,max=128"`
	Temperature  float64 `json:"temperature"`
	SystemPrompt string  `json:"system_prompt"`
}

type UpdateAgentRequest struct {
	Name         *string  `json:"name"`
	Model        *string  `json:"model"`
	Temperature  *float64 `json:"temperature"`
	SystemPrompt *string  `json:"system_prompt"`
	IsActive     *bool    `json:"is_active"`
}

func (h *AgentHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	agent, err := h.agentService.Create(app.CreateAgentInput{
		UserID:       userID,
		Name:         req.Name,
		AgentType:    req.AgentType,
		Model:        req.Model,
		Temperature:  req.Temperature,
		SystemPrompt: req.SystemPrompt,
	})
	if err != nil {
		writeAgentError(c, err, "create agent failed")
		return
	}
	response.OK(c, agent)
}

func (h *AgentHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	agents, err := h.agentService.List(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list agents failed")
		return
	}
	response.OK(c, agents)
}

func (h *AgentHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	agentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	agent, err := h.agentService.Get(userID, agentID)
	if err != nil {
		writeAgentError(c, err, "fetch agent failed")
		return
	}
	response.OK(c, agent)
}

func (h *AgentHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	agentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req UpdateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	agent, err := h.agentService.Update(userID, agentID, app.UpdateAgentInput{
		Name:         req.Name,
		Model:        req.Model,
		Temperature:  req.Temperature,
		SystemPrompt: req.SystemPrompt,
		IsActive:     req.IsActive,
	})
	if err != nil {
		writeAgentError(c, err, "update agent failed")
		return
	}
	response.OK(c, agent)
}

func (h *AgentHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	agentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.agentService.Delete(userID, agentID); err != nil {
		writeAgentError(c, err, "delete agent failed")
		return
	}
	response.OK(c, gin.H{"deleted": agentID})
}

func writeAgentError(c *gin.Context, err error, fallbackMsg string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrInvalidAgentType), errors.Is(err, app.ErrAgentTypeImmutable):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrAgentNameExists):
		response.Error(c, http.StatusBadRequest, response.CodeNameExists, err.Error())
	case errors.Is(err, app.ErrAgentNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallbackMsg)
	}
}
