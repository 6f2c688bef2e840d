package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"logydesk/internal/ai"
	"logydesk/internal/model"
	"logydesk/internal/repository"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageEmpty    = errors.New("message content is empty")
	ErrMessageEnqueue  = errors.New("message enqueue failed")
)

const (
	defaultSystemPrompt = "You are a concise and helpful AI assistant."

	// Returned as the assistant message when every model failed. The stored
	// message metadata carries fallback=true so callers can tell this apart
	// from a real answer.
	fallbackAnswer = "Sorry, something went wrong while generating the AI response. Please try again later."

	chatDefaultTemperature = 0.7
	chatDefaultMaxTokens   = 1000
)

// ChatGenerator is the fallback chat-completion client (ai.Generator).
type ChatGenerator interface {
	Generate(ctx context.Context, req ai.GenerateRequest) (string, error)
}

// AsyncMessagePublisher enqueues chat messages for asynchronous persistence.
type AsyncMessagePublisher interface {
	Publish(ctx context.Context, msg any) error
}

// HistoryCache caches recent session history with a dirty marker protocol.
type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID uint) ([]model.ChatMessage, bool, error)
	SetHistory(ctx context.Context, sessionID uint, messages []model.ChatMessage) error
	DeleteHistory(ctx context.Context, sessionID uint) error
	MarkDirty(ctx context.Context, sessionID uint) error
	IsDirty(ctx context.Context, sessionID uint) (bool, error)
}

type ChatService struct {
	sessionRepo  *repository.ChatSessionRepository
	messageRepo  *repository.ChatMessageRepository
	agentRepo    *repository.AgentRepository
	rag          *RAGService
	generator    ChatGenerator
	publisher    AsyncMessagePublisher
	historyCache HistoryCache
	maxContext   int
}

func NewChatService(
	sessionRepo *repository.ChatSessionRepository,
	messageRepo *repository.ChatMessageRepository,
	agentRepo *repository.AgentRepository,
	rag *RAGService,
	generator ChatGenerator,
	publisher AsyncMessagePublisher,
	historyCache HistoryCache,
	maxContext int,
) *ChatService {
	if maxContext <= 0 {
		maxContext = 20
	}
	return &ChatService{
		sessionRepo:  sessionRepo,
		messageRepo:  messageRepo,
		agentRepo:    agentRepo,
		rag:          rag,
		generator:    generator,
		publisher:    publisher,
		historyCache: historyCache,
		maxContext:   maxContext,
	}
}

type CreateSessionInput struct {
	UserID uint
	Title  string
}

func (s *ChatService) CreateSession(input CreateSessionInput) (*model.ChatSession, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "New Chat"
	}
	session := &model.ChatSession{
		UserID:   input.UserID,
		Title:    title,
		IsActive: true,
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) ListSessions(userID uint) ([]model.ChatSession, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.sessionRepo.ListByUserID(userID)
}

func (s *ChatService) DeleteSession(ctx context.Context, userID, sessionID uint) error {
	if userID == 0 || sessionID == 0 {
		return ErrInvalidInput
	}
	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if err := s.messageRepo.DeleteBySessionID(sessionID); err != nil {
		return err
	}
	if err := s.sessionRepo.DeleteByIDAndUserID(sessionID, userID); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, sessionID)
	}
	return nil
}

type SendMessageInput struct {
	UserID    uint
	SessionID uint // 0 = create a session lazily
	Content   string
}

type LLMRequestLog struct {
	Model    string           `json:"model"`
	Messages []ai.ChatMessage `json:"messages"`
}

type SendMessageResult struct {
	Session    *model.ChatSession  `json:"session"`
	Messages   []model.ChatMessage `json:"messages"`
	Fallback   bool                `json:"fallback"`
	UsedChunks []ScoredChunk       `json:"used_chunks,omitempty"`
	LLMRequest LLMRequestLog       `json:"llm_request"`
}

// SendMessage runs the RAG chat path: resolve the session (creating one
// lazily), pull context from the user's documents, call the fallback
// generator, and enqueue both messages for async persistence.
func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageResult, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}
	if s.publisher == nil {
		return nil, ErrMessageEnqueue
	}

	session, err := s.resolveSession(input.UserID, input.SessionID, content)
	if err != nil {
		return nil, err
	}

	agent, err := s.agentRepo.GetActiveMain(input.UserID)
	if err != nil {
		return nil, err
	}

	usedChunks, err := s.rag.Search(ctx, content, input.UserID)
	if err != nil {
		// Retrieval is best effort: the chat proceeds without context.
		log.Printf("retrieval failed for session %d: %v", session.ID, err)
		usedChunks = nil
	}
	contextBlock := s.rag.BuildContext(usedChunks)

	promptMessages, err := s.buildPromptMessages(session.ID, agent, contextBlock, content)
	if err != nil {
		return nil, err
	}

	userMessage := model.ChatMessage{
		SessionID: session.ID,
		UserID:    input.UserID,
		Role:      "user",
		Content:   content,
		CreatedAt: time.Now(),
	}
	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, session.ID)
		_ = s.historyCache.DeleteHistory(ctx, session.ID)
	}
	if err := s.publisher.Publish(ctx, userMessage); err != nil {
		return nil, ErrMessageEnqueue
	}

	req := ai.GenerateRequest{
		Messages:    promptMessages,
		Temperature: chatDefaultTemperature,
		MaxTokens:   chatDefaultMaxTokens,
	}
	if agent != nil {
		req.Model = agent.Model
		req.Temperature = agent.Temperature
	}

	fallback := false
	answer, err := s.generator.Generate(ctx, req)
	if err != nil {
		if !errors.Is(err, ai.ErrAllModelsFailed) {
			return nil, err
		}
		fallback = true
		answer = fallbackAnswer
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = "The model returned an empty response."
	}

	assistantMessage := model.ChatMessage{
		SessionID: session.ID,
		UserID:    input.UserID,
		Role:      "assistant",
		Content:   answer,
		CreatedAt: time.Now(),
	}
	if fallback {
		assistantMessage.SetMetadata(map[string]any{"fallback": true})
	}
	if err := s.publisher.Publish(ctx, assistantMessage); err != nil {
		return nil, ErrMessageEnqueue
	}

	return &SendMessageResult{
		Session:    session,
		Messages:   []model.ChatMessage{userMessage, assistantMessage},
		Fallback:   fallback,
		UsedChunks: usedChunks,
		LLMRequest: LLMRequestLog{
			Model:    req.Model,
			Messages: promptMessages,
		},
	}, nil
}

func (s *ChatService) GetHistory(ctx context.Context, userID, sessionID uint, limit int) ([]model.ChatMessage, error) {
	if userID == 0 || sessionID == 0 {
		return nil, ErrInvalidInput
	}

	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messageRepo.ListBySessionID(sessionID, limit)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, sessionID, messages)
		}
	}
	return messages, nil
}

func (s *ChatService) resolveSession(userID, sessionID uint, firstContent string) (*model.ChatSession, error) {
	if sessionID != 0 {
		session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, ErrSessionNotFound
		}
		return session, nil
	}

	title := sessionTitleFrom(firstContent)
	session := &model.ChatSession{UserID: userID, Title: title, IsActive: true}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) buildPromptMessages(
	sessionID uint,
	agent *model.Agent,
	contextBlock string,
	currentUserInput string,
) ([]ai.ChatMessage, error) {
	recent, err := s.messageRepo.ListRecentBySessionID(sessionID, s.maxContext)
	if err != nil {
		return nil, err
	}

	systemContent := defaultSystemPrompt
	if agent != nil && strings.TrimSpace(agent.SystemPrompt) != "" {
		systemContent = strings.TrimSpace(agent.SystemPrompt)
	}
	if contextBlock != "" {
		systemContent += "\n\n" + contextBlock +
			"\n\nAnswer the user's question based on the excerpts above when they are relevant. " +
			"If they do not contain enough information, say so."
	}

	messages := make([]ai.ChatMessage, 0, len(recent)+2)
	messages = append(messages, ai.ChatMessage{Role: "system", Content: systemContent})
	for _, item := range recent {
		role := item.Role
		if role == "" {
			role = "user"
		}
		messages = append(messages, ai.ChatMessage{Role: role, Content: item.Content})
	}
	messages = append(messages, ai.ChatMessage{Role: "user", Content: currentUserInput})
	return messages, nil
}

func trimMessages(messages []model.ChatMessage, limit int) []model.ChatMessage {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}

func sessionTitleFrom(content string) string {
	fields := strings.Fields(content)
	if len(fields) > 6 {
		fields = fields[:6]
	}
	title := strings.Join(fields, " ")
	if len(title) > 60 {
		title = title[:60]
	}
	if title == "" {
		title = fmt.Sprintf("New Chat %s", time.Now().Format("2006-01-02 15:04"))
	}
	return title
}
