package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"logydesk/internal/ai"
	"logydesk/internal/model"
	"logydesk/internal/repository"
)

type fakeGenerator struct {
	requests []ai.GenerateRequest
	answer   string
	err      error
}

func (f *fakeGenerator) Generate(_ context.Context, req ai.GenerateRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakePublisher struct {
	messages []model.ChatMessage
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, msg any) error {
	if f.err != nil {
		return f.err
	}
	if m, ok := msg.(model.ChatMessage); ok {
		f.messages = append(f.messages, m)
	}
	return nil
}

type chatFixture struct {
	svc       *ChatService
	db        *gorm.DB
	generator *fakeGenerator
	publisher *fakePublisher
	agents    *repository.AgentRepository
	messages  *repository.ChatMessageRepository
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	db := newTestDB(t)
	sessionRepo := repository.NewChatSessionRepository(db)
	messageRepo := repository.NewChatMessageRepository(db)
	agentRepo := repository.NewAgentRepository(db)
	chunkRepo := repository.NewDocumentChunkRepository(db)

	generator := &fakeGenerator{answer: "generated answer"}
	publisher := &fakePublisher{}
	rag := NewRAGService(chunkRepo, nil, 5, 0.7, 2000)

	svc := NewChatService(sessionRepo, messageRepo, agentRepo, rag, generator, publisher, nil, 20)
	return &chatFixture{
		svc:       svc,
		db:        db,
		generator: generator,
		publisher: publisher,
		agents:    agentRepo,
		messages:  messageRepo,
	}
}

func TestSendMessageLazySession(t *testing.T) {
	f := newChatFixture(t)

	result, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		UserID:  1,
		Content: "what is the refund policy for enterprise accounts exactly",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Session)
	assert.NotZero(t, result.Session.ID)
	// Title comes from the first six words.
	assert.Equal(t, "what is the refund policy for", result.Session.Title)

	require.Len(t, result.Messages, 2)
	assert.Equal(t, "user", result.Messages[0].Role)
	assert.Equal(t, "assistant", result.Messages[1].Role)
	assert.Equal(t, "generated answer", result.Messages[1].Content)
	assert.False(t, result.Fallback)

	// Both messages went through the async persistence queue.
	require.Len(t, f.publisher.messages, 2)
	assert.Equal(t, result.Session.ID, f.publisher.messages[0].SessionID)
}

func TestSendMessageExistingSession(t *testing.T) {
	f := newChatFixture(t)

	session, err := f.svc.CreateSession(CreateSessionInput{UserID: 1, Title: "support"})
	require.NoError(t, err)

	result, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		UserID:    1,
		SessionID: session.ID,
		Content:   "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, session.ID, result.Session.ID)
}

func TestSendMessageUnknownSession(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		UserID:    1,
		SessionID: 999,
		Content:   "hello",
	})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSendMessageOtherUsersSession(t *testing.T) {
	f := newChatFixture(t)

	session, err := f.svc.CreateSession(CreateSessionInput{UserID: 2, Title: "private"})
	require.NoError(t, err)

	_, err = f.svc.SendMessage(context.Background(), SendMessageInput{
		UserID:    1,
		SessionID: session.ID,
		Content:   "hello",
	})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSendMessageEmptyContent(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.svc.SendMessage(context.Background(), SendMessageInput{UserID: 1, Content: "   "})
	assert.ErrorIs(t, err, ErrMessageEmpty)
}

func TestSendMessageUsesActiveMainAgent(t *testing.T) {
	f := newChatFixture(t)

	agent := &model.Agent{
		UserID:       1,
		Name:         "main",
		AgentType:    model.AgentTypeMain,
		Model:        "agent-model",
		Temperature:  1.3,
		SystemPrompt: "answer like a pirate",
		IsActive:     true,
	}
	require.NoError(t, f.agents.Create(agent))

	_, err := f.svc.SendMessage(context.Background(), SendMessageInput{UserID: 1, Content: "ahoy"})
	require.NoError(t, err)

	require.Len(t, f.generator.requests, 1)
	req := f.generator.requests[0]
	assert.Equal(t, "agent-model", req.Model)
	assert.Equal(t, 1.3, req.Temperature)
	require.NotEmpty(t, req.Messages)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "answer like a pirate")
}

func TestSendMessageDefaultsWithoutAgent(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.svc.SendMessage(context.Background(), SendMessageInput{UserID: 1, Content: "hi"})
	require.NoError(t, err)

	req := f.generator.requests[0]
	assert.Empty(t, req.Model)
	assert.Equal(t, chatDefaultTemperature, req.Temperature)
	assert.Equal(t, chatDefaultMaxTokens, req.MaxTokens)
	assert.Contains(t, req.Messages[0].Content, defaultSystemPrompt)
	// No documents: the system prompt carries no excerpt block.
	assert.NotContains(t, req.Messages[0].Content, "document excerpts")
}

func TestSendMessageFallbackOnAllModelsFailed(t *testing.T) {
	f := newChatFixture(t)
	f.generator.err = ai.ErrAllModelsFailed

	result, err := f.svc.SendMessage(context.Background(), SendMessageInput{UserID: 1, Content: "hi"})
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Equal(t, fallbackAnswer, result.Messages[1].Content)
	assert.Equal(t, map[string]any{"fallback": true}, result.Messages[1].MetadataMap())
}

func TestSendMessageOtherGeneratorErrorPropagates(t *testing.T) {
	f := newChatFixture(t)
	f.generator.err = errors.New("context deadline exceeded")

	_, err := f.svc.SendMessage(context.Background(), SendMessageInput{UserID: 1, Content: "hi"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ai.ErrAllModelsFailed)
}

func TestSendMessageSurvivesRetrievalError(t *testing.T) {
	f := newChatFixture(t)
	// Force the chunk query to fail; the chat must still answer.
	require.NoError(t, f.db.Migrator().DropTable(&model.DocumentChunk{}))

	result, err := f.svc.SendMessage(context.Background(), SendMessageInput{UserID: 1, Content: "hi"})
	require.NoError(t, err)
	assert.Empty(t, result.UsedChunks)
	assert.Equal(t, "generated answer", result.Messages[1].Content)
}

func TestSendMessagePromptIncludesHistory(t *testing.T) {
	f := newChatFixture(t)

	session, err := f.svc.CreateSession(CreateSessionInput{UserID: 1, Title: "s"})
	require.NoError(t, err)
	require.NoError(t, f.messages.Create(&model.ChatMessage{SessionID: session.ID, UserID: 1, Role: "user", Content: "earlier question"}))
	require.NoError(t, f.messages.Create(&model.ChatMessage{SessionID: session.ID, UserID: 1, Role: "assistant", Content: "earlier answer"}))

	_, err = f.svc.SendMessage(context.Background(), SendMessageInput{UserID: 1, SessionID: session.ID, Content: "follow up"})
	require.NoError(t, err)

	req := f.generator.requests[0]
	require.Len(t, req.Messages, 4)
	assert.Equal(t, "earlier question", req.Messages[1].Content)
	assert.Equal(t, "earlier answer", req.Messages[2].Content)
	assert.Equal(t, "follow up", req.Messages[3].Content)
}

func TestGetHistory(t *testing.T) {
	f := newChatFixture(t)

	session, err := f.svc.CreateSession(CreateSessionInput{UserID: 1, Title: "s"})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, f.messages.Create(&model.ChatMessage{SessionID: session.ID, UserID: 1, Role: "user", Content: "m"}))
	}

	messages, err := f.svc.GetHistory(context.Background(), 1, session.ID, 0)
	require.NoError(t, err)
	assert.Len(t, messages, 5)

	limited, err := f.svc.GetHistory(context.Background(), 1, session.ID, 3)
	require.NoError(t, err)
	assert.Len(t, limited, 3)
}

func TestGetHistoryUnknownSession(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.svc.GetHistory(context.Background(), 1, 42, 0)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDeleteSessionRemovesMessages(t *testing.T) {
	f := newChatFixture(t)

	session, err := f.svc.CreateSession(CreateSessionInput{UserID: 1, Title: "s"})
	require.NoError(t, err)
	require.NoError(t, f.messages.Create(&model.ChatMessage{SessionID: session.ID, UserID: 1, Role: "user", Content: "m"}))

	require.NoError(t, f.svc.DeleteSession(context.Background(), 1, session.ID))

	sessions, err := f.svc.ListSessions(1)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	var count int64
	require.NoError(t, f.db.Model(&model.ChatMessage{}).Where("session_id = ?", session.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSessionTitleFrom(t *testing.T) {
	assert.Equal(t, "short question", sessionTitleFrom("short question"))
	long := strings.Repeat("word ", 10)
	assert.Equal(t, "word word word word word word", sessionTitleFrom(long))
}
