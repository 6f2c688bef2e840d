package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"logydesk/internal/ai"
	appsvc "logydesk/internal/app"
	"logydesk/internal/bootstrap"
	"logydesk/internal/cache"
	"logydesk/internal/platform/rabbitmq"
	"logydesk/internal/repository"
	"logydesk/internal/taskstatus"
	"logydesk/internal/transport/http/handler"
	"logydesk/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	cfg := app.Config

	userRepo := repository.NewUserRepository(app.MySQL)
	agentRepo := repository.NewAgentRepository(app.MySQL)
	docRepo := repository.NewDocumentRepository(app.MySQL)
	chunkRepo := repository.NewDocumentChunkRepository(app.MySQL)
	sessionRepo := repository.NewChatSessionRepository(app.MySQL)
	messageRepo := repository.NewChatMessageRepository(app.MySQL)

	authService := appsvc.NewAuthService(
		userRepo,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
	)
	agentService := appsvc.NewAgentService(agentRepo)

	aiClient := ai.NewClient()
	provider := ai.ProviderConfig{BaseURL: cfg.LLM.BaseURL, APIKey: cfg.LLM.APIKey}
	generator := ai.NewGenerator(aiClient, ai.GeneratorConfig{
		Provider:       provider,
		Model:          cfg.LLM.Model,
		FallbackModels: cfg.LLM.FallbackModels,
		MaxRetries:     cfg.LLM.MaxRetries,
		RetryBaseDelay: time.Duration(cfg.LLM.RetryBaseDelayMS) * time.Millisecond,
	})

	// Nil when no embedding model is configured; retrieval then uses the
	// keyword scan.
	queryEmbedder := bootstrap.QueryEmbedder(cfg)

	ragService := appsvc.NewRAGService(
		chunkRepo,
		queryEmbedder,
		cfg.RAG.TopK,
		cfg.RAG.ScoreThreshold,
		cfg.RAG.MaxContextChars,
	)

	statusStore := taskstatus.NewStore(
		app.Redis,
		time.Duration(cfg.Redis.TaskStatusTTLHours)*time.Hour,
	)
	documentPublisher := rabbitmq.NewPublisher(app.MQConn, cfg.RabbitMQ.DocumentTaskQueue)
	messagePublisher := rabbitmq.NewPublisher(app.MQConn, cfg.RabbitMQ.MessagePersistQueue)
	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)

	documentService := appsvc.NewDocumentService(
		docRepo,
		chunkRepo,
		documentPublisher,
		statusStore,
		cfg.Upload.Dir,
		cfg.Upload.MaxFileSizeMB,
	)
	chatService := appsvc.NewChatService(
		sessionRepo,
		messageRepo,
		agentRepo,
		ragService,
		generator,
		messagePublisher,
		historyCache,
		cfg.LLM.MaxContextMessage,
	)

	authHandler := handler.NewAuthHandler(authService)
	agentHandler := handler.NewAgentHandler(agentService)
	chatHandler := handler.NewChatHandler(chatService)
	documentHandler := handler.NewDocumentHandler(documentService)

	authMW := middleware.AuthJWT(cfg.Auth.JWTSecret)

	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", authMW, authHandler.Me)

	agentGroup := v1.Group("/agents")
	agentGroup.Use(authMW)
	agentGroup.POST("", agentHandler.Create)
	agentGroup.GET("", agentHandler.List)
	agentGroup.GET("/:id", agentHandler.Get)
	agentGroup.PUT("/:id", agentHandler.Update)
	agentGroup.DELETE("/:id", agentHandler.Delete)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(authMW)
	chatGroup.POST("/sessions", chatHandler.CreateSession)
	chatGroup.GET("/sessions", chatHandler.ListSessions)
	chatGroup.DELETE("/sessions/:id", chatHandler.DeleteSession)
	chatGroup.GET("/sessions/:id/messages", chatHandler.SessionMessages)
	chatGroup.POST("/messages", chatHandler.SendMessage)

	documentGroup := v1.Group("/documents")
	documentGroup.Use(authMW)
	documentGroup.POST("/upload", documentHandler.Upload)
	documentGroup.GET("", documentHandler.List)
	documentGroup.GET("/task-status/:task_id", documentHandler.TaskStatus)
	documentGroup.GET("/:id", documentHandler.Get)
	documentGroup.DELETE("/:id", documentHandler.Delete)

	return router
}
