package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"logydesk/internal/bootstrap"
	"logydesk/internal/platform/rabbitmq"
	"logydesk/internal/repository"
	"logydesk/internal/taskstatus"
	"logydesk/internal/worker"
)

// The worker binary runs the ingestion and embedding consumers. It shares the
// bootstrap with the API server so both read one config and one schema.
func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx)
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("close resources failed: %v", err)
		}
	}()

	cfg := app.Config
	docRepo := repository.NewDocumentRepository(app.MySQL)
	chunkRepo := repository.NewDocumentChunkRepository(app.MySQL)

	statusStore := taskstatus.NewStore(
		app.Redis,
		time.Duration(cfg.Redis.TaskStatusTTLHours)*time.Hour,
	)
	embedPublisher := rabbitmq.NewPublisher(app.MQConn, cfg.RabbitMQ.EmbedTaskQueue)

	processor := worker.NewDocumentProcessor(
		docRepo,
		chunkRepo,
		embedPublisher,
		statusStore,
		cfg.RAG.ChunkSize,
		cfg.RAG.ChunkOverlap,
	)
	documentWorker := worker.NewDocumentWorker(app.MQConn, processor, cfg.RabbitMQ.DocumentTaskQueue)
	if err := documentWorker.Start(ctx); err != nil {
		log.Fatalf("start document worker failed: %v", err)
	}
	defer documentWorker.Close()

	chunkEmbedder := worker.NewChunkEmbedder(chunkRepo, bootstrap.IngestEmbedder(cfg))
	embedWorker := worker.NewEmbedWorker(
		app.MQConn,
		chunkEmbedder,
		embedPublisher,
		cfg.RabbitMQ.EmbedTaskQueue,
		cfg.RabbitMQ.EmbedMaxRetries,
		cfg.RabbitMQ.EmbedWorkers,
	)
	if err := embedWorker.Start(ctx); err != nil {
		log.Fatalf("start embed worker failed: %v", err)
	}
	defer embedWorker.Close()

	log.Printf("workers running: document=%s embed=%s", cfg.RabbitMQ.DocumentTaskQueue, cfg.RabbitMQ.EmbedTaskQueue)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("workers shutting down")
}
