package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/panjf2000/ants/v2"
	amqp "github.com/rabbitmq/amqp091-go"

	"logydesk/internal/ai"
	"logydesk/internal/model"
	"logydesk/internal/platform/rabbitmq"
	"logydesk/internal/repository"
)

// RetryPublisher republishes failed embedding tasks with a bounded retry
// counter (rabbitmq.Publisher).
type RetryPublisher interface {
	PublishRetry(ctx context.Context, payload any, retryCount int) error
}

// ChunkEmbedder vectorizes one chunk and records the outcome on its row.
type ChunkEmbedder struct {
	chunkRepo *repository.DocumentChunkRepository
	embedder  ai.Embedder
}

func NewChunkEmbedder(chunkRepo *repository.DocumentChunkRepository, embedder ai.Embedder) *ChunkEmbedder {
	return &ChunkEmbedder{chunkRepo: chunkRepo, embedder: embedder}
}

// Process embeds the chunk's content. A returned error means the task is
// retryable; terminal conditions (missing chunk) are swallowed after logging.
func (e *ChunkEmbedder) Process(ctx context.Context, task EmbedTask) error {
	chunk, err := e.chunkRepo.GetByID(task.ChunkID)
	if err != nil {
		return fmt.Errorf("load chunk %d failed: %w", task.ChunkID, err)
	}
	if chunk == nil {
		// Document was deleted between dispatch and processing.
		log.Printf("embed task for missing chunk %d dropped", task.ChunkID)
		return nil
	}
	if chunk.EmbeddingStatus == model.StatusCompleted {
		return nil
	}

	if err := e.chunkRepo.SetEmbeddingStatus(chunk.ID, model.StatusProcessing, ""); err != nil {
		return fmt.Errorf("mark chunk %d processing failed: %w", chunk.ID, err)
	}

	vec, err := e.embedder.EmbedText(ctx, chunk.Content)
	if err != nil {
		return fmt.Errorf("embed chunk %d failed: %w", chunk.ID, err)
	}

	payload, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("encode embedding for chunk %d failed: %w", chunk.ID, err)
	}
	if err := e.chunkRepo.SaveEmbedding(chunk.ID, string(payload)); err != nil {
		return fmt.Errorf("save embedding for chunk %d failed: %w", chunk.ID, err)
	}
	return nil
}

// MarkFailed records a terminal embedding failure on the chunk row.
func (e *ChunkEmbedder) MarkFailed(chunkID uint, reason string) {
	_ = e.chunkRepo.SetEmbeddingStatus(chunkID, model.StatusFailed, reason)
}

// EmbedWorker consumes embedding tasks from RabbitMQ and runs them on a
// bounded goroutine pool. Failed tasks are republished with an incremented
// retry counter; past maxRetries the chunk is marked FAILED and the task is
// dropped.
type EmbedWorker struct {
	conn       *amqp.Connection
	embedder   *ChunkEmbedder
	publisher  RetryPublisher
	queueName  string
	maxRetries int
	poolSize   int

	pool   *ants.Pool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEmbedWorker(
	conn *amqp.Connection,
	embedder *ChunkEmbedder,
	publisher RetryPublisher,
	queueName string,
	maxRetries, poolSize int,
) *EmbedWorker {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if poolSize <= 0 {
		poolSize = 4
	}
	return &EmbedWorker{
		conn:       conn,
		embedder:   embedder,
		publisher:  publisher,
		queueName:  queueName,
		maxRetries: maxRetries,
		poolSize:   poolSize,
	}
}

func (w *EmbedWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	pool, err := ants.NewPool(w.poolSize)
	if err != nil {
		cancel()
		return fmt.Errorf("create embed pool failed: %w", err)
	}
	w.pool = pool

	ch, err := w.conn.Channel()
	if err != nil {
		pool.Release()
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		pool.Release()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	if err := ch.Qos(w.poolSize, 0, false); err != nil {
		_ = ch.Close()
		pool.Release()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		pool.Release()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				delivery := d
				if submitErr := w.pool.Submit(func() {
					w.handle(workerCtx, delivery)
				}); submitErr != nil {
					log.Printf("submit embed task failed: %v", submitErr)
					_ = delivery.Nack(false, true)
				}
			}
		}
	}()

	return nil
}

func (w *EmbedWorker) handle(ctx context.Context, d amqp.Delivery) {
	var task EmbedTask
	if err := json.Unmarshal(d.Body, &task); err != nil {
		log.Printf("worker decode embed task failed: %v", err)
		_ = d.Nack(false, false)
		return
	}

	err := w.embedder.Process(ctx, task)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	retries := rabbitmq.RetryCount(d)
	if retries+1 >= w.maxRetries {
		log.Printf("embed task for chunk %d exhausted retries: %v", task.ChunkID, err)
		w.embedder.MarkFailed(task.ChunkID, err.Error())
		_ = d.Ack(false)
		return
	}

	log.Printf("embed task for chunk %d failed (retry %d): %v", task.ChunkID, retries+1, err)
	if pubErr := w.publisher.PublishRetry(ctx, task, retries+1); pubErr != nil {
		log.Printf("republish embed task for chunk %d failed: %v", task.ChunkID, pubErr)
		w.embedder.MarkFailed(task.ChunkID, err.Error())
	}
	_ = d.Ack(false)
}

func (w *EmbedWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	if w.pool != nil {
		w.pool.Release()
	}
}
