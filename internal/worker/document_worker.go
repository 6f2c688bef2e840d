package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"logydesk/internal/model"
	"logydesk/internal/pkg/pdfextract"
	"logydesk/internal/repository"
)

// StatusReporter records task lifecycle updates for polling clients
// (taskstatus.Store).
type StatusReporter interface {
	Started(ctx context.Context, taskID string) error
	Progress(ctx context.Context, taskID string, current, total int, note string) error
	Succeeded(ctx context.Context, taskID string, result map[string]any) error
	Failed(ctx context.Context, taskID, errorMessage string) error
}

// EmbedDispatcher enqueues per-chunk embedding tasks (rabbitmq.Publisher).
type EmbedDispatcher interface {
	Publish(ctx context.Context, payload any) error
}

// DocumentProcessor runs the ingestion pipeline for one uploaded file:
// extract text, cut it into overlapping chunks, persist the chunk rows, and
// dispatch one embedding task per chunk. The document is COMPLETED once all
// chunk rows exist and their embedding tasks are enqueued; embedding itself
// finishes later, tracked per chunk.
type DocumentProcessor struct {
	docRepo      *repository.DocumentRepository
	chunkRepo    *repository.DocumentChunkRepository
	embedQueue   EmbedDispatcher
	statuses     StatusReporter
	chunkSize    int
	chunkOverlap int
}

func NewDocumentProcessor(
	docRepo *repository.DocumentRepository,
	chunkRepo *repository.DocumentChunkRepository,
	embedQueue EmbedDispatcher,
	statuses StatusReporter,
	chunkSize, chunkOverlap int,
) *DocumentProcessor {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 200
	}
	return &DocumentProcessor{
		docRepo:      docRepo,
		chunkRepo:    chunkRepo,
		embedQueue:   embedQueue,
		statuses:     statuses,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Process handles one ingestion task. The uploaded file is removed on every
// path, success or failure. Errors are recorded on the document row and the
// task status rather than returned for redelivery: a broken file stays broken.
func (p *DocumentProcessor) Process(ctx context.Context, task DocumentTask) {
	defer func() {
		if task.FilePath != "" {
			_ = os.Remove(task.FilePath)
		}
	}()
	// A panicking parse must fail the document, not the consumer: the
	// delivery gets acked either way and the poison file is never redelivered.
	defer func() {
		if rec := recover(); rec != nil {
			p.fail(ctx, task, task.DocumentID, fmt.Sprintf("processing panicked: %v", rec))
		}
	}()

	if p.statuses != nil {
		_ = p.statuses.Started(ctx, task.TaskID)
	}

	doc, err := p.docRepo.GetByID(task.DocumentID)
	if err != nil || doc == nil {
		p.fail(ctx, task, 0, "document not found")
		return
	}

	if err := p.docRepo.SetStatus(doc.ID, model.StatusProcessing, ""); err != nil {
		p.fail(ctx, task, doc.ID, fmt.Sprintf("mark processing failed: %v", err))
		return
	}

	text, err := extractText(task.FilePath, doc.FileName)
	if err != nil {
		p.fail(ctx, task, doc.ID, err.Error())
		return
	}

	chunks := splitText(text, p.chunkSize, p.chunkOverlap)
	if len(chunks) == 0 {
		p.fail(ctx, task, doc.ID, "document contains no extractable text")
		return
	}

	for i, content := range chunks {
		chunk := &model.DocumentChunk{
			DocumentID:      doc.ID,
			Content:         content,
			NumTokens:       len(strings.Fields(content)),
			EmbeddingStatus: model.StatusPending,
		}
		if err := p.chunkRepo.Create(chunk); err != nil {
			p.fail(ctx, task, doc.ID, fmt.Sprintf("persist chunk %d/%d failed: %v", i+1, len(chunks), err))
			return
		}
		if p.embedQueue != nil {
			embedTask := EmbedTask{ChunkID: chunk.ID, DocumentID: doc.ID}
			if err := p.embedQueue.Publish(ctx, embedTask); err != nil {
				log.Printf("dispatch embed task for chunk %d failed: %v", chunk.ID, err)
				_ = p.chunkRepo.SetEmbeddingStatus(chunk.ID, model.StatusFailed, "embed task enqueue failed")
			}
		}
		if p.statuses != nil {
			_ = p.statuses.Progress(ctx, task.TaskID, i+1, len(chunks), "chunking document")
		}
	}

	if err := p.docRepo.SetStatus(doc.ID, model.StatusCompleted, ""); err != nil {
		p.fail(ctx, task, doc.ID, fmt.Sprintf("mark completed failed: %v", err))
		return
	}
	if p.statuses != nil {
		_ = p.statuses.Succeeded(ctx, task.TaskID, map[string]any{
			"document_id": doc.ID,
			"chunk_count": len(chunks),
		})
	}
}

func (p *DocumentProcessor) fail(ctx context.Context, task DocumentTask, documentID uint, reason string) {
	log.Printf("document task %s failed: %s", task.TaskID, reason)
	if documentID != 0 {
		_ = p.docRepo.SetStatus(documentID, model.StatusFailed, reason)
	}
	if p.statuses != nil {
		_ = p.statuses.Failed(ctx, task.TaskID, reason)
	}
}

// extractText dispatches on file extension. The stored path carries the
// original extension; the original name is the fallback for older rows.
func extractText(filePath, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(originalName))
	}

	switch ext {
	case ".pdf":
		f, err := os.Open(filePath)
		if err != nil {
			return "", fmt.Errorf("open file failed: %w", err)
		}
		defer f.Close()
		text, err := pdfextract.ExtractText(f)
		if err != nil {
			return "", fmt.Errorf("pdf extraction failed: %w", err)
		}
		return text, nil
	case ".txt", ".md":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("read file failed: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported file type %q", ext)
	}
}

// DocumentWorker consumes ingestion tasks from RabbitMQ and runs them through
// the processor.
type DocumentWorker struct {
	conn      *amqp.Connection
	processor *DocumentProcessor
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDocumentWorker(conn *amqp.Connection, processor *DocumentProcessor, queueName string) *DocumentWorker {
	return &DocumentWorker{
		conn:      conn,
		processor: processor,
		queueName: queueName,
	}
}

func (w *DocumentWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
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
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
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

				var task DocumentTask
				if err := json.Unmarshal(d.Body, &task); err != nil {
					log.Printf("worker decode document task failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				// Process records its own failures; a delivery is never
				// redelivered for a permanently broken file.
				w.processor.Process(workerCtx, task)
				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *DocumentWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
