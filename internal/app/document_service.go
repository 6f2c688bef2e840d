package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"logydesk/internal/model"
	"logydesk/internal/repository"
	"logydesk/internal/taskstatus"
	"logydesk/internal/worker"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrNoFile           = errors.New("no file provided")
	ErrFileTooLarge     = errors.New("file exceeds the upload size limit")
	ErrTaskEnqueue      = errors.New("ingest task enqueue failed")
)

// TaskPublisher enqueues ingest tasks (rabbitmq.Publisher).
type TaskPublisher interface {
	Publish(ctx context.Context, payload any) error
}

// TaskStatusStore records and serves task polling payloads.
type TaskStatusStore interface {
	Pending(ctx context.Context, taskID string) error
	Get(ctx context.Context, taskID string) (taskstatus.Status, error)
}

type DocumentService struct {
	docRepo     *repository.DocumentRepository
	chunkRepo   *repository.DocumentChunkRepository
	publisher   TaskPublisher
	statuses    TaskStatusStore
	uploadDir   string
	maxFileSize int64
}

func NewDocumentService(
	docRepo *repository.DocumentRepository,
	chunkRepo *repository.DocumentChunkRepository,
	publisher TaskPublisher,
	statuses TaskStatusStore,
	uploadDir string,
	maxFileSizeMB int,
) *DocumentService {
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	if maxFileSizeMB <= 0 {
		maxFileSizeMB = 20
	}
	return &DocumentService{
		docRepo:     docRepo,
		chunkRepo:   chunkRepo,
		publisher:   publisher,
		statuses:    statuses,
		uploadDir:   uploadDir,
		maxFileSize: int64(maxFileSizeMB) * 1024 * 1024,
	}
}

// UploadResult is the immediate upload response: processing continues in the
// worker, observable through the task id.
type UploadResult struct {
	Document *model.Document `json:"document"`
	TaskID   string          `json:"task_id"`
}

// Upload persists the file and the PENDING document row, then hands off to
// the ingestion worker. Identical content uploaded twice produces two
// distinct documents: there is deliberately no dedup.
func (s *DocumentService) Upload(
	ctx context.Context,
	userID uint,
	fileName, contentType string,
	r io.Reader,
	declaredSize int64,
) (*UploadResult, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	if fileName == "" || r == nil {
		return nil, ErrNoFile
	}
	if declaredSize > s.maxFileSize {
		return nil, ErrFileTooLarge
	}

	filePath, written, err := s.saveFile(fileName, r)
	if err != nil {
		return nil, err
	}
	if written > s.maxFileSize {
		_ = os.Remove(filePath)
		return nil, ErrFileTooLarge
	}

	doc := &model.Document{
		UserID:           userID,
		FileName:         fileName,
		FilePath:         filePath,
		FileSize:         written,
		ContentType:      contentType,
		ProcessingStatus: model.StatusPending,
	}
	if err := s.docRepo.Create(doc); err != nil {
		_ = os.Remove(filePath)
		return nil, err
	}

	taskID := uuid.NewString()
	if s.statuses != nil {
		_ = s.statuses.Pending(ctx, taskID)
	}
	task := worker.DocumentTask{
		TaskID:     taskID,
		DocumentID: doc.ID,
		FilePath:   filePath,
	}
	if err := s.publisher.Publish(ctx, task); err != nil {
		_ = s.docRepo.SetStatus(doc.ID, model.StatusFailed, "ingest task enqueue failed")
		_ = os.Remove(filePath)
		return nil, ErrTaskEnqueue
	}

	return &UploadResult{Document: doc, TaskID: taskID}, nil
}

func (s *DocumentService) List(userID uint) ([]model.Document, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docRepo.ListByUserID(userID)
}

// DocumentDetail includes per-chunk embedding statuses so clients can watch
// embedding progress after the document itself is COMPLETED.
type DocumentDetail struct {
	Document *model.Document       `json:"document"`
	Chunks   []model.DocumentChunk `json:"chunks"`
}

func (s *DocumentService) Get(userID, documentID uint) (*DocumentDetail, error) {
	if userID == 0 || documentID == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.docRepo.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	chunks, err := s.chunkRepo.ListByDocumentID(doc.ID)
	if err != nil {
		return nil, err
	}
	return &DocumentDetail{Document: doc, Chunks: chunks}, nil
}

// Delete removes the document, all of its chunks, and the stored file.
func (s *DocumentService) Delete(userID, documentID uint) error {
	if userID == 0 || documentID == 0 {
		return ErrInvalidInput
	}
	doc, err := s.docRepo.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	if err := s.chunkRepo.DeleteByDocumentID(doc.ID); err != nil {
		return err
	}
	if err := s.docRepo.DeleteByIDAndUserID(doc.ID, userID); err != nil {
		return err
	}
	if doc.FilePath != "" {
		_ = os.Remove(doc.FilePath)
	}
	return nil
}

func (s *DocumentService) TaskStatus(ctx context.Context, taskID string) (taskstatus.Status, error) {
	if taskID == "" {
		return taskstatus.Status{}, ErrInvalidInput
	}
	return s.statuses.Get(ctx, taskID)
}

func (s *DocumentService) saveFile(originalName string, r io.Reader) (string, int64, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create upload dir failed: %w", err)
	}

	ext := filepath.Ext(originalName)
	name := fmt.Sprintf("%s_%s%s", time.Now().UTC().Format("20060102_150405"), uuid.NewString(), ext)
	filePath := filepath.Join(s.uploadDir, name)

	dst, err := os.Create(filePath)
	if err != nil {
		return "", 0, fmt.Errorf("create upload file failed: %w", err)
	}
	written, err := io.Copy(dst, r)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		// Client disconnect mid-upload lands here; do not leave partial files.
		_ = os.Remove(filePath)
		return "", 0, fmt.Errorf("save upload file failed: %w", err)
	}
	return filePath, written, nil
}
