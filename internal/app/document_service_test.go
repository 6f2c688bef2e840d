package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"logydesk/internal/model"
	"logydesk/internal/repository"
	"logydesk/internal/taskstatus"
	"logydesk/internal/worker"
)

type fakeTaskPublisher struct {
	tasks []worker.DocumentTask
	err   error
}

func (f *fakeTaskPublisher) Publish(_ context.Context, payload any) error {
	if f.err != nil {
		return f.err
	}
	if task, ok := payload.(worker.DocumentTask); ok {
		f.tasks = append(f.tasks, task)
	}
	return nil
}

type fakeStatusStore struct {
	pending  []string
	statuses map[string]taskstatus.Status
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{statuses: map[string]taskstatus.Status{}}
}

func (f *fakeStatusStore) Pending(_ context.Context, taskID string) error {
	f.pending = append(f.pending, taskID)
	return nil
}

func (f *fakeStatusStore) Get(_ context.Context, taskID string) (taskstatus.Status, error) {
	if s, ok := f.statuses[taskID]; ok {
		return s, nil
	}
	return taskstatus.Status{State: taskstatus.StatePending}, nil
}

type documentFixture struct {
	svc       *DocumentService
	db        *gorm.DB
	docs      *repository.DocumentRepository
	chunks    *repository.DocumentChunkRepository
	publisher *fakeTaskPublisher
	statuses  *fakeStatusStore
}

func newDocumentFixture(t *testing.T) *documentFixture {
	t.Helper()
	db := newTestDB(t)
	docRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewDocumentChunkRepository(db)
	publisher := &fakeTaskPublisher{}
	statuses := newFakeStatusStore()

	svc := NewDocumentService(docRepo, chunkRepo, publisher, statuses, t.TempDir(), 1)
	return &documentFixture{
		svc:       svc,
		db:        db,
		docs:      docRepo,
		chunks:    chunkRepo,
		publisher: publisher,
		statuses:  statuses,
	}
}

func TestUploadDispatchesTask(t *testing.T) {
	f := newDocumentFixture(t)

	content := []byte("hello document")
	result, err := f.svc.Upload(context.Background(), 1, "notes.txt", "text/plain", bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	require.NotNil(t, result.Document)
	assert.NotEmpty(t, result.TaskID)
	assert.Equal(t, model.StatusPending, result.Document.ProcessingStatus)
	assert.Equal(t, int64(len(content)), result.Document.FileSize)

	// The stored copy keeps the original extension for the worker's dispatch.
	saved, err := os.ReadFile(result.Document.FilePath)
	require.NoError(t, err)
	assert.Equal(t, content, saved)

	require.Len(t, f.publisher.tasks, 1)
	task := f.publisher.tasks[0]
	assert.Equal(t, result.TaskID, task.TaskID)
	assert.Equal(t, result.Document.ID, task.DocumentID)
	assert.Equal(t, result.Document.FilePath, task.FilePath)

	assert.Equal(t, []string{result.TaskID}, f.statuses.pending)
}

func TestUploadSameContentTwiceMakesTwoDocuments(t *testing.T) {
	f := newDocumentFixture(t)

	first, err := f.svc.Upload(context.Background(), 1, "a.txt", "text/plain", bytes.NewReader([]byte("same")), 4)
	require.NoError(t, err)
	second, err := f.svc.Upload(context.Background(), 1, "a.txt", "text/plain", bytes.NewReader([]byte("same")), 4)
	require.NoError(t, err)

	assert.NotEqual(t, first.Document.ID, second.Document.ID)
	assert.NotEqual(t, first.TaskID, second.TaskID)
}

func TestUploadTooLarge(t *testing.T) {
	f := newDocumentFixture(t)

	_, err := f.svc.Upload(context.Background(), 1, "big.txt", "text/plain", bytes.NewReader([]byte("x")), 10*1024*1024)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestUploadEnqueueFailure(t *testing.T) {
	f := newDocumentFixture(t)
	f.publisher.err = errors.New("broker down")

	_, err := f.svc.Upload(context.Background(), 1, "a.txt", "text/plain", bytes.NewReader([]byte("data")), 4)
	assert.ErrorIs(t, err, ErrTaskEnqueue)

	// The document row records the failure instead of staying PENDING forever.
	var docs []model.Document
	require.NoError(t, f.db.Find(&docs).Error)
	require.Len(t, docs, 1)
	assert.Equal(t, model.StatusFailed, docs[0].ProcessingStatus)
}

func TestGetDocumentWithChunks(t *testing.T) {
	f := newDocumentFixture(t)

	doc := &model.Document{UserID: 1, FileName: "a.txt", FilePath: "p", ProcessingStatus: model.StatusCompleted}
	require.NoError(t, f.docs.Create(doc))
	require.NoError(t, f.chunks.Create(&model.DocumentChunk{DocumentID: doc.ID, Content: "c1", EmbeddingStatus: model.StatusCompleted}))
	require.NoError(t, f.chunks.Create(&model.DocumentChunk{DocumentID: doc.ID, Content: "c2", EmbeddingStatus: model.StatusPending}))

	detail, err := f.svc.Get(1, doc.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Chunks, 2)
}

func TestGetDocumentOtherUser(t *testing.T) {
	f := newDocumentFixture(t)

	doc := &model.Document{UserID: 2, FileName: "a.txt", FilePath: "p"}
	require.NoError(t, f.docs.Create(doc))

	_, err := f.svc.Get(1, doc.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestDeleteDocumentRemovesChunksAndFile(t *testing.T) {
	f := newDocumentFixture(t)

	result, err := f.svc.Upload(context.Background(), 1, "a.txt", "text/plain", bytes.NewReader([]byte("data")), 4)
	require.NoError(t, err)
	require.NoError(t, f.chunks.Create(&model.DocumentChunk{DocumentID: result.Document.ID, Content: "c"}))

	require.NoError(t, f.svc.Delete(1, result.Document.ID))

	n, err := f.chunks.CountByDocumentID(result.Document.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, statErr := os.Stat(result.Document.FilePath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestTaskStatusUnknownIsPending(t *testing.T) {
	f := newDocumentFixture(t)

	status, err := f.svc.TaskStatus(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Equal(t, taskstatus.StatePending, status.State)
}
