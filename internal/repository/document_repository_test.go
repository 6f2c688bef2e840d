package repository

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"logydesk/internal/model"
)

func newRepoTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Document{}, &model.DocumentChunk{}))
	return db
}

func TestDocumentStatusTransitions(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewDocumentRepository(db)

	doc := &model.Document{UserID: 1, FileName: "a.txt", FilePath: "p", ProcessingStatus: model.StatusPending}
	require.NoError(t, repo.Create(doc))

	require.NoError(t, repo.SetStatus(doc.ID, model.StatusProcessing, ""))
	got, err := repo.GetByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, got.ProcessingStatus)

	require.NoError(t, repo.SetStatus(doc.ID, model.StatusFailed, "boom"))
	got, err = repo.GetByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.ProcessingStatus)
	assert.Equal(t, "boom", got.ErrorMessage)
}

func TestDocumentOwnershipScoping(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewDocumentRepository(db)

	doc := &model.Document{UserID: 1, FileName: "a.txt", FilePath: "p"}
	require.NoError(t, repo.Create(doc))

	got, err := repo.GetByIDAndUserID(doc.ID, 2)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.GetByIDAndUserID(doc.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestDocumentNotFoundIsNilNil(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewDocumentRepository(db)

	got, err := repo.GetByID(12345)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteChunksWithDocument(t *testing.T) {
	db := newRepoTestDB(t)
	docRepo := NewDocumentRepository(db)
	chunkRepo := NewDocumentChunkRepository(db)

	doc := &model.Document{UserID: 1, FileName: "a.txt", FilePath: "p"}
	require.NoError(t, docRepo.Create(doc))
	for i := 0; i < 3; i++ {
		require.NoError(t, chunkRepo.Create(&model.DocumentChunk{DocumentID: doc.ID, Content: "c"}))
	}

	require.NoError(t, chunkRepo.DeleteByDocumentID(doc.ID))
	require.NoError(t, docRepo.DeleteByIDAndUserID(doc.ID, 1))

	n, err := chunkRepo.CountByDocumentID(doc.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := docRepo.GetByID(doc.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSearchContentCaseInsensitive(t *testing.T) {
	db := newRepoTestDB(t)
	docRepo := NewDocumentRepository(db)
	chunkRepo := NewDocumentChunkRepository(db)

	doc := &model.Document{UserID: 1, FileName: "a.txt", FilePath: "p"}
	require.NoError(t, docRepo.Create(doc))
	require.NoError(t, chunkRepo.Create(&model.DocumentChunk{DocumentID: doc.ID, Content: "The Billing Module handles invoices"}))
	require.NoError(t, chunkRepo.Create(&model.DocumentChunk{DocumentID: doc.ID, Content: "unrelated text"}))

	hits, err := chunkRepo.SearchContentByUserID(1, "billing MODULE", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Content, "Billing")
}

func TestListEmbeddedFiltersIncomplete(t *testing.T) {
	db := newRepoTestDB(t)
	docRepo := NewDocumentRepository(db)
	chunkRepo := NewDocumentChunkRepository(db)

	doc := &model.Document{UserID: 1, FileName: "a.txt", FilePath: "p"}
	require.NoError(t, docRepo.Create(doc))

	embedded := &model.DocumentChunk{DocumentID: doc.ID, Content: "done", EmbeddingStatus: model.StatusCompleted}
	embedded.SetEmbedding([]float32{1, 0})
	require.NoError(t, chunkRepo.Create(embedded))
	require.NoError(t, chunkRepo.Create(&model.DocumentChunk{DocumentID: doc.ID, Content: "pending", EmbeddingStatus: model.StatusPending}))

	chunks, err := chunkRepo.ListEmbeddedByUserID(1)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "done", chunks[0].Content)
}
