package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"logydesk/internal/model"
	"logydesk/internal/repository"
)

// stubEmbedder maps known texts to fixed vectors so similarity is exact.
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func seedEmbeddedChunk(t *testing.T, db *gorm.DB, userID uint, content string, vec []float32) *model.DocumentChunk {
	t.Helper()
	doc := &model.Document{UserID: userID, FileName: "f.txt", FilePath: "x", ProcessingStatus: model.StatusCompleted}
	require.NoError(t, db.Create(doc).Error)

	chunk := &model.DocumentChunk{
		DocumentID:      doc.ID,
		Content:         content,
		NumTokens:       len(strings.Fields(content)),
		EmbeddingStatus: model.StatusCompleted,
	}
	chunk.SetEmbedding(vec)
	require.NoError(t, db.Create(chunk).Error)
	return chunk
}

func TestRAGSearchRanksBySimilarity(t *testing.T) {
	db := newTestDB(t)
	chunkRepo := repository.NewDocumentChunkRepository(db)

	seedEmbeddedChunk(t, db, 1, "exact match", []float32{1, 0, 0})
	seedEmbeddedChunk(t, db, 1, "close match", []float32{0.9, 0.1, 0})
	seedEmbeddedChunk(t, db, 1, "unrelated", []float32{0, 1, 0})

	embedder := &stubEmbedder{vectors: map[string][]float32{"query": {1, 0, 0}}}
	svc := NewRAGService(chunkRepo, embedder, 5, 0.7, 2000)

	results, err := svc.Search(context.Background(), "query", 1)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact match", results[0].Chunk.Content)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "close match", results[1].Chunk.Content)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestRAGSearchTopK(t *testing.T) {
	db := newTestDB(t)
	chunkRepo := repository.NewDocumentChunkRepository(db)

	for i := 0; i < 8; i++ {
		seedEmbeddedChunk(t, db, 1, "match", []float32{1, 0, 0})
	}

	embedder := &stubEmbedder{vectors: map[string][]float32{"query": {1, 0, 0}}}
	svc := NewRAGService(chunkRepo, embedder, 3, 0.7, 2000)

	results, err := svc.Search(context.Background(), "query", 1)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestRAGSearchScopedToUser(t *testing.T) {
	db := newTestDB(t)
	chunkRepo := repository.NewDocumentChunkRepository(db)

	seedEmbeddedChunk(t, db, 2, "someone else's document", []float32{1, 0, 0})

	embedder := &stubEmbedder{vectors: map[string][]float32{"query": {1, 0, 0}}}
	svc := NewRAGService(chunkRepo, embedder, 5, 0.7, 2000)

	results, err := svc.Search(context.Background(), "query", 1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRAGSearchFallbackOnEmbedError(t *testing.T) {
	db := newTestDB(t)
	chunkRepo := repository.NewDocumentChunkRepository(db)

	seedEmbeddedChunk(t, db, 1, "the payment gateway config", []float32{1, 0, 0})

	embedder := &stubEmbedder{err: errors.New("embedding backend down")}
	svc := NewRAGService(chunkRepo, embedder, 5, 0.7, 2000)

	results, err := svc.Search(context.Background(), "Payment", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, fallbackScore, results[0].Score)
}

func TestRAGSearchNoEmbedderUsesKeywordScan(t *testing.T) {
	db := newTestDB(t)
	chunkRepo := repository.NewDocumentChunkRepository(db)

	seedEmbeddedChunk(t, db, 1, "kubernetes deployment notes", []float32{1, 0, 0})
	seedEmbeddedChunk(t, db, 1, "grocery list", []float32{0, 1, 0})

	svc := NewRAGService(chunkRepo, nil, 5, 0.7, 2000)

	results, err := svc.Search(context.Background(), "KUBERNETES", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Chunk.Content, "kubernetes")
	assert.Equal(t, fallbackScore, results[0].Score)
}

func TestRAGSearchEmptyQuery(t *testing.T) {
	svc := NewRAGService(repository.NewDocumentChunkRepository(newTestDB(t)), nil, 5, 0.7, 2000)

	_, err := svc.Search(context.Background(), "   ", 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBuildContextEmpty(t *testing.T) {
	svc := NewRAGService(nil, nil, 5, 0.7, 2000)
	assert.Equal(t, "", svc.BuildContext(nil))
}

func TestBuildContextFormat(t *testing.T) {
	svc := NewRAGService(nil, nil, 5, 0.7, 2000)

	out := svc.BuildContext([]ScoredChunk{
		{Chunk: model.DocumentChunk{Content: "first excerpt"}, Score: 0.91},
		{Chunk: model.DocumentChunk{Content: "second excerpt"}, Score: 0.75},
	})
	assert.True(t, strings.HasPrefix(out, "The following are relevant document excerpts:"))
	assert.Contains(t, out, "[relevance: 0.91]")
	assert.Contains(t, out, "[relevance: 0.75]")
	assert.Contains(t, out, "first excerpt")
	assert.Contains(t, out, "\n---\n")
}

func TestBuildContextBudget(t *testing.T) {
	svc := NewRAGService(nil, nil, 5, 0.7, 200)

	big := strings.Repeat("x", 150)
	out := svc.BuildContext([]ScoredChunk{
		{Chunk: model.DocumentChunk{Content: big}, Score: 0.9},
		{Chunk: model.DocumentChunk{Content: big}, Score: 0.8},
	})
	// Only the first part fits the 200-char budget.
	assert.Equal(t, 1, strings.Count(out, big))
}

func TestBuildContextBudgetCountsRunes(t *testing.T) {
	svc := NewRAGService(nil, nil, 5, 0.7, 2000)

	// 1000 runes but ~3000 bytes; a byte-counted budget would reject it.
	korean := strings.Repeat("한", 1000)
	out := svc.BuildContext([]ScoredChunk{
		{Chunk: model.DocumentChunk{Content: korean}, Score: 0.9},
	})
	require.NotEmpty(t, out)
	assert.Contains(t, out, korean)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-6)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Equal(t, 0.0, cosineSimilarity(nil, []float32{1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 2}, []float32{1}))
}
