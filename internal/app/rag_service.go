package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"logydesk/internal/ai"
	"logydesk/internal/model"
	"logydesk/internal/repository"
)

const (
	defaultTopK            = 5
	defaultScoreThreshold  = 0.7
	defaultMaxContextChars = 2000

	// Keyword-fallback hits carry a fixed placeholder score: the scan has no
	// notion of semantic relevance.
	fallbackScore = 0.5
)

// ScoredChunk pairs a chunk with its relevance to the query.
type ScoredChunk struct {
	Chunk model.DocumentChunk `json:"chunk"`
	Score float64             `json:"score"`
}

// RAGService ranks a user's embedded chunks against a query and assembles the
// prompt context block. With no embedder configured it degrades to a
// case-insensitive substring scan.
type RAGService struct {
	chunkRepo       *repository.DocumentChunkRepository
	embedder        ai.Embedder // nil = keyword fallback only
	topK            int
	scoreThreshold  float64
	maxContextChars int
}

func NewRAGService(
	chunkRepo *repository.DocumentChunkRepository,
	embedder ai.Embedder,
	topK int,
	scoreThreshold float64,
	maxContextChars int,
) *RAGService {
	if topK <= 0 {
		topK = defaultTopK
	}
	if scoreThreshold <= 0 {
		scoreThreshold = defaultScoreThreshold
	}
	if maxContextChars <= 0 {
		maxContextChars = defaultMaxContextChars
	}
	return &RAGService{
		chunkRepo:       chunkRepo,
		embedder:        embedder,
		topK:            topK,
		scoreThreshold:  scoreThreshold,
		maxContextChars: maxContextChars,
	}
}

// Search returns the user's chunks most relevant to the query, best first.
// An empty result is not an error: chat proceeds on conversation history
// alone.
func (s *RAGService) Search(ctx context.Context, query string, userID uint) ([]ScoredChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" || userID == 0 {
		return nil, ErrInvalidInput
	}

	if s.embedder == nil {
		return s.fallbackSearch(userID, query)
	}

	queryVec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		// Degrade rather than fail the chat request.
		return s.fallbackSearch(userID, query)
	}

	chunks, err := s.chunkRepo.ListEmbeddedByUserID(userID)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredChunk, 0, len(chunks))
	for i := range chunks {
		sim := cosineSimilarity(queryVec, chunks[i].EmbeddingVector())
		if sim >= s.scoreThreshold {
			scored = append(scored, ScoredChunk{Chunk: chunks[i], Score: sim})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > s.topK {
		scored = scored[:s.topK]
	}
	return scored, nil
}

func (s *RAGService) fallbackSearch(userID uint, query string) ([]ScoredChunk, error) {
	chunks, err := s.chunkRepo.SearchContentByUserID(userID, query, s.topK)
	if err != nil {
		return nil, err
	}
	scored := make([]ScoredChunk, len(chunks))
	for i := range chunks {
		scored[i] = ScoredChunk{Chunk: chunks[i], Score: fallbackScore}
	}
	return scored, nil
}

// BuildContext concatenates score-prefixed chunk texts until the character
// budget is reached. The budget counts runes, not bytes, so multibyte
// documents fill it the same as ASCII. Returns "" when nothing qualifies.
func (s *RAGService) BuildContext(chunks []ScoredChunk) string {
	if len(chunks) == 0 {
		return ""
	}

	var parts []string
	currentLen := 0
	for _, sc := range chunks {
		part := fmt.Sprintf("[relevance: %.2f]\n%s\n", sc.Score, sc.Chunk.Content)
		partLen := utf8.RuneCountInString(part)
		if currentLen+partLen > s.maxContextChars {
			break
		}
		parts = append(parts, part)
		currentLen += partLen
	}
	if len(parts) == 0 {
		return ""
	}
	return "The following are relevant document excerpts:\n\n" + strings.Join(parts, "\n---\n")
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
