package service

import (
	"context"
	"errors"
	"testing"

	"zhiwen-go/internal/config"
	"zhiwen-go/internal/model"
	"zhiwen-go/pkg/es"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func proseHit(docID string, idx int, score float64) es.SearchHit {
	return es.SearchHit{
		Chunk: model.EsChunk{
			DocumentID: docID,
			ChunkIndex: idx,
			Content:    "The pipeline splits documents into overlapping chunks before embedding them.",
			StartLine:  3,
			EndLine:    5,
		},
		Score: score,
	}
}

func tocHit(docID string, idx int, score float64) es.SearchHit {
	return es.SearchHit{
		Chunk: model.EsChunk{
			DocumentID: docID,
			ChunkIndex: idx,
			Content:    "Chapter One 1\nChapter Two 15\nChapter Three 42",
		},
		Score: score,
	}
}

func newSearchFixture(hits []es.SearchHit) (*fakeEmbedder, *fakeSearcher, *fakeDocRepo, *fakeChunkRepo, SearchService) {
	embedder := &fakeEmbedder{}
	searcher := &fakeSearcher{hits: hits}
	docRepo := newFakeDocRepo(&model.Document{ID: "doc-1", Title: "测试文档", Status: model.StatusComplete})
	chunkRepo := &fakeChunkRepo{}
	svc := NewSearchService(embedder, searcher, docRepo, chunkRepo, config.RetrievalConfig{TopK: 5})
	return embedder, searcher, docRepo, chunkRepo, svc
}

func TestRetrieveFiltersTOCNoise(t *testing.T) {
	// 目录分块即使向量相似度更高，也不应出现在结果里
	hits := []es.SearchHit{
		tocHit("doc-1", 0, 0.99),
		proseHit("doc-1", 1, 0.87),
	}
	_, _, _, _, svc := newSearchFixture(hits)

	results, err := svc.Retrieve(context.Background(), "分块策略是什么", "", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].ChunkIndex)
	assert.Equal(t, "测试文档", results[0].DocumentTitle)
}

func TestRetrieveOverFetchesAndTruncates(t *testing.T) {
	var hits []es.SearchHit
	for i := 0; i < 6; i++ {
		hits = append(hits, proseHit("doc-1", i, 0.9-float64(i)*0.05))
	}
	_, searcher, _, _, svc := newSearchFixture(hits)

	results, err := svc.Retrieve(context.Background(), "question", "", 3)
	require.NoError(t, err)
	// 底层多取一倍候选，过滤后截断到 topK
	assert.Equal(t, 6, searcher.lastTopK)
	assert.Len(t, results, 3)
}

func TestRetrieveDefaultsTopK(t *testing.T) {
	_, searcher, _, _, svc := newSearchFixture(nil)

	_, err := svc.Retrieve(context.Background(), "question", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 10, searcher.lastTopK) // 配置 TopK=5 的两倍
}

func TestRetrieveScopedToDocument(t *testing.T) {
	_, searcher, _, _, svc := newSearchFixture(nil)

	_, err := svc.Retrieve(context.Background(), "question", "doc-1", 5)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", searcher.lastDocID)
}

func TestRetrievePrefersStoredOriginalText(t *testing.T) {
	hits := []es.SearchHit{proseHit("doc-1", 1, 0.9)}
	_, _, _, chunkRepo, svc := newSearchFixture(hits)
	chunkRepo.chunks = []*model.Chunk{{
		DocumentID:   "doc-1",
		ChunkIndex:   1,
		Content:      "normalized text",
		OriginalText: "original   text with   raw spacing",
	}}

	results, err := svc.Retrieve(context.Background(), "question", "", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "original   text with   raw spacing", results[0].OriginalText)
}

func TestRetrieveEmptyQuery(t *testing.T) {
	_, _, _, _, svc := newSearchFixture(nil)
	_, err := svc.Retrieve(context.Background(), "", "", 5)
	assert.Error(t, err)
}

func TestRetrieveEmbeddingFailure(t *testing.T) {
	embedder, _, _, _, svc := newSearchFixture(nil)
	embedder.err = errors.New("embedding service down")

	_, err := svc.Retrieve(context.Background(), "question", "", 5)
	assert.Error(t, err)
}

func TestRetrieveSearchFailure(t *testing.T) {
	_, searcher, _, _, svc := newSearchFixture(nil)
	searcher.err = errors.New("es down")

	_, err := svc.Retrieve(context.Background(), "question", "", 5)
	assert.Error(t, err)
}
