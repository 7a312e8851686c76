// Package service 实现了业务逻辑层。
package service

import (
	"context"
	"fmt"
	"strings"

	"zhiwen-go/internal/config"
	"zhiwen-go/internal/model"
	"zhiwen-go/internal/pipeline"
	"zhiwen-go/internal/repository"
	"zhiwen-go/pkg/embedding"
	"zhiwen-go/pkg/es"
	"zhiwen-go/pkg/log"
)

// VectorSearcher 抽象向量检索端，生产实现为 ES 客户端。
// documentID 非空时检索范围限定在该文档内。
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, topK int, documentID string) ([]es.SearchHit, error)
}

// SearchService 定义了语义检索的业务接口。
type SearchService interface {
	// Retrieve 对查询做语义检索，返回至多 topK 条非噪声分块。
	// topK <= 0 时使用配置默认值；documentID 非空时限定在单文档内检索。
	Retrieve(ctx context.Context, query string, documentID string, topK int) ([]model.RetrievedChunk, error)
}

type searchService struct {
	embedder  embedding.Client
	searcher  VectorSearcher
	docRepo   repository.DocumentRepository
	chunkRepo repository.ChunkRepository
	tocFilter *pipeline.TOCFilter
	cfg       config.RetrievalConfig
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(
	embedder embedding.Client,
	searcher VectorSearcher,
	docRepo repository.DocumentRepository,
	chunkRepo repository.ChunkRepository,
	cfg config.RetrievalConfig,
) SearchService {
	return &searchService{
		embedder:  embedder,
		searcher:  searcher,
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		tocFilter: pipeline.NewTOCFilter(),
		cfg:       cfg,
	}
}

// Retrieve 先向量化查询，再做 knn 检索。
// 为了让目录噪声过滤后仍能凑满 topK，向底层多要一倍候选，过滤后再截断。
func (s *searchService) Retrieve(ctx context.Context, query string, documentID string, topK int) ([]model.RetrievedChunk, error) {
	if query == "" {
		return nil, fmt.Errorf("查询内容不能为空")
	}
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	vector, err := s.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询向量化失败: %w", err)
	}

	hits, err := s.searcher.Search(ctx, vector, topK*2, documentID)
	if err != nil {
		return nil, err
	}

	docs := map[string]*model.Document{}
	results := make([]model.RetrievedChunk, 0, topK)
	for _, hit := range hits {
		if len(results) >= topK {
			break
		}
		score := s.tocFilter.Score(hit.Chunk.Content)
		if score.IsNoise(0.5) {
			log.Infof("过滤目录噪声分块: doc=%s idx=%d rules=%v",
				hit.Chunk.DocumentID, hit.Chunk.ChunkIndex, score.MatchedRules)
			continue
		}
		results = append(results, s.toRetrievedChunk(hit, docs))
	}
	return results, nil
}

// toRetrievedChunk 把索引命中组装为检索结果，补齐文档标题与归一化前原文。
func (s *searchService) toRetrievedChunk(hit es.SearchHit, docs map[string]*model.Document) model.RetrievedChunk {
	rc := model.RetrievedChunk{
		DocumentID:   hit.Chunk.DocumentID,
		ChunkIndex:   hit.Chunk.ChunkIndex,
		Content:      hit.Chunk.Content,
		OriginalText: hit.Chunk.Content,
		StartLine:    hit.Chunk.StartLine,
		EndLine:      hit.Chunk.EndLine,
		Score:        hit.Score,
		Degraded:     hit.Chunk.Degraded,
	}

	doc, ok := docs[hit.Chunk.DocumentID]
	if !ok {
		doc, _ = s.docRepo.FindByID(hit.Chunk.DocumentID)
		docs[hit.Chunk.DocumentID] = doc
	}
	if doc != nil {
		rc.DocumentTitle = doc.Title
	}

	// 引用展示优先使用分块保存的归一化前原文；
	// 按行号重切正文只作为交叉校验，不一致时以分块存档为准。
	if chunk, err := s.chunkRepo.FindByDocumentAndIndex(hit.Chunk.DocumentID, hit.Chunk.ChunkIndex); err == nil {
		if chunk.OriginalText != "" {
			rc.OriginalText = chunk.OriginalText
		}
		if doc != nil && chunk.StartLine != nil && chunk.EndLine != nil {
			if sliced := sliceContentLines(doc.Content, *chunk.StartLine, *chunk.EndLine); sliced != "" && sliced != rc.OriginalText {
				log.Infof("分块 %s/%d 行号重切结果与原文存档不一致，以存档为准",
					hit.Chunk.DocumentID, hit.Chunk.ChunkIndex)
			}
		}
	}
	return rc
}

// sliceContentLines 按 1 起始行号区间切取正文。
func sliceContentLines(content string, startLine, endLine int) string {
	if content == "" || startLine < 1 || endLine < startLine {
		return ""
	}
	lines := strings.Split(content, "\n")
	if startLine > len(lines) {
		return ""
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	return strings.Join(lines[startLine-1:endLine], "\n")
}
