package pipeline

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"zhiwen-go/internal/config"
	"zhiwen-go/internal/errs"
	"zhiwen-go/internal/model"
	"zhiwen-go/internal/repository"
	"zhiwen-go/pkg/embedding"
	"zhiwen-go/pkg/log"
	"zhiwen-go/pkg/storage"
	"zhiwen-go/pkg/tasks"
	"zhiwen-go/pkg/tika"
)

// Extractor 抽象文本提取器，生产实现为 Tika 客户端。
type Extractor interface {
	Extract(data []byte, fileName string) (string, tika.Meta, error)
}

// VectorIndexer 抽象向量索引写入端，生产实现为 ES 客户端。
type VectorIndexer interface {
	IndexChunk(ctx context.Context, chunk model.EsChunk) error
}

// 向量化按小批次推进：批内并发、批间停顿，避免打满嵌入服务的限流额度。
const (
	embeddingBatchSize  = 3
	embeddingBatchDelay = 200 * time.Millisecond
)

// Processor 是文档摄取的协调器，驱动状态机走完
// uploaded -> processing -> chunking -> embedding -> complete 的全程。
// 取数、提取、分块等文档级阶段失败会把文档置为 error 并停止，不影响其他文档；
// 向量化阶段的单块失败相互隔离，只计数，不中断文档。
type Processor struct {
	store     storage.Store
	extractor Extractor
	embedder  embedding.Client
	indexer   VectorIndexer
	docRepo   repository.DocumentRepository
	chunkRepo repository.ChunkRepository
	chunker   *Chunker
	tocFilter *TOCFilter

	embeddingCfg config.EmbeddingConfig
}

// NewProcessor 创建摄取协调器。
func NewProcessor(
	store storage.Store,
	extractor Extractor,
	embedder embedding.Client,
	indexer VectorIndexer,
	docRepo repository.DocumentRepository,
	chunkRepo repository.ChunkRepository,
	chunker *Chunker,
	tocFilter *TOCFilter,
	embeddingCfg config.EmbeddingConfig,
) *Processor {
	return &Processor{
		store:        store,
		extractor:    extractor,
		embedder:     embedder,
		indexer:      indexer,
		docRepo:      docRepo,
		chunkRepo:    chunkRepo,
		chunker:      chunker,
		tocFilter:    tocFilter,
		embeddingCfg: embeddingCfg,
	}
}

// Process 执行一次完整的文档摄取。
// 只接受处于 uploaded 状态的文档；complete 和 error 是终态，直接幂等跳过；
// 中间状态说明有摄取在途（或异常中断），同样跳过，等待人工介入或重新上传。
func (p *Processor) Process(ctx context.Context, task tasks.DocumentIngestTask) error {
	doc, err := p.docRepo.FindByID(task.DocumentID)
	if err != nil {
		return fmt.Errorf("查询文档失败: %w", err)
	}

	switch doc.Status {
	case model.StatusComplete:
		log.Infof("文档 %s 已处理完成，跳过重复摄取", doc.ID)
		return nil
	case model.StatusError:
		log.Warnf("文档 %s 处于 error 终态，不会自动重试，需重新上传", doc.ID)
		return nil
	case model.StatusUploaded:
		// 正常入口
	default:
		log.Warnf("文档 %s 当前状态为 %s，不是摄取入口状态，跳过", doc.ID, doc.Status)
		return nil
	}

	if err := p.docRepo.TransitionStatus(doc.ID, model.StatusProcessing); err != nil {
		return err
	}

	// 提取阶段
	original, meta, err := p.extract(ctx, task)
	if err != nil {
		return p.fail(doc.ID, err)
	}
	normalized := Normalize(original)
	if err := p.docRepo.UpdateContent(doc.ID, normalized); err != nil {
		return p.fail(doc.ID, err)
	}
	metaPatch := model.DocumentMeta{DetectedType: model.String(meta.ContentType)}
	if meta.PageCount > 0 {
		metaPatch.PageCount = model.Int(meta.PageCount)
	}
	if err := p.docRepo.MergeMeta(doc.ID, metaPatch); err != nil {
		return p.fail(doc.ID, err)
	}

	// 分块阶段
	if err := p.docRepo.TransitionStatus(doc.ID, model.StatusChunking); err != nil {
		return p.fail(doc.ID, err)
	}
	textChunks := p.chunker.Split(normalized, original)
	if len(textChunks) == 0 {
		return p.fail(doc.ID, fmt.Errorf("文档 %s 提取结果为空，无法分块", doc.ID))
	}
	noiseCount := 0
	for _, tc := range textChunks {
		if p.tocFilter.IsNoise(tc.Text) {
			noiseCount++
		}
	}
	if noiseCount > 0 {
		log.Infof("文档 %s 共 %d 个分块，其中 %d 个疑似目录噪声（仍会入库，检索时过滤）",
			doc.ID, len(textChunks), noiseCount)
	}

	// 重新摄取前清掉旧分块，保证幂等
	if err := p.chunkRepo.DeleteByDocumentID(doc.ID); err != nil {
		return p.fail(doc.ID, err)
	}
	chunks := make([]*model.Chunk, len(textChunks))
	for i, tc := range textChunks {
		chunks[i] = &model.Chunk{
			DocumentID:   doc.ID,
			ChunkIndex:   i,
			Content:      tc.Text,
			OriginalText: tc.OriginalText,
			StartLine:    tc.StartLine,
			EndLine:      tc.EndLine,
			Status:       model.ChunkStatusPending,
			ModelVersion: p.embeddingCfg.Model,
		}
	}
	if err := p.chunkRepo.BatchCreate(chunks); err != nil {
		return p.fail(doc.ID, err)
	}
	total := len(chunks)
	if err := p.docRepo.MergeMeta(doc.ID, model.DocumentMeta{
		TotalChunks: model.Int(total),
		Progress:    model.Int(0),
	}); err != nil {
		return p.fail(doc.ID, err)
	}

	// 向量化阶段
	if err := p.docRepo.TransitionStatus(doc.ID, model.StatusEmbedding); err != nil {
		return p.fail(doc.ID, err)
	}
	successful, degraded, failed, err := p.embedChunks(ctx, doc.ID, chunks)
	if err != nil {
		return p.fail(doc.ID, err)
	}
	if failed > 0 {
		log.Warnf("文档 %s 有 %d 个分块向量化失败，已跳过", doc.ID, failed)
	}

	now := time.Now()
	if err := p.docRepo.MergeMeta(doc.ID, model.DocumentMeta{
		Progress:         model.Int(100),
		SuccessfulChunks: model.Int(successful),
		DegradedChunks:   model.Int(degraded),
		CompletedAt:      model.Time(now),
	}); err != nil {
		return p.fail(doc.ID, err)
	}
	if err := p.docRepo.TransitionStatus(doc.ID, model.StatusComplete); err != nil {
		return p.fail(doc.ID, err)
	}

	log.Infof("文档 %s 摄取完成: 分块 %d 个，成功 %d 个，降级 %d 个",
		doc.ID, total, successful, degraded)
	return nil
}

// extract 从对象存储取回文件并提取文本。
func (p *Processor) extract(ctx context.Context, task tasks.DocumentIngestTask) (string, tika.Meta, error) {
	data, err := p.store.Get(ctx, task.ObjectName)
	if err != nil {
		return "", tika.Meta{}, &errs.FetchError{Object: task.ObjectName, Err: err}
	}
	text, meta, err := p.extractor.Extract(data, task.FileName)
	if err != nil {
		return "", tika.Meta{}, err
	}
	return text, meta, nil
}

// 单个分块的向量化结果。
type embedOutcome int

const (
	outcomeEmbedded embedOutcome = iota
	outcomeDegraded
	outcomeFailed
)

// embedChunks 按批向量化并写入索引，返回成功、降级与失败的分块数。
// 批内失败相互隔离：单块失败只计数，不中断兄弟分块，也不中断文档；
// 只有上下文取消会中止整个向量化阶段。
func (p *Processor) embedChunks(ctx context.Context, docID string, chunks []*model.Chunk) (successful, degraded, failed int, err error) {
	total := len(chunks)
	processed := 0

	for start := 0; start < total; start += embeddingBatchSize {
		end := start + embeddingBatchSize
		if end > total {
			end = total
		}
		batch := chunks[start:end]

		var wg sync.WaitGroup
		var mu sync.Mutex

		for _, chunk := range batch {
			wg.Add(1)
			go func(c *model.Chunk) {
				defer wg.Done()
				outcome := p.embedOne(ctx, c)
				mu.Lock()
				defer mu.Unlock()
				switch outcome {
				case outcomeEmbedded:
					successful++
				case outcomeDegraded:
					degraded++
				default:
					failed++
				}
			}(chunk)
		}
		wg.Wait()

		processed = end
		progress := int(math.Round(float64(processed) / float64(total) * 100))
		if err := p.docRepo.MergeMeta(docID, model.DocumentMeta{Progress: model.Int(progress)}); err != nil {
			log.Errorf("更新文档 %s 进度失败: %v", docID, err)
		}
		log.Infof("文档 %s 向量化进度: 已处理 %d/%d 个分块", docID, processed, total)

		if processed < total {
			select {
			case <-ctx.Done():
				return successful, degraded, failed, ctx.Err()
			case <-time.After(embeddingBatchDelay):
			}
		}
	}
	return successful, degraded, failed, nil
}

// embedOne 向量化单个分块并写入向量索引，失败只计数不上抛。
func (p *Processor) embedOne(ctx context.Context, chunk *model.Chunk) embedOutcome {
	isDegraded := false
	vector, err := p.embedder.CreateEmbedding(ctx, chunk.Content)
	if err != nil {
		if !p.embeddingCfg.DegradedFallback || !errs.IsEmbeddingError(err) {
			log.Errorf("分块 %s/%d 向量化失败: %v", chunk.DocumentID, chunk.ChunkIndex, err)
			_ = p.chunkRepo.UpdateStatus(chunk.ID, model.ChunkStatusFailed)
			return outcomeFailed
		}
		// 嵌入服务不可用时降级：随机单位向量占位，分块仍可被全文定位但不参与有效相似度
		log.Warnf("分块 %s/%d 向量化失败，使用降级向量: %v", chunk.DocumentID, chunk.ChunkIndex, err)
		vector = embedding.RandomUnitVector(p.embeddingCfg.Dimensions)
		isDegraded = true
	}

	status := model.ChunkStatusEmbedded
	if isDegraded {
		status = model.ChunkStatusDegraded
	}

	esChunk := model.EsChunk{
		VectorID:     fmt.Sprintf("%s_%d", chunk.DocumentID, chunk.ChunkIndex),
		DocumentID:   chunk.DocumentID,
		ChunkIndex:   chunk.ChunkIndex,
		Content:      chunk.Content,
		Vector:       vector,
		ModelVersion: chunk.ModelVersion,
		Degraded:     isDegraded,
	}
	if chunk.StartLine != nil {
		esChunk.StartLine = *chunk.StartLine
	}
	if chunk.EndLine != nil {
		esChunk.EndLine = *chunk.EndLine
	}
	if err := p.indexer.IndexChunk(ctx, esChunk); err != nil {
		log.Errorf("分块 %s/%d 写入向量索引失败: %v", chunk.DocumentID, chunk.ChunkIndex, err)
		_ = p.chunkRepo.UpdateStatus(chunk.ID, model.ChunkStatusFailed)
		return outcomeFailed
	}
	if err := p.chunkRepo.UpdateStatus(chunk.ID, status); err != nil {
		log.Errorf("更新分块 %s/%d 状态失败: %v", chunk.DocumentID, chunk.ChunkIndex, err)
	}
	if isDegraded {
		return outcomeDegraded
	}
	return outcomeEmbedded
}

// fail 把文档置为 error 终态并记录失败原因。
func (p *Processor) fail(docID string, cause error) error {
	log.Errorf("文档 %s 摄取失败: %v", docID, cause)
	now := time.Now()
	if err := p.docRepo.MergeMeta(docID, model.DocumentMeta{
		ErrorMessage: model.String(cause.Error()),
		ErrorAt:      model.Time(now),
	}); err != nil {
		log.Errorf("记录文档 %s 失败元数据失败: %v", docID, err)
	}
	if err := p.docRepo.TransitionStatus(docID, model.StatusError); err != nil {
		log.Errorf("迁移文档 %s 到 error 状态失败: %v", docID, err)
	}
	return cause
}
