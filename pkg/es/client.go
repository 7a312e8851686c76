// Package es 提供了与 Elasticsearch 向量库交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"zhiwen-go/internal/config"
	"zhiwen-go/internal/errs"
	"zhiwen-go/internal/model"
	"zhiwen-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Client 封装了分块向量的索引与 knn 检索。
type Client struct {
	es        *elasticsearch.Client
	indexName string
}

// SearchHit 是一次向量检索的单条命中。
type SearchHit struct {
	Chunk model.EsChunk
	Score float64
}

// NewClient 初始化 Elasticsearch 客户端，并确保向量索引存在。
// dims 为向量维度，必须与 Embedding 服务的输出一致。
func NewClient(esCfg config.ElasticsearchConfig, dims int) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	c := &Client{es: client, indexName: esCfg.IndexName}
	if err := c.createIndexIfNotExists(dims); err != nil {
		return nil, err
	}
	return c, nil
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它。
func (c *Client) createIndexIfNotExists(dims int) error {
	res, err := c.es.Indices.Exists([]string{c.indexName})
	if err != nil {
		return err
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", c.indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"vector_id": { "type": "keyword" },
				"document_id": { "type": "keyword" },
				"chunk_index": { "type": "integer" },
				"content": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"start_line": { "type": "integer" },
				"end_line": { "type": "integer" },
				"model_version": { "type": "keyword" },
				"degraded": { "type": "boolean" }
			}
		}
	}`, dims)

	res, err = c.es.Indices.Create(
		c.indexName,
		c.es.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return err
	}
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", c.indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功, 向量维度: %d", c.indexName, dims)
	return nil
}

// IndexChunk 将单个分块向量索引到 Elasticsearch。
func (c *Client) IndexChunk(ctx context.Context, chunk model.EsChunk) error {
	docBytes, err := json.Marshal(chunk)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      c.indexName,
		DocumentID: chunk.VectorID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("索引分块到 Elasticsearch 出错: %s", res.String())
	}
	return nil
}

// Search 按向量相似度检索 topK 个最近邻，documentID 非空时限定在该文档内。
func (c *Client) Search(ctx context.Context, vector []float32, topK int, documentID string) ([]SearchHit, error) {
	knn := map[string]interface{}{
		"field":          "vector",
		"query_vector":   vector,
		"k":              topK,
		"num_candidates": topK * 10,
	}
	if documentID != "" {
		knn["filter"] = map[string]interface{}{
			"term": map[string]interface{}{"document_id": documentID},
		}
	}
	esQuery := map[string]interface{}{
		"knn":  knn,
		"size": topK,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, &errs.VectorSearchError{Err: err}
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.indexName),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, &errs.VectorSearchError{Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, &errs.VectorSearchError{Err: fmt.Errorf("elasticsearch 返回错误: %s", res.String())}
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.EsChunk `json:"_source"`
				Score  float64       `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, &errs.VectorSearchError{Err: err}
	}

	hits := make([]SearchHit, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		hits = append(hits, SearchHit{Chunk: h.Source, Score: h.Score})
	}
	return hits, nil
}

// DeleteByDocumentID 删除某文档的全部分块向量（文档删除时的级联清理）。
func (c *Client) DeleteByDocumentID(ctx context.Context, documentID string) error {
	query := fmt.Sprintf(`{"query": {"term": {"document_id": %q}}}`, documentID)
	res, err := c.es.DeleteByQuery(
		[]string{c.indexName},
		strings.NewReader(query),
		c.es.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("删除文档向量出错: %s", res.String())
	}
	return nil
}
