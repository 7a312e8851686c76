// Package embedding provides a client for interacting with embedding models.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"zhiwen-go/internal/config"
	"zhiwen-go/internal/errs"
	"zhiwen-go/pkg/log"
	"zhiwen-go/pkg/retry"
)

// Client defines the interface for an embedding client.
type Client interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type openAICompatibleClient struct {
	cfg     config.EmbeddingConfig
	client  *http.Client
	policy  retry.Policy
	timeout time.Duration
}

// NewClient creates a new embedding client based on the config.
func NewClient(cfg config.EmbeddingConfig) Client {
	// 在重试策略的基础上额外保留一次收缩输入后的尝试
	policy := retry.Default(cfg.MaxRetries + 1)
	return &openAICompatibleClient{
		cfg:     cfg,
		client:  &http.Client{},
		policy:  policy,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// CreateEmbedding 调用 OpenAI 兼容接口获取文本向量。
// 输入先按上限截断；超时或临时失败按指数退避重试；
// 进入最后一次尝试前把输入再收缩一半，争取最后一次成功机会。
// 重试耗尽后以 errs.EmbeddingError 上报调用方。
func (c *openAICompatibleClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	input := truncateRunes(text, c.cfg.MaxInputChars)

	policy := c.policy
	policy.OnFinalAttempt = func() {
		shrunk := truncateRunes(input, len([]rune(input))/2)
		if shrunk != "" {
			log.Warnf("[EmbeddingClient] 最后一次尝试前收缩输入: %d -> %d 字符",
				len([]rune(input)), len([]rune(shrunk)))
			input = shrunk
		}
	}

	var vector []float32
	attempts := 0
	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		v, callErr := c.callAPI(callCtx, input)
		if callErr != nil {
			log.Warnf("[EmbeddingClient] 第 %d 次调用 Embedding API 失败: %v", attempt, callErr)
			return callErr
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, &errs.EmbeddingError{Attempts: attempts, Err: err}
	}
	return vector, nil
}

// callAPI 发起单次 Embedding 请求。
func (c *openAICompatibleClient) callAPI(ctx context.Context, text string) ([]float32, error) {
	reqBody := embeddingRequest{
		Model:      c.cfg.Model,
		Input:      []string{text},
		Dimensions: c.cfg.Dimensions,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/embeddings", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding api returned non-200 status: %s", resp.Status)
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	if len(embeddingResp.Data) == 0 || len(embeddingResp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("received empty embedding from api")
	}
	return embeddingResp.Data[0].Embedding, nil
}

// truncateRunes 按字符数截断文本，maxRunes <= 0 时不截断。
func truncateRunes(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes])
}

// RandomUnitVector 生成指定维度的随机单位向量。
// 仅供摄取协调器在降级模式下使用，对应分块会被标记为 degraded。
func RandomUnitVector(dim int) []float32 {
	v := make([]float32, dim)
	var norm float64
	for i := range v {
		v[i] = rand.Float32()*2 - 1
		norm += float64(v[i]) * float64(v[i])
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		v[0] = 1
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
