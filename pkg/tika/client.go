// Package tika 提供了一个与 Apache Tika 服务器交互的文本提取客户端。
package tika

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"zhiwen-go/internal/config"
	"zhiwen-go/internal/errs"
)

// Client 是 Tika 服务器的客户端。
type Client struct {
	serverURL string
	client    *http.Client
}

// NewClient 创建一个新的 Tika 客户端实例。
func NewClient(cfg config.TikaConfig) *Client {
	return &Client{
		serverURL: cfg.ServerURL,
		client:    &http.Client{},
	}
}

// Meta 是提取阶段产出的文档元信息。
type Meta struct {
	ContentType string
	PageCount   int
}

// Extract 根据文件名推断 MIME 类型，调用 Tika 提取纯文本与文档元信息。
func (c *Client) Extract(data []byte, fileName string) (string, Meta, error) {
	contentType := detectMimeType(fileName)

	text, err := c.extractText(data, contentType)
	if err != nil {
		return "", Meta{}, &errs.ExtractionError{FileName: fileName, Err: err}
	}

	// 元信息提取失败不阻断流程，正文已经拿到
	meta, metaErr := c.extractMeta(data, contentType)
	if metaErr != nil {
		meta = Meta{ContentType: contentType}
	}
	return text, meta, nil
}

func (c *Client) extractText(data []byte, contentType string) (string, error) {
	req, err := http.NewRequest("PUT", c.serverURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("调用 Tika 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Tika 返回错误 [%d]: %s", resp.StatusCode, string(body))
	}

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return "", fmt.Errorf("读取 Tika 响应失败: %w", err)
	}
	return buf.String(), nil
}

func (c *Client) extractMeta(data []byte, contentType string) (Meta, error) {
	req, err := http.NewRequest("PUT", c.serverURL+"/meta", bytes.NewReader(data))
	if err != nil {
		return Meta{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return Meta{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Meta{}, fmt.Errorf("Tika /meta 返回状态码 %d", resp.StatusCode)
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Meta{}, err
	}

	meta := Meta{ContentType: contentType}
	if ct, ok := raw["Content-Type"].(string); ok && ct != "" {
		meta.ContentType = ct
	}
	// PDF/Office 文档的页数键
	for _, key := range []string{"xmpTPg:NPages", "meta:page-count", "Page-Count"} {
		if v, ok := raw[key]; ok {
			switch n := v.(type) {
			case string:
				if pages, err := strconv.Atoi(n); err == nil {
					meta.PageCount = pages
				}
			case float64:
				meta.PageCount = int(n)
			}
			break
		}
	}
	return meta, nil
}

// detectMimeType 根据文件扩展名判断 Content-Type。
func detectMimeType(fileName string) string {
	ext := filepath.Ext(fileName)
	if ext == "" {
		return "application/octet-stream"
	}
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}
