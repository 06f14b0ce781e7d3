package imageapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"smm-post-generator/internal/infra/metrics"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client выполняет запросы к API генерации изображений.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// NewClient создаёт клиента Images API.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout + 5*time.Second}
	return &Client{http: httpClient, baseURL: baseURL, apiKey: apiKey}
}

// GenerationRequest описывает тело запроса генерации.
type GenerationRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
	N       int    `json:"n,omitempty"`
}

// GenerationResponse описывает ответ провайдера.
type GenerationResponse struct {
	Data []GeneratedItem `json:"data"`
}

// GeneratedItem содержит ссылку на одно изображение.
type GeneratedItem struct {
	URL string `json:"url"`
}

// Generate вызывает /images/generations и возвращает URL первого изображения.
func (c *Client) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("imageapi: api key is empty")
	}
	if req.N <= 0 {
		req.N = 1
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("imageapi: marshal request: %w", err)
	}
	endpoint := c.baseURL + "/images/generations"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("imageapi: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.ObserveNetworkRequest("imageapi", "generations", req.Model, start, err)
		return "", fmt.Errorf("imageapi: do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest("imageapi", "generations", req.Model, start, err)
		return "", fmt.Errorf("imageapi: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr apiErrorResponse
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			err = fmt.Errorf("imageapi: %s", apiErr.Error.Message)
		} else {
			err = fmt.Errorf("imageapi: unexpected status %d", resp.StatusCode)
		}
		metrics.ObserveNetworkRequest("imageapi", "generations", req.Model, start, err)
		return "", err
	}
	var parsed GenerationResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		metrics.ObserveNetworkRequest("imageapi", "generations", req.Model, start, err)
		return "", fmt.Errorf("imageapi: decode response: %w", err)
	}
	metrics.ObserveNetworkRequest("imageapi", "generations", req.Model, start, nil)
	if len(parsed.Data) == 0 || parsed.Data[0].URL == "" {
		return "", fmt.Errorf("imageapi: пустой ответ провайдера")
	}
	return parsed.Data[0].URL, nil
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
