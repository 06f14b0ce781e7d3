package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"smm-post-generator/internal/infra/metrics"
)

// Client выполняет загрузку объектов в долговременное хранилище по HTTP.
// Хранилище отдаёт публичный URL вида <publicBaseURL>/<key>.
type Client struct {
	http          *http.Client
	baseURL       string
	publicBaseURL string
	accessToken   string
}

// NewClient создаёт клиента объектного хранилища.
func NewClient(baseURL, publicBaseURL, accessToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:          &http.Client{Timeout: timeout},
		baseURL:       strings.TrimRight(baseURL, "/"),
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		accessToken:   accessToken,
	}
}

// Upload кладёт байты по ключу и возвращает публичный URL объекта.
func (c *Client) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("storage: base url is empty")
	}
	if key == "" {
		return "", fmt.Errorf("storage: key is empty")
	}
	endpoint := c.baseURL + "/objects/" + escapeKey(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("storage: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("storage", "upload", "objects", start, err)
	if err != nil {
		return "", fmt.Errorf("storage: do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("storage: upload failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return c.publicBaseURL + "/" + escapeKey(key), nil
}

// IsInternalURL проверяет, указывает ли ссылка в наше хранилище.
func (c *Client) IsInternalURL(rawURL string) bool {
	if c.publicBaseURL == "" {
		return false
	}
	return strings.HasPrefix(rawURL, c.publicBaseURL+"/")
}

// Ключи содержат слэши разделов, их экранировать нельзя.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
