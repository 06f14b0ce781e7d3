package imagegen

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"smm-post-generator/internal/domain"
	"smm-post-generator/internal/infra/metrics"
)

// maxImageBytes ограничивает размер выгружаемого изображения.
const maxImageBytes = 10 << 20

// HTTPFetcher выгружает байты внешнего изображения.
type HTTPFetcher struct {
	client *http.Client
}

var _ domain.ImageFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher создаёт выгрузчик с таймаутом.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch возвращает байты изображения и заявленный тип контента.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	metrics.ObserveNetworkRequest("imagegen", "fetch", "external", start, err)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetch image: статус %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("изображение больше %d байт", maxImageBytes)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
