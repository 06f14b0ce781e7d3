package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"smm-post-generator/internal/domain"
	"smm-post-generator/internal/infra/metrics"
)

// bodyTextLimit ограничивает размер текста статьи, защищая все последующие
// стадии конвейера от неограниченного входа.
const bodyTextLimit = 8000

const defaultTimeout = 30 * time.Second

// Extractor выгружает внешнюю статью и очищает её до текста с метаданными.
type Extractor struct {
	client  *http.Client
	timeout time.Duration
	log     zerolog.Logger
}

var _ domain.SourceExtractor = (*Extractor)(nil)

// New создаёт экстрактор. Нулевой client заменяется на клиента по умолчанию.
func New(client *http.Client, timeout time.Duration, logger zerolog.Logger) *Extractor {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Extractor{client: client, timeout: timeout, log: logger}
}

// Extract валидирует ссылку, выгружает документ и разбирает его дважды:
// выделение основного текста и сбор метаданных OpenGraph/Twitter-card.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (domain.ExtractedSource, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return domain.ExtractedSource{}, domain.ErrInvalidURL
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return domain.ExtractedSource{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; smm-post-generator/1.0)")

	start := time.Now()
	resp, err := e.client.Do(req)
	metrics.ObserveNetworkRequest("extractor", "fetch", parsed.Host, start, err)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return domain.ExtractedSource{}, domain.ErrFetchTimeout
		}
		return domain.ExtractedSource{}, fmt.Errorf("%w: %s", domain.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.ExtractedSource{}, fmt.Errorf("%w: статус %d", domain.ErrFetchFailed, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return domain.ExtractedSource{}, fmt.Errorf("%w: %s", domain.ErrEmptyDocument, err)
	}

	source := domain.ExtractedSource{
		Title:        extractTitle(doc),
		BodyText:     clipRunes(extractBody(doc), bodyTextLimit),
		Description:  extractDescription(doc),
		LeadImageURL: extractLeadImage(doc, parsed),
		Author:       extractAuthor(doc),
		PublishedAt:  extractPublishedAt(doc),
	}
	if source.BodyText == "" && source.Description == "" {
		return domain.ExtractedSource{}, domain.ErrEmptyDocument
	}
	e.log.Debug().Str("url", parsed.String()).Int("body_len", len(source.BodyText)).Msg("статья извлечена")
	return source, nil
}

func isTimeout(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Timeout()
	}
	return false
}

// Кандидаты на контейнер основного текста, в порядке предпочтения.
var contentSelectors = []string{
	"article",
	"main",
	"[role=main]",
	".post-content",
	".article-content",
	".entry-content",
	"#content",
}

func extractBody(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside, form, noscript").Remove()

	for _, selector := range contentSelectors {
		node := doc.Find(selector).First()
		if node.Length() == 0 {
			continue
		}
		if text := collectParagraphs(node); text != "" {
			return text
		}
	}
	// Ни один контейнер не подошёл: собираем абзацы по всему документу.
	if text := collectParagraphs(doc.Selection); text != "" {
		return text
	}
	return normalizeWhitespace(doc.Find("body").Text())
}

func collectParagraphs(sel *goquery.Selection) string {
	var parts []string
	sel.Find("p, li, blockquote").Each(func(_ int, p *goquery.Selection) {
		text := normalizeWhitespace(p.Text())
		// Короткие обрывки — чаще всего навигация и подписи.
		if len([]rune(text)) < 25 {
			return
		}
		parts = append(parts, text)
	})
	return strings.Join(parts, "\n\n")
}

func extractTitle(doc *goquery.Document) string {
	if v := metaContent(doc, `meta[property="og:title"]`); v != "" {
		return v
	}
	if v := metaContent(doc, `meta[name="twitter:title"]`); v != "" {
		return v
	}
	if v := normalizeWhitespace(doc.Find("title").First().Text()); v != "" {
		return v
	}
	return normalizeWhitespace(doc.Find("h1").First().Text())
}

func extractDescription(doc *goquery.Document) string {
	if v := metaContent(doc, `meta[property="og:description"]`); v != "" {
		return v
	}
	if v := metaContent(doc, `meta[name="twitter:description"]`); v != "" {
		return v
	}
	return metaContent(doc, `meta[name="description"]`)
}

func extractLeadImage(doc *goquery.Document, base *url.URL) string {
	raw := metaContent(doc, `meta[property="og:image"]`)
	if raw == "" {
		raw = metaContent(doc, `meta[name="twitter:image"]`)
	}
	if raw == "" {
		raw, _ = doc.Find("article img, main img, img").First().Attr("src")
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}

func extractAuthor(doc *goquery.Document) string {
	if v := metaContent(doc, `meta[name="author"]`); v != "" {
		return v
	}
	if v := metaContent(doc, `meta[property="article:author"]`); v != "" {
		return v
	}
	return normalizeWhitespace(doc.Find(`[rel="author"]`).First().Text())
}

func extractPublishedAt(doc *goquery.Document) *time.Time {
	raw := metaContent(doc, `meta[property="article:published_time"]`)
	if raw == "" {
		raw, _ = doc.Find("time[datetime]").First().Attr("datetime")
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return &ts
		}
	}
	return nil
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func normalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func clipRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
