package extractor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"smm-post-generator/internal/domain"
)

type countingTransport struct {
	calls int
}

func (t *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	t.calls++
	return nil, errors.New("сеть недоступна в тесте")
}

func TestExtractRejectsBadURLWithoutNetwork(t *testing.T) {
	transport := &countingTransport{}
	e := New(&http.Client{Transport: transport}, 0, zerolog.Nop())

	cases := []string{
		"ftp://example.com/article",
		"javascript:alert(1)",
		"not a url",
		"http://",
		"",
	}
	for _, raw := range cases {
		_, err := e.Extract(context.Background(), raw)
		if !errors.Is(err, domain.ErrInvalidURL) {
			t.Fatalf("%q: ожидали ErrInvalidURL, получили %v", raw, err)
		}
	}
	if transport.calls != 0 {
		t.Fatalf("валидация должна отсекать до сети, было %d запросов", transport.calls)
	}
}

const articleHTML = `<!doctype html>
<html>
<head>
	<title>Fallback title</title>
	<meta property="og:title" content="Go 1.24 Released">
	<meta property="og:description" content="The Go team announces a new release.">
	<meta property="og:image" content="/static/cover.png">
	<meta name="author" content="Go Team">
	<meta property="article:published_time" content="2026-02-11T10:00:00Z">
</head>
<body>
	<nav><a href="/">Home</a> · <a href="/blog">Blog</a></nav>
	<article>
		<p>Go 1.24 brings faster builds and a leaner runtime across all supported platforms.</p>
		<p>Подпись</p>
		<p>Generics keep maturing, and the standard library gained several long-requested helpers.</p>
	</article>
	<footer>Copyright notices and other boilerplate text live here.</footer>
</body>
</html>`

func TestExtractParsesArticle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	e := New(srv.Client(), 0, zerolog.Nop())
	source, err := e.Extract(context.Background(), srv.URL+"/post")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if source.Title != "Go 1.24 Released" {
		t.Fatalf("og:title имеет приоритет, получили %q", source.Title)
	}
	if source.Description != "The Go team announces a new release." {
		t.Fatalf("неожиданное описание: %q", source.Description)
	}
	if source.Author != "Go Team" {
		t.Fatalf("неожиданный автор: %q", source.Author)
	}
	if source.LeadImageURL != srv.URL+"/static/cover.png" {
		t.Fatalf("относительный og:image должен резолвиться от базы: %q", source.LeadImageURL)
	}
	if source.PublishedAt == nil || source.PublishedAt.Year() != 2026 {
		t.Fatalf("дата публикации не разобрана: %v", source.PublishedAt)
	}
	if !strings.Contains(source.BodyText, "faster builds") {
		t.Fatalf("основной текст потерян: %q", source.BodyText)
	}
	if strings.Contains(source.BodyText, "Подпись") {
		t.Fatalf("короткие обрывки не должны попадать в текст: %q", source.BodyText)
	}
	if strings.Contains(source.BodyText, "Copyright") {
		t.Fatalf("footer должен вырезаться: %q", source.BodyText)
	}
	if strings.Contains(source.BodyText, "Home") {
		t.Fatalf("навигация должна вырезаться: %q", source.BodyText)
	}
}

func TestExtractNon2xxIsFetchFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	e := New(srv.Client(), 0, zerolog.Nop())
	_, err := e.Extract(context.Background(), srv.URL)
	if !errors.Is(err, domain.ErrFetchFailed) {
		t.Fatalf("ожидали ErrFetchFailed, получили %v", err)
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><head></head><body><nav>menu</nav></body></html>"))
	}))
	defer srv.Close()

	e := New(srv.Client(), 0, zerolog.Nop())
	_, err := e.Extract(context.Background(), srv.URL)
	if !errors.Is(err, domain.ErrEmptyDocument) {
		t.Fatalf("ожидали ErrEmptyDocument, получили %v", err)
	}
}

func TestExtractBodyClippedToLimit(t *testing.T) {
	paragraph := "<p>" + strings.Repeat("Длинный абзац статьи продолжается и продолжается без остановки. ", 20) + "</p>"
	html := "<html><body><article>" + strings.Repeat(paragraph, 30) + "</article></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(html))
	}))
	defer srv.Close()

	e := New(srv.Client(), 0, zerolog.Nop())
	source, err := e.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if n := len([]rune(source.BodyText)); n > 8000 {
		t.Fatalf("текст статьи должен обрезаться до 8000 рун, получили %d", n)
	}
}
