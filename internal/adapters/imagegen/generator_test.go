package imagegen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"smm-post-generator/internal/domain"
	"smm-post-generator/internal/infra/imageapi"
)

type scriptedImageClient struct {
	failQualities map[string]bool
	requests      []imageapi.GenerationRequest
}

func (c *scriptedImageClient) Generate(_ context.Context, req imageapi.GenerationRequest) (string, error) {
	c.requests = append(c.requests, req)
	if c.failQualities[req.Quality] {
		return "", errors.New("provider overloaded")
	}
	return "https://img.example/" + req.Quality + ".png", nil
}

type memoryStore struct {
	uploads   map[string][]byte
	uploadErr error
}

func (s *memoryStore) Upload(_ context.Context, key, _ string, data []byte) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	if s.uploads == nil {
		s.uploads = make(map[string][]byte)
	}
	s.uploads[key] = data
	return "https://cdn.internal/" + key, nil
}

func (s *memoryStore) IsInternalURL(url string) bool {
	return strings.HasPrefix(url, "https://cdn.internal/")
}

type stubFetcher struct {
	data        []byte
	contentType string
	err         error
}

func (f *stubFetcher) Fetch(_ context.Context, _ string) ([]byte, string, error) {
	return f.data, f.contentType, f.err
}

func TestGenerateFallsBackThroughQualities(t *testing.T) {
	client := &scriptedImageClient{failQualities: map[string]bool{"high": true, "medium": true}}
	g := New(client, "img-model", nil, nil, zerolog.Nop())

	image, err := g.Generate(context.Background(), domain.ImageParams{
		TextContent: "Go tips",
		Category:    domain.CategoryTech,
		Platform:    domain.PlatformTwitter,
	})
	if err != nil {
		t.Fatalf("fallback на low должен был спасти генерацию: %v", err)
	}
	if image.Quality != domain.ImageQualityLow {
		t.Fatalf("ожидали качество low, получили %s", image.Quality)
	}
	if len(client.requests) != 3 {
		t.Fatalf("ожидали три попытки, было %d", len(client.requests))
	}
}

func TestGenerateAllQualitiesFailed(t *testing.T) {
	client := &scriptedImageClient{failQualities: map[string]bool{"high": true, "medium": true, "low": true}}
	g := New(client, "img-model", nil, nil, zerolog.Nop())

	_, err := g.Generate(context.Background(), domain.ImageParams{Platform: domain.PlatformTwitter})
	if !errors.Is(err, domain.ErrImageGeneration) {
		t.Fatalf("ожидали ErrImageGeneration, получили %v", err)
	}
}

func TestGenerateExplicitQualitySingleAttempt(t *testing.T) {
	client := &scriptedImageClient{failQualities: map[string]bool{"medium": true}}
	g := New(client, "img-model", nil, nil, zerolog.Nop())

	_, err := g.Generate(context.Background(), domain.ImageParams{
		Platform: domain.PlatformTwitter,
		Quality:  domain.ImageQualityMedium,
	})
	if !errors.Is(err, domain.ErrImageGeneration) {
		t.Fatalf("явное качество не даёт fallback, ожидали ошибку, получили %v", err)
	}
	if len(client.requests) != 1 {
		t.Fatalf("ожидали одну попытку, было %d", len(client.requests))
	}
}

func TestGenerateReferenceImageSkipsProvider(t *testing.T) {
	client := &scriptedImageClient{}
	g := New(client, "img-model", nil, nil, zerolog.Nop())

	image, err := g.Generate(context.Background(), domain.ImageParams{
		Platform:          domain.PlatformInstagram,
		ReferenceImageURL: "https://user.example/photo.jpg",
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if image.Quality != domain.ImageQualityUploaded || image.Model != "user-upload" {
		t.Fatalf("референс должен использоваться как есть: %+v", image)
	}
	if len(client.requests) != 0 {
		t.Fatalf("провайдер не должен вызываться при референсе")
	}
}

func TestPersistMovesImageIntoStore(t *testing.T) {
	client := &scriptedImageClient{}
	store := &memoryStore{}
	fetcher := &stubFetcher{data: []byte{0xFF, 0xD8}, contentType: "image/jpeg; charset=binary"}
	g := New(client, "img-model", store, fetcher, zerolog.Nop())

	image, err := g.Generate(context.Background(), domain.ImageParams{
		Platform:      domain.PlatformTwitter,
		PersistUserID: "user-1",
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.HasPrefix(image.ImageURL, "https://cdn.internal/social-images/user-1/") {
		t.Fatalf("URL должен указывать в хранилище: %s", image.ImageURL)
	}
	if !strings.HasSuffix(image.ImageURL, ".jpg") {
		t.Fatalf("расширение должно соответствовать типу: %s", image.ImageURL)
	}
}

func TestPersistUploadFailureKeepsExternalURL(t *testing.T) {
	client := &scriptedImageClient{}
	store := &memoryStore{uploadErr: errors.New("storage down")}
	fetcher := &stubFetcher{data: []byte{1}, contentType: "image/png"}
	g := New(client, "img-model", store, fetcher, zerolog.Nop())

	image, err := g.Generate(context.Background(), domain.ImageParams{
		Platform:      domain.PlatformTwitter,
		PersistUserID: "user-1",
	})
	if err != nil {
		t.Fatalf("сбой переноса не фатален: %v", err)
	}
	if !strings.HasPrefix(image.ImageURL, "https://img.example/") {
		t.Fatalf("должен остаться внешний URL: %s", image.ImageURL)
	}
}

func TestPersistBadTypeOnUploadedReferenceIsError(t *testing.T) {
	store := &memoryStore{}
	fetcher := &stubFetcher{data: []byte("<svg/>"), contentType: "image/svg+xml"}
	g := New(&scriptedImageClient{}, "img-model", store, fetcher, zerolog.Nop())

	_, err := g.Generate(context.Background(), domain.ImageParams{
		Platform:          domain.PlatformTwitter,
		ReferenceImageURL: "https://user.example/pic.svg",
		PersistUserID:     "user-1",
	})
	if !errors.Is(err, domain.ErrUnsupportedImageType) {
		t.Fatalf("ожидали ErrUnsupportedImageType, получили %v", err)
	}
}

func TestPersistBadTypeOnGeneratedImageKeepsExternal(t *testing.T) {
	store := &memoryStore{}
	fetcher := &stubFetcher{data: []byte("<html>"), contentType: "text/html"}
	g := New(&scriptedImageClient{}, "img-model", store, fetcher, zerolog.Nop())

	image, err := g.Generate(context.Background(), domain.ImageParams{
		Platform:      domain.PlatformTwitter,
		PersistUserID: "user-1",
	})
	if err != nil {
		t.Fatalf("для сгенерированного изображения плохой тип не фатален: %v", err)
	}
	if !strings.HasPrefix(image.ImageURL, "https://img.example/") {
		t.Fatalf("должен остаться внешний URL: %s", image.ImageURL)
	}
}

func TestBuildPromptIncludesStyleAndExcerpt(t *testing.T) {
	prompt := BuildPrompt("Remote work is the future of engineering teams", domain.CategoryBusiness, domain.PlatformLinkedIn)
	if !strings.Contains(prompt, "office") {
		t.Fatalf("ожидали стиль категории business: %q", prompt)
	}
	if !strings.Contains(prompt, "1200x627") {
		t.Fatalf("ожидали размер платформы linkedin: %q", prompt)
	}
	if !strings.Contains(prompt, "Remote work") {
		t.Fatalf("ожидали фрагмент текста поста: %q", prompt)
	}
	if !strings.Contains(prompt, "No text or watermarks") {
		t.Fatalf("ожидали запрет текста на изображении: %q", prompt)
	}
}

func TestBuildPromptTruncatesLongText(t *testing.T) {
	long := strings.Repeat("s", 500)
	prompt := BuildPrompt(long, domain.CategoryTech, domain.PlatformTwitter)
	if strings.Contains(prompt, strings.Repeat("s", 201)) {
		t.Fatalf("текст поста должен обрезаться до %d символов", promptTextLimit)
	}
}
