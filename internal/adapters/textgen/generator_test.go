package textgen

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"smm-post-generator/internal/domain"
)

type stubGateway struct {
	content string
	err     error
	calls   int
}

func (s *stubGateway) Complete(_ context.Context, _ domain.CompletionTask, _ []domain.PromptMessage, _ domain.CompletionOpts) (*domain.Completion, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Completion{Content: s.content, ModelUsed: "stub-model", PromptTokens: 5, CompletionTokens: 7}, nil
}

var allPlatforms = []domain.Platform{domain.PlatformTwitter, domain.PlatformLinkedIn, domain.PlatformInstagram}

func TestGenerateUniversalReplicatesOnePost(t *testing.T) {
	gw := &stubGateway{content: "Go 1.24 is out and it is fast. #Go #Dev"}
	g := New(gw, false, zerolog.Nop())

	texts, usage, err := g.Generate(context.Background(), domain.CategoryTech, allPlatforms, "напиши пост про Go")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if gw.calls != 1 {
		t.Fatalf("универсальный режим делает один вызов модели, было %d", gw.calls)
	}
	if len(texts) != len(allPlatforms) {
		t.Fatalf("ожидали по записи на платформу, получили %d", len(texts))
	}
	for i, text := range texts {
		if text.Platform != allPlatforms[i] {
			t.Fatalf("платформы перепутаны: %v", texts)
		}
		if text.Content != texts[0].Content {
			t.Fatalf("контент должен совпадать на всех платформах")
		}
		if text.CharacterCount != len([]rune(text.Content)) {
			t.Fatalf("CharacterCount считается по рунам")
		}
		if len(text.Content) == 0 || len([]rune(text.Content)) > domain.UniversalPostLimit {
			t.Fatalf("контент вне бюджета: %q", text.Content)
		}
	}
	if usage.Model != "stub-model" || usage.PromptTokens != 5 {
		t.Fatalf("usage не перенесён: %+v", usage)
	}
}

func TestGeneratePerPlatformCallsModelPerPlatform(t *testing.T) {
	gw := &stubGateway{content: "Team update: we shipped. #Startup #Go #Dev"}
	g := New(gw, true, zerolog.Nop())

	texts, usage, err := g.Generate(context.Background(), domain.CategoryBusiness, allPlatforms, "пост о релизе")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if gw.calls != len(allPlatforms) {
		t.Fatalf("ожидали вызов на каждую платформу, было %d", gw.calls)
	}
	if len(texts) != len(allPlatforms) {
		t.Fatalf("ожидали %d текстов, получили %d", len(allPlatforms), len(texts))
	}
	if usage.PromptTokens != 5*len(allPlatforms) {
		t.Fatalf("расход токенов должен суммироваться: %+v", usage)
	}
}

func TestGenerateFailureReturnsPlaceholders(t *testing.T) {
	gw := &stubGateway{err: &domain.AllModelsFailedError{Task: domain.TaskText}}
	g := New(gw, false, zerolog.Nop())

	texts, _, err := g.Generate(context.Background(), domain.CategoryAI, allPlatforms, "пост")
	if err == nil {
		t.Fatalf("отказ всех моделей должен возвращать ошибку")
	}
	if len(texts) != len(allPlatforms) {
		t.Fatalf("заглушки нужны для каждой платформы, получили %d", len(texts))
	}
	for _, text := range texts {
		if text.Content != ErrorPlaceholder {
			t.Fatalf("ожидали заглушку, получили %q", text.Content)
		}
	}
}

func TestGenerateEmptyAfterCleaningIsError(t *testing.T) {
	gw := &stubGateway{content: "Would you like another version?"}
	g := New(gw, false, zerolog.Nop())

	_, _, err := g.Generate(context.Background(), domain.CategoryTech, allPlatforms, "пост")
	if err == nil {
		t.Fatalf("пустой после очистки ответ — это ошибка")
	}
	if !strings.Contains(err.Error(), "после очистки") {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
}
