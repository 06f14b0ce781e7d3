package textgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"smm-post-generator/internal/domain"
)

// ErrorPlaceholder подставляется в контент платформ при фатальном отказе
// всех моделей, чтобы вызывающая сторона могла показать понятный текст.
const ErrorPlaceholder = "Content generation is temporarily unavailable. Please try again in a few minutes."

// Generator строит текст поста через шлюз моделей и прогоняет ответ
// через детерминированную очистку.
type Generator struct {
	gateway     domain.ModelGateway
	perPlatform bool
	log         zerolog.Logger
}

var _ domain.TextGenerator = (*Generator)(nil)

// New создаёт генератор текста. perPlatform включает отдельную генерацию
// под бюджет каждой платформы вместо универсального поста.
func New(gateway domain.ModelGateway, perPlatform bool, logger zerolog.Logger) *Generator {
	return &Generator{gateway: gateway, perPlatform: perPlatform, log: logger}
}

// Generate возвращает по одному GeneratedText на платформу. Фатальный
// отказ всех моделей — единственная ошибка, которая роняет весь запрос;
// при этом контент платформ заполняется видимой заглушкой.
func (g *Generator) Generate(ctx context.Context, category domain.Category, platforms []domain.Platform, basePrompt string) ([]domain.GeneratedText, domain.GenerationUsage, error) {
	if g.perPlatform {
		return g.generatePerPlatform(ctx, category, platforms, basePrompt)
	}
	return g.generateUniversal(ctx, category, platforms, basePrompt)
}

func (g *Generator) generateUniversal(ctx context.Context, category domain.Category, platforms []domain.Platform, basePrompt string) ([]domain.GeneratedText, domain.GenerationUsage, error) {
	content, usage, err := g.generateOne(ctx, category, basePrompt, domain.UniversalPostLimit, "")
	if err != nil {
		return placeholderTexts(platforms), usage, err
	}

	// Один универсальный пост копируется в слот каждой платформы.
	texts := make([]domain.GeneratedText, 0, len(platforms))
	for _, platform := range platforms {
		texts = append(texts, buildText(platform, content))
	}
	return texts, usage, nil
}

func (g *Generator) generatePerPlatform(ctx context.Context, category domain.Category, platforms []domain.Platform, basePrompt string) ([]domain.GeneratedText, domain.GenerationUsage, error) {
	var total domain.GenerationUsage
	texts := make([]domain.GeneratedText, 0, len(platforms))
	for _, platform := range platforms {
		limits := domain.LimitsFor(platform)
		content, usage, err := g.generateOne(ctx, category, basePrompt, limits.MaxChars, limits.Tone)
		total.Model = usage.Model
		total.PromptTokens += usage.PromptTokens
		total.CompletionTokens += usage.CompletionTokens
		if err != nil {
			return placeholderTexts(platforms), total, err
		}
		texts = append(texts, buildText(platform, content))
	}
	return texts, total, nil
}

func (g *Generator) generateOne(ctx context.Context, category domain.Category, basePrompt string, limit int, tone string) (string, domain.GenerationUsage, error) {
	completion, err := g.gateway.Complete(ctx, domain.TaskText, []domain.PromptMessage{
		{Role: domain.RoleSystem, Content: systemInstruction(limit, tone)},
		{Role: domain.RoleUser, Content: userPrompt(category, basePrompt)},
	}, domain.CompletionOpts{
		Temperature:       0.8,
		MaxTokens:         500,
		AllowGracefulSkip: false,
	})
	if err != nil {
		return "", domain.GenerationUsage{}, fmt.Errorf("генерация текста: %w", err)
	}

	usage := domain.GenerationUsage{
		Model:            completion.ModelUsed,
		PromptTokens:     completion.PromptTokens,
		CompletionTokens: completion.CompletionTokens,
	}

	cleaned := CleanModelOutput(completion.Content)
	body, tags := ExtractHashtags(cleaned)
	final := ComposePost(body, tags, limit, domain.MaxHashtags)
	if final == "" {
		return "", usage, fmt.Errorf("генерация текста: после очистки не осталось контента (модель %s)", completion.ModelUsed)
	}
	g.log.Debug().Str("model", completion.ModelUsed).Int("chars", len([]rune(final))).Msg("текст поста готов")
	return final, usage, nil
}

func buildText(platform domain.Platform, content string) domain.GeneratedText {
	_, tags := ExtractHashtags(content)
	return domain.GeneratedText{
		Platform:       platform,
		Content:        content,
		CharacterCount: len([]rune(content)),
		Hashtags:       tags,
	}
}

func placeholderTexts(platforms []domain.Platform) []domain.GeneratedText {
	texts := make([]domain.GeneratedText, 0, len(platforms))
	for _, platform := range platforms {
		texts = append(texts, domain.GeneratedText{
			Platform:       platform,
			Content:        ErrorPlaceholder,
			CharacterCount: len([]rune(ErrorPlaceholder)),
		})
	}
	return texts
}

func systemInstruction(limit int, tone string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You write a single ready-to-publish social media post.
Hard rules:
- one post body only, at most %d characters including hashtags
- 3 to 5 relevant hashtags inside or after the text
- no title, no preamble, no explanation of your choices
- plain text, no markdown`, limit)
	if tone != "" {
		fmt.Fprintf(&b, "\n- tone: %s", tone)
	}
	return b.String()
}

func userPrompt(category domain.Category, basePrompt string) string {
	if category == "" {
		return basePrompt
	}
	return fmt.Sprintf("Topic category: %s.\n\n%s", category, basePrompt)
}
