package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"smm-post-generator/internal/adapters/optimizer"
	"smm-post-generator/internal/adapters/textgen"
	"smm-post-generator/internal/domain"
)

// neutralScore подставляется, когда модель не вернула валидную рубрику.
const neutralScore = 7.0

// Checker оценивает текст по AI-рубрике и при необходимости переписывает
// его. Score никогда не падает: любой внутренний сбой сводится к
// консервативной оценке на основе детерминированной валидации платформы.
type Checker struct {
	gateway domain.ModelGateway
	timeout time.Duration
	log     zerolog.Logger
}

var _ domain.QualityChecker = (*Checker)(nil)

// New создаёт оценщик качества.
func New(gateway domain.ModelGateway, timeout time.Duration, logger zerolog.Logger) *Checker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Checker{gateway: gateway, timeout: timeout, log: logger}
}

type rubricPayload struct {
	Overall              float64  `json:"overall"`
	Engagement           float64  `json:"engagement"`
	Clarity              float64  `json:"clarity"`
	Relevance            float64  `json:"relevance"`
	PlatformOptimization float64  `json:"platform_optimization"`
	Feedback             []string `json:"feedback"`
	Suggestions          []string `json:"suggestions"`
}

// Score оценивает текст. Ошибки валидации платформы попадают в
// suggestions и снижают overall.
func (c *Checker) Score(ctx context.Context, content string, platform domain.Platform, category domain.Category) domain.QualityScore {
	score := c.modelScore(ctx, content, platform, category)

	validation := optimizer.Validate(content, platform)
	for _, e := range validation.Errors {
		score.Suggestions = append(score.Suggestions, e)
		score.Overall -= 2
	}
	score.Feedback = append(score.Feedback, validation.Warnings...)
	score.Overall = clamp(score.Overall)
	return score
}

func (c *Checker) modelScore(ctx context.Context, content string, platform domain.Platform, category domain.Category) domain.QualityScore {
	fallback := domain.QualityScore{
		Overall:              neutralScore,
		Engagement:           neutralScore,
		Clarity:              neutralScore,
		Relevance:            neutralScore,
		PlatformOptimization: neutralScore,
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	completion, err := c.gateway.Complete(callCtx, domain.TaskText, []domain.PromptMessage{
		{Role: domain.RoleSystem, Content: scoreSystemInstruction},
		{Role: domain.RoleUser, Content: scoreUserPrompt(content, platform, category)},
	}, domain.CompletionOpts{
		Temperature:       0.1,
		MaxTokens:         400,
		JSONObject:        true,
		AllowGracefulSkip: true,
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("оценка качества не удалась, используем нейтральную")
		return fallback
	}
	if completion == nil {
		return fallback
	}

	// Провайдеры оборачивают JSON пояснительным текстом: достаём первый
	// корректный объект, а не доверяем формату ответа.
	raw := extractJSONObject(completion.Content)
	if raw == "" {
		c.log.Warn().Str("model", completion.ModelUsed).Msg("в ответе оценщика нет JSON")
		return fallback
	}
	var parsed rubricPayload
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		c.log.Warn().Err(err).Msg("распаковка рубрики не удалась")
		return fallback
	}
	return domain.QualityScore{
		Overall:              clamp(parsed.Overall),
		Engagement:           clamp(parsed.Engagement),
		Clarity:              clamp(parsed.Clarity),
		Relevance:            clamp(parsed.Relevance),
		PlatformOptimization: clamp(parsed.PlatformOptimization),
		Feedback:             filterNonEmpty(parsed.Feedback),
		Suggestions:          filterNonEmpty(parsed.Suggestions),
	}
}

// Enhance переписывает текст с учётом замечаний. При пустом или
// неудачном ответе возвращает исходный текст без изменений.
func (c *Checker) Enhance(ctx context.Context, content string, platform domain.Platform, score domain.QualityScore) string {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	completion, err := c.gateway.Complete(callCtx, domain.TaskText, []domain.PromptMessage{
		{Role: domain.RoleSystem, Content: enhanceSystemInstruction},
		{Role: domain.RoleUser, Content: enhanceUserPrompt(content, platform, score)},
	}, domain.CompletionOpts{
		Temperature:       0.6,
		MaxTokens:         500,
		AllowGracefulSkip: true,
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("улучшение текста не удалось, оставляем исходный")
		return content
	}
	if completion == nil {
		return content
	}
	enhanced := textgen.CleanModelOutput(completion.Content)
	if enhanced == "" {
		return content
	}
	return enhanced
}

const scoreSystemInstruction = `You are a strict social media editor. Score the given post and answer with a single JSON object:
{"overall": 0-10, "engagement": 0-10, "clarity": 0-10, "relevance": 0-10, "platform_optimization": 0-10, "feedback": ["..."], "suggestions": ["..."]}
No text outside the JSON object.`

func scoreUserPrompt(content string, platform domain.Platform, category domain.Category) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Platform: %s\n", platform)
	if category != "" {
		fmt.Fprintf(&b, "Topic category: %s\n", category)
	}
	b.WriteString("Post:\n")
	b.WriteString(content)
	return b.String()
}

const enhanceSystemInstruction = `You improve social media posts. Rewrite the post addressing every suggestion.
Keep the meaning, the length budget and the hashtags. Return only the rewritten post.`

func enhanceUserPrompt(content string, platform domain.Platform, score domain.QualityScore) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Platform: %s\n", platform)
	if len(score.Suggestions) > 0 {
		b.WriteString("Suggestions:\n")
		for _, s := range score.Suggestions {
			b.WriteString("- " + s + "\n")
		}
	}
	b.WriteString("Post:\n")
	b.WriteString(content)
	return b.String()
}

// extractJSONObject возвращает первую сбалансированную {...} подстроку.
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

func filterNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
