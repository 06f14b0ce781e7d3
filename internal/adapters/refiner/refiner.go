package refiner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"smm-post-generator/internal/domain"
)

// Refiner уплотняет сырой промпт через шлюз моделей. Стадия строго
// best-effort: любой сбой превращается в возврат исходного текста.
type Refiner struct {
	gateway domain.ModelGateway
	timeout time.Duration
	log     zerolog.Logger
}

var _ domain.PromptRefiner = (*Refiner)(nil)

// New создаёт уплотнитель промптов.
func New(gateway domain.ModelGateway, timeout time.Duration, logger zerolog.Logger) *Refiner {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Refiner{gateway: gateway, timeout: timeout, log: logger}
}

const systemInstruction = `You rewrite rough social media post ideas into dense, specific generation prompts.
Keep every fact from the input. Add concrete angle, audience and desired emotion.
Return only the rewritten prompt, without commentary.`

// Refine возвращает уплотнённый промпт либо исходный текст без изменений.
func (r *Refiner) Refine(ctx context.Context, raw string, rctx domain.RefineContext) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	completion, err := r.gateway.Complete(callCtx, domain.TaskPromptRefine, []domain.PromptMessage{
		{Role: domain.RoleSystem, Content: systemInstruction},
		{Role: domain.RoleUser, Content: buildUserPrompt(raw, rctx)},
	}, domain.CompletionOpts{
		Temperature:       0.4,
		MaxTokens:         400,
		AllowGracefulSkip: true,
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("уплотнение промпта не удалось, используем исходный")
		return raw
	}
	if completion == nil {
		r.log.Warn().Msg("уплотнение промпта пропущено: модели в лимите")
		return raw
	}
	refined := strings.TrimSpace(completion.Content)
	if refined == "" {
		return raw
	}
	return refined
}

func buildUserPrompt(raw string, rctx domain.RefineContext) string {
	var b strings.Builder
	b.WriteString("Rough idea:\n")
	b.WriteString(raw)
	if rctx.Category != "" {
		fmt.Fprintf(&b, "\n\nTopic category: %s", rctx.Category)
	}
	if rctx.Platform != "" {
		fmt.Fprintf(&b, "\nTarget platform: %s", rctx.Platform)
	}
	if rctx.URLExcerpt != "" {
		fmt.Fprintf(&b, "\n\nSource article excerpt:\n%s", rctx.URLExcerpt)
	}
	return b.String()
}
