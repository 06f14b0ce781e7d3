package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"smm-post-generator/internal/domain"
	"smm-post-generator/internal/infra/metrics"
	openai "smm-post-generator/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Gateway перебирает модели задачи по порядку до первого успеха.
// Бесплатные провайдеры по отдельности ненадёжны, поэтому retry выражен
// только как переход к следующей модели списка: суммарное число попыток
// ограничено длиной списка.
type Gateway struct {
	client chatClient
	models *domain.ModelConfig
	log    zerolog.Logger
}

var _ domain.ModelGateway = (*Gateway)(nil)

// New создаёт шлюз моделей поверх неизменяемой таблицы.
func New(client chatClient, models *domain.ModelConfig, logger zerolog.Logger) *Gateway {
	return &Gateway{client: client, models: models, log: logger}
}

// Complete выполняет запрос с fallback по списку моделей задачи.
// При AllowGracefulSkip и отказах только по квоте возвращает (nil, nil).
func (g *Gateway) Complete(ctx context.Context, task domain.CompletionTask, messages []domain.PromptMessage, opts domain.CompletionOpts) (*domain.Completion, error) {
	models := g.models.Models(task)
	if len(models) == 0 {
		return nil, fmt.Errorf("для задачи %q не настроено ни одной модели", task)
	}

	attempts := make([]domain.ModelAttempt, 0, len(models))
	for _, model := range models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := g.client.CreateChatCompletion(ctx, buildRequest(model, messages, opts))
		if err != nil {
			outcome := classify(err)
			attempts = append(attempts, domain.ModelAttempt{Model: model, Outcome: outcome, Err: err.Error()})
			metrics.ModelFallbacksTotal.WithLabelValues(string(task), string(outcome)).Inc()
			if outcome == domain.OutcomeNotFound {
				// Недоступная модель — не настоящий сбой, пропускаем тихо.
				g.log.Debug().Str("task", string(task)).Str("model", model).Msg("модель недоступна, пропуск")
			} else {
				g.log.Warn().Err(err).Str("task", string(task)).Str("model", model).Msg("модель не ответила, переход к следующей")
			}
			continue
		}

		content := ""
		if len(resp.Choices) > 0 {
			content = strings.TrimSpace(resp.Choices[0].Message.Content)
		}
		if content == "" {
			attempts = append(attempts, domain.ModelAttempt{Model: model, Outcome: domain.OutcomeOther, Err: "пустой ответ модели"})
			metrics.ModelFallbacksTotal.WithLabelValues(string(task), string(domain.OutcomeOther)).Inc()
			continue
		}

		completion := &domain.Completion{Content: content, ModelUsed: model}
		if resp.Usage != nil {
			completion.PromptTokens = resp.Usage.PromptTokens
			completion.CompletionTokens = resp.Usage.CompletionTokens
		}
		return completion, nil
	}

	failure := &domain.AllModelsFailedError{Task: task, Attempts: attempts}
	if opts.AllowGracefulSkip && failure.OnlyRateLimited() {
		metrics.GracefulSkipsTotal.WithLabelValues(string(task)).Inc()
		g.log.Warn().Str("task", string(task)).Int("models", len(models)).Msg("все модели в лимите, graceful skip")
		return nil, nil
	}
	return nil, failure
}

func buildRequest(model string, messages []domain.PromptMessage, opts domain.CompletionOpts) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Messages:    make([]openai.ChatMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatMessage{Role: m.Role, Content: m.Content})
	}
	if opts.JSONObject {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject}
	}
	return req
}

// Классификация опирается на HTTP статус и код ошибки провайдера,
// а не на текст сообщения.
func classify(err error) domain.AttemptOutcome {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsRateLimit() {
			return domain.OutcomeRateLimited
		}
		if apiErr.IsModelNotFound() {
			return domain.OutcomeNotFound
		}
	}
	return domain.OutcomeOther
}
