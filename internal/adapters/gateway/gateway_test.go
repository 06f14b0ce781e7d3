package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"smm-post-generator/internal/domain"
	openai "smm-post-generator/internal/infra/openai"
)

type modelOutcome struct {
	resp openai.ChatCompletionResponse
	err  error
}

type scriptedClient struct {
	outcomes map[string]modelOutcome
	calls    []string
}

func (c *scriptedClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.calls = append(c.calls, req.Model)
	out, ok := c.outcomes[req.Model]
	if !ok {
		return openai.ChatCompletionResponse{}, errors.New("неизвестная модель в тесте")
	}
	return out.resp, out.err
}

func okResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatMessage{Role: openai.RoleSystem, Content: content}}},
		Usage:   &openai.ChatCompletionUsage{PromptTokens: 10, CompletionTokens: 20},
	}
}

func newGateway(client *scriptedClient, models ...string) *Gateway {
	cfg := domain.NewModelConfig(map[domain.CompletionTask][]string{domain.TaskText: models})
	return New(client, cfg, zerolog.Nop())
}

var noMessages = []domain.PromptMessage{{Role: domain.RoleUser, Content: "hi"}}

func TestCompleteReturnsWinningModel(t *testing.T) {
	client := &scriptedClient{outcomes: map[string]modelOutcome{
		"a": {err: &openai.APIError{StatusCode: 500, Message: "boom"}},
		"b": {resp: okResponse("ответ")},
	}}
	g := newGateway(client, "a", "b", "c")

	completion, err := g.Complete(context.Background(), domain.TaskText, noMessages, domain.CompletionOpts{})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if completion.ModelUsed != "b" {
		t.Fatalf("ожидали победу модели b, получили %s", completion.ModelUsed)
	}
	if completion.Content != "ответ" {
		t.Fatalf("неожиданный контент: %q", completion.Content)
	}
	if completion.PromptTokens != 10 || completion.CompletionTokens != 20 {
		t.Fatalf("ожидали перенос usage из ответа")
	}
	if len(client.calls) != 2 {
		t.Fatalf("модель c не должна была вызываться, вызовы: %v", client.calls)
	}
}

func TestCompleteGracefulSkipWhenAllRateLimited(t *testing.T) {
	client := &scriptedClient{outcomes: map[string]modelOutcome{
		"a": {err: &openai.APIError{StatusCode: 429}},
		"b": {err: &openai.APIError{StatusCode: 200, Code: "insufficient_quota"}},
	}}
	g := newGateway(client, "a", "b")

	completion, err := g.Complete(context.Background(), domain.TaskText, noMessages, domain.CompletionOpts{AllowGracefulSkip: true})
	if err != nil {
		t.Fatalf("graceful skip не должен возвращать ошибку: %v", err)
	}
	if completion != nil {
		t.Fatalf("ожидали nil-ответ как сигнал пропуска")
	}
}

func TestCompleteFailsWithAttemptPerModel(t *testing.T) {
	client := &scriptedClient{outcomes: map[string]modelOutcome{
		"a": {err: &openai.APIError{StatusCode: 429}},
		"b": {err: errors.New("connection reset")},
		"c": {err: &openai.APIError{StatusCode: 404}},
	}}
	g := newGateway(client, "a", "b", "c")

	_, err := g.Complete(context.Background(), domain.TaskText, noMessages, domain.CompletionOpts{})
	var allFailed *domain.AllModelsFailedError
	if !errors.As(err, &allFailed) {
		t.Fatalf("ожидали AllModelsFailedError, получили %v", err)
	}
	if len(allFailed.Attempts) != 3 {
		t.Fatalf("ожидали по записи на модель, получили %d", len(allFailed.Attempts))
	}
	if allFailed.Attempts[0].Outcome != domain.OutcomeRateLimited {
		t.Fatalf("первая попытка должна быть rate_limited, получили %s", allFailed.Attempts[0].Outcome)
	}
	if allFailed.Attempts[1].Outcome != domain.OutcomeOther {
		t.Fatalf("вторая попытка должна быть other, получили %s", allFailed.Attempts[1].Outcome)
	}
	if allFailed.Attempts[2].Outcome != domain.OutcomeNotFound {
		t.Fatalf("третья попытка должна быть not_found, получили %s", allFailed.Attempts[2].Outcome)
	}
}

func TestCompleteGracefulSkipNotAppliedOnMixedFailures(t *testing.T) {
	client := &scriptedClient{outcomes: map[string]modelOutcome{
		"a": {err: &openai.APIError{StatusCode: 429}},
		"b": {err: errors.New("timeout")},
	}}
	g := newGateway(client, "a", "b")

	_, err := g.Complete(context.Background(), domain.TaskText, noMessages, domain.CompletionOpts{AllowGracefulSkip: true})
	var allFailed *domain.AllModelsFailedError
	if !errors.As(err, &allFailed) {
		t.Fatalf("смешанные отказы не дают graceful skip, ожидали ошибку, получили %v", err)
	}
}

func TestCompleteNotFoundSkippedButLoopContinues(t *testing.T) {
	client := &scriptedClient{outcomes: map[string]modelOutcome{
		"a": {err: &openai.APIError{StatusCode: 404, Code: "model_not_found"}},
		"b": {resp: okResponse("ok")},
	}}
	g := newGateway(client, "a", "b")

	completion, err := g.Complete(context.Background(), domain.TaskText, noMessages, domain.CompletionOpts{})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if completion.ModelUsed != "b" {
		t.Fatalf("ожидали fallback на b, получили %s", completion.ModelUsed)
	}
}

func TestCompleteEmptyContentTreatedAsFailure(t *testing.T) {
	client := &scriptedClient{outcomes: map[string]modelOutcome{
		"a": {resp: openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatMessage{Content: "   "}}}}},
		"b": {resp: okResponse("настоящий ответ")},
	}}
	g := newGateway(client, "a", "b")

	completion, err := g.Complete(context.Background(), domain.TaskText, noMessages, domain.CompletionOpts{})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if completion.ModelUsed != "b" {
		t.Fatalf("пустой ответ должен вести к следующей модели")
	}
}
