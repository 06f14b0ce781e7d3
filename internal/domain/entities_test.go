package domain

import (
	"errors"
	"testing"
)

func TestValidateLaneInvariants(t *testing.T) {
	platforms := []Platform{PlatformTwitter}
	cases := []struct {
		name string
		req  GenerationRequest
		want error
	}{
		{"auto ok", GenerationRequest{Lane: LaneAuto, Platforms: platforms}, nil},
		{"url ok", GenerationRequest{Lane: LaneURL, URL: "https://a", Platforms: platforms}, nil},
		{"url без ссылки", GenerationRequest{Lane: LaneURL, Platforms: platforms}, ErrInvalidRequest},
		{"custom с промптом", GenerationRequest{Lane: LaneCustom, UserPrompt: "п", Platforms: platforms}, nil},
		{"custom с референсом", GenerationRequest{Lane: LaneCustom, ReferenceImageURL: "https://i", Platforms: platforms}, nil},
		{"custom пустой", GenerationRequest{Lane: LaneCustom, Platforms: platforms}, ErrInvalidRequest},
		{"неизвестный lane", GenerationRequest{Lane: "magic", Platforms: platforms}, ErrInvalidRequest},
		{"без платформ", GenerationRequest{Lane: LaneAuto}, ErrNoPlatforms},
	}
	for _, tc := range cases {
		if err := tc.req.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: ожидали %v, получили %v", tc.name, tc.want, err)
		}
	}
}

func TestLimitsForUnknownPlatformUsesStrictBudget(t *testing.T) {
	limits := LimitsFor("myspace")
	if limits.MaxChars != UniversalPostLimit {
		t.Fatalf("незнакомая платформа получает бюджет %d, получили %d", UniversalPostLimit, limits.MaxChars)
	}
	if KnownPlatform("myspace") {
		t.Fatalf("myspace не должна считаться известной")
	}
	if !KnownPlatform(PlatformLinkedIn) {
		t.Fatalf("linkedin должна быть известной")
	}
}

func TestModelConfigCopiesLists(t *testing.T) {
	source := map[CompletionTask][]string{TaskText: {"a", "b"}}
	cfg := NewModelConfig(source)
	source[TaskText][0] = "mutated"

	models := cfg.Models(TaskText)
	if models[0] != "a" {
		t.Fatalf("конфиг должен копировать списки, получили %v", models)
	}
	models[1] = "mutated"
	if cfg.Models(TaskText)[1] != "b" {
		t.Fatalf("возвращаемый список должен быть копией")
	}
}

func TestModelConfigUnknownTaskFallsBackToText(t *testing.T) {
	cfg := NewModelConfig(map[CompletionTask][]string{TaskText: {"a"}})
	models := cfg.Models(TaskURLSummarize)
	if len(models) != 1 || models[0] != "a" {
		t.Fatalf("незнакомая задача получает список text, получили %v", models)
	}
}

func TestOnlyRateLimited(t *testing.T) {
	empty := &AllModelsFailedError{Task: TaskText}
	if empty.OnlyRateLimited() {
		t.Fatalf("без попыток OnlyRateLimited обязан быть false")
	}

	all := &AllModelsFailedError{Attempts: []ModelAttempt{
		{Model: "a", Outcome: OutcomeRateLimited},
		{Model: "b", Outcome: OutcomeRateLimited},
	}}
	if !all.OnlyRateLimited() {
		t.Fatalf("все попытки rate_limited, ожидали true")
	}

	mixed := &AllModelsFailedError{Attempts: []ModelAttempt{
		{Model: "a", Outcome: OutcomeRateLimited},
		{Model: "b", Outcome: OutcomeOther},
	}}
	if mixed.OnlyRateLimited() {
		t.Fatalf("смешанные исходы, ожидали false")
	}
}
