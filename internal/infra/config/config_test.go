package config

import (
	"testing"

	"smm-post-generator/internal/domain"
)

func TestSplitModels(t *testing.T) {
	got := splitModels(" gpt-4.1-mini, gpt-4o-mini ,,llama-3.3-70b ")
	want := []string{"gpt-4.1-mini", "gpt-4o-mini", "llama-3.3-70b"}
	if len(got) != len(want) {
		t.Fatalf("ожидали %v, получили %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ожидали %v, получили %v", want, got)
		}
	}
}

func TestModelConfigBuildsOrderedLists(t *testing.T) {
	var cfg AppConfig
	cfg.Models.Text = "primary,fallback"
	cfg.Models.PromptRefine = "refine-only"
	cfg.Models.URLSummarize = ""

	mc := cfg.ModelConfig()
	text := mc.Models(domain.TaskText)
	if len(text) != 2 || text[0] != "primary" {
		t.Fatalf("порядок моделей text нарушен: %v", text)
	}
	if refine := mc.Models(domain.TaskPromptRefine); len(refine) != 1 || refine[0] != "refine-only" {
		t.Fatalf("список prompt-refine нарушен: %v", refine)
	}
	if sum := mc.Models(domain.TaskURLSummarize); len(sum) != 0 {
		t.Fatalf("пустая настройка даёт пустой список: %v", sum)
	}
}
