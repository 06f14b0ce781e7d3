package config

import (
	"log"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"smm-post-generator/internal/domain"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"60s"`
	} `envconfig:""`

	ImageAPI struct {
		APIKey  string        `envconfig:"IMAGE_API_KEY"`
		BaseURL string        `envconfig:"IMAGE_API_BASE_URL"`
		Model   string        `envconfig:"IMAGE_MODEL" default:"flux-schnell"`
		Timeout time.Duration `envconfig:"IMAGE_API_TIMEOUT" default:"120s"`
	} `envconfig:""`

	Storage struct {
		BaseURL       string        `envconfig:"STORAGE_BASE_URL"`
		PublicBaseURL string        `envconfig:"STORAGE_PUBLIC_BASE_URL"`
		AccessToken   string        `envconfig:"STORAGE_ACCESS_TOKEN"`
		Timeout       time.Duration `envconfig:"STORAGE_TIMEOUT" default:"30s"`
	} `envconfig:""`

	Models struct {
		Text         string `envconfig:"MODELS_TEXT" default:"gpt-4.1-mini,gpt-4o-mini,llama-3.3-70b"`
		PromptRefine string `envconfig:"MODELS_PROMPT_REFINE" default:"gpt-4o-mini,llama-3.3-70b"`
		URLSummarize string `envconfig:"MODELS_URL_SUMMARIZE" default:"gpt-4o-mini,llama-3.3-70b"`
		PerPlatform  bool   `envconfig:"MODELS_PER_PLATFORM_TEXT" default:"false"`
	} `envconfig:""`

	Extractor struct {
		Timeout time.Duration `envconfig:"EXTRACTOR_TIMEOUT" default:"30s"`
	} `envconfig:""`

	PGDSN      string `envconfig:"PG_DSN"`
	PGMaxConns int32  `envconfig:"PG_MAX_CONNS" default:"5"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	AMQPURL string `envconfig:"AMQP_URL"`

	Queues struct {
		Generation string `envconfig:"GENERATION_QUEUE_KEY" default:"generation_jobs"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// ModelConfig собирает неизменяемую таблицу моделей из конфига.
func (c AppConfig) ModelConfig() *domain.ModelConfig {
	return domain.NewModelConfig(map[domain.CompletionTask][]string{
		domain.TaskText:         splitModels(c.Models.Text),
		domain.TaskPromptRefine: splitModels(c.Models.PromptRefine),
		domain.TaskURLSummarize: splitModels(c.Models.URLSummarize),
	})
}

func splitModels(raw string) []string {
	parts := strings.Split(raw, ",")
	models := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		models = append(models, trimmed)
	}
	return models
}
