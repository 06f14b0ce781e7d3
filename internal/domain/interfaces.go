package domain

import (
	"context"
	"time"
)

// PromptMessage — одно сообщение диалога с текстовой моделью.
type PromptMessage struct {
	Role    string
	Content string
}

// Роли сообщений.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// CompletionOpts задаёт параметры обращения к шлюзу моделей.
type CompletionOpts struct {
	Temperature       float64
	MaxTokens         int
	JSONObject        bool
	AllowGracefulSkip bool
}

// Completion — ответ выигравшей модели с её идентичностью.
type Completion struct {
	Content          string
	ModelUsed        string
	PromptTokens     int
	CompletionTokens int
}

// ModelGateway перебирает модели задачи по порядку до первого успеха.
// Возврат (nil, nil) — graceful skip: ни одна модель не ответила,
// но все отказы были rate-limit и вызывающая сторона разрешила пропуск.
type ModelGateway interface {
	Complete(ctx context.Context, task CompletionTask, messages []PromptMessage, opts CompletionOpts) (*Completion, error)
}

// SourceExtractor выгружает и очищает внешнюю статью.
type SourceExtractor interface {
	Extract(ctx context.Context, url string) (ExtractedSource, error)
}

// RefineContext — необязательный контекст уплотнения промпта.
type RefineContext struct {
	Category   Category
	Platform   Platform
	URLExcerpt string
}

// PromptRefiner уплотняет промпт. Никогда не возвращает ошибку:
// при любом сбое отдаёт исходный текст без изменений.
type PromptRefiner interface {
	Refine(ctx context.Context, raw string, rctx RefineContext) string
}

// GenerationUsage — идентичность выигравшей модели и расход токенов,
// нужна для аудита прохода.
type GenerationUsage struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// TextGenerator строит текст поста по базовому промпту.
type TextGenerator interface {
	Generate(ctx context.Context, category Category, platforms []Platform, basePrompt string) ([]GeneratedText, GenerationUsage, error)
}

// ImageParams — параметры генерации изображения.
type ImageParams struct {
	TextContent       string
	Category          Category
	Platform          Platform
	Quality           ImageQuality
	ReferenceImageURL string
	PersistUserID     string
}

// ImageGenerator строит изображение поста с fallback по уровням качества.
type ImageGenerator interface {
	Generate(ctx context.Context, params ImageParams) (GeneratedImage, error)
}

// QualityChecker оценивает текст и при необходимости переписывает его.
type QualityChecker interface {
	Score(ctx context.Context, content string, platform Platform, category Category) QualityScore
	Enhance(ctx context.Context, content string, platform Platform, score QualityScore) string
}

// GenerateService — контракт всего конвейера.
type GenerateService interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// GenerationQueue — очередь отложенных задач генерации.
type GenerationQueue interface {
	Enqueue(ctx context.Context, job GenerationJob) error
	Pop(ctx context.Context) (GenerationJob, error)
}

// GenerationRepo сохраняет и возвращает аудит-записи конвейера.
type GenerationRepo interface {
	SaveRecord(ctx context.Context, rec GenerationRecord) error
	GetRecord(ctx context.Context, id string) (GenerationRecord, error)
}

// ImageStore — долговременное объектное хранилище изображений.
type ImageStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	IsInternalURL(url string) bool
}

// ImageFetcher выгружает байты внешнего изображения.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, contentType string, err error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
