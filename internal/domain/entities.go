package domain

import "time"

// Lane описывает режим входа запроса генерации.
type Lane string

const (
	// LaneAuto генерация по категории.
	LaneAuto Lane = "auto"
	// LaneURL генерация по внешней статье.
	LaneURL Lane = "url"
	// LaneCustom генерация по свободному промпту пользователя.
	LaneCustom Lane = "custom"
)

// Category описывает тематику поста.
type Category string

const (
	CategoryTech       Category = "tech"
	CategoryAI         Category = "ai"
	CategoryBusiness   Category = "business"
	CategoryMotivation Category = "motivation"
)

// GenerationRequest описывает один запрос на генерацию поста.
// Объект неизменяем и живёт только в рамках одного прохода конвейера.
type GenerationRequest struct {
	Lane              Lane              `json:"lane"`
	Category          Category          `json:"category,omitempty"`
	Platforms         []Platform        `json:"platforms"`
	URL               string            `json:"url,omitempty"`
	UserPrompt        string            `json:"user_prompt,omitempty"`
	ReferenceImageURL string            `json:"reference_image_url,omitempty"`
	CallerID          string            `json:"caller_id,omitempty"`
}

// Validate проверяет инварианты запроса до запуска конвейера.
func (r GenerationRequest) Validate() error {
	if len(r.Platforms) == 0 {
		return ErrNoPlatforms
	}
	switch r.Lane {
	case LaneAuto:
		return nil
	case LaneURL:
		if r.URL == "" {
			return ErrInvalidRequest
		}
		return nil
	case LaneCustom:
		if r.UserPrompt == "" && r.ReferenceImageURL == "" {
			return ErrInvalidRequest
		}
		return nil
	default:
		return ErrInvalidRequest
	}
}

// ExtractedSource содержит очищенный текст и метаданные внешней статьи.
type ExtractedSource struct {
	Title        string
	BodyText     string
	Description  string
	LeadImageURL string
	Author       string
	PublishedAt  *time.Time
}

// GeneratedText содержит итоговый текст поста для одной платформы.
type GeneratedText struct {
	Platform       Platform `json:"platform"`
	Content        string   `json:"content"`
	CharacterCount int      `json:"character_count"`
	Hashtags       []string `json:"hashtags"`
}

// QualityScore содержит оценку текста по рубрике 0..10.
type QualityScore struct {
	Overall              float64  `json:"overall"`
	Engagement           float64  `json:"engagement"`
	Clarity              float64  `json:"clarity"`
	Relevance            float64  `json:"relevance"`
	PlatformOptimization float64  `json:"platform_optimization"`
	Feedback             []string `json:"feedback,omitempty"`
	Suggestions          []string `json:"suggestions,omitempty"`
}

// ImageQuality описывает уровень качества сгенерированного изображения.
type ImageQuality string

const (
	ImageQualityLow         ImageQuality = "low"
	ImageQualityMedium      ImageQuality = "medium"
	ImageQualityHigh        ImageQuality = "high"
	ImageQualityUploaded    ImageQuality = "uploaded"
	ImageQualityPlaceholder ImageQuality = "placeholder"
)

// GeneratedImage содержит результат генерации изображения.
type GeneratedImage struct {
	ImageURL string       `json:"image_url"`
	Model    string       `json:"model"`
	Quality  ImageQuality `json:"quality"`
	Prompt   string       `json:"prompt"`
}

// GenerationResult — итоговый артефакт конвейера, после возврата
// принадлежит вызывающей стороне целиком.
type GenerationResult struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Content  []GeneratedText `json:"content"`
	Image    GeneratedImage  `json:"image"`
	Category Category        `json:"category"`
	Lane     Lane            `json:"lane"`
	Quality  QualityScore    `json:"quality_score"`
}

// GenerationJob описывает отложенную задачу генерации в очереди.
type GenerationJob struct {
	ID         string            `json:"id"`
	Request    GenerationRequest `json:"request"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

// GenerationStatus описывает итоговый статус прохода конвейера.
type GenerationStatus string

const (
	// GenerationStatusOK все стадии отработали штатно.
	GenerationStatusOK GenerationStatus = "ok"
	// GenerationStatusDegraded часть стадий подставила fallback-значения.
	GenerationStatusDegraded GenerationStatus = "degraded"
	// GenerationStatusFailed генерация текста завершилась фатально.
	GenerationStatusFailed GenerationStatus = "failed"
)

// GenerationRecord — аудит-запись одного прохода конвейера.
type GenerationRecord struct {
	ID               string
	CallerID         string
	Lane             Lane
	Category         Category
	Platforms        []Platform
	TextModel        string
	ImageModel       string
	PromptTokens     int
	CompletionTokens int
	OverallScore     float64
	Status           GenerationStatus
	ErrorReason      string
	DurationMS       int64
	CreatedAt        time.Time
}
