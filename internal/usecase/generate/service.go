package generate

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"smm-post-generator/internal/adapters/imagegen"
	"smm-post-generator/internal/adapters/optimizer"
	"smm-post-generator/internal/adapters/textgen"
	"smm-post-generator/internal/domain"
	"smm-post-generator/internal/infra/metrics"
)

// enhanceThreshold — оценка overall, ниже которой запускается один
// проход улучшения текста.
const enhanceThreshold = 7.0

const sourceCacheTTL = time.Hour

// Service реализует конвейер генерации поста: извлечение источника,
// уплотнение промпта, генерация текста и изображения, оценка качества
// и приведение к ограничениям платформ.
//
// Политика отказов: фатальна только генерация текста; остальные стадии
// деградируют до fallback-значений, не роняя запрос.
type Service struct {
	extractor domain.SourceExtractor
	refiner   domain.PromptRefiner
	textGen   domain.TextGenerator
	imageGen  domain.ImageGenerator
	quality   domain.QualityChecker
	gateway   domain.ModelGateway
	records   domain.GenerationRepo
	cache     domain.Cache
	log       zerolog.Logger
}

var _ domain.GenerateService = (*Service)(nil)

// NewService создаёт оркестратор конвейера. records и cache опциональны.
func NewService(extractor domain.SourceExtractor, refiner domain.PromptRefiner, textGen domain.TextGenerator, imageGen domain.ImageGenerator, quality domain.QualityChecker, gateway domain.ModelGateway, records domain.GenerationRepo, cache domain.Cache, logger zerolog.Logger) *Service {
	return &Service{
		extractor: extractor,
		refiner:   refiner,
		textGen:   textGen,
		imageGen:  imageGen,
		quality:   quality,
		gateway:   gateway,
		records:   records,
		cache:     cache,
		log:       logger,
	}
}

type imageOutcome struct {
	image domain.GeneratedImage
	err   error
}

// Generate выполняет один проход конвейера.
func (s *Service) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return domain.GenerationResult{}, err
	}

	id := uuid.NewString()
	degraded := false

	basePrompt, title, source, sourceDegraded, err := s.buildBasePrompt(ctx, req)
	if err != nil {
		s.finish(ctx, id, req, domain.GenerationUsage{}, 0, domain.GenerationStatusFailed, err, start)
		return domain.GenerationResult{}, err
	}
	degraded = degraded || sourceDegraded

	rctx := domain.RefineContext{Category: req.Category, Platform: req.Platforms[0]}
	if source != nil {
		rctx.URLExcerpt = clipRunes(source.BodyText, 600)
	}
	refined := s.refiner.Refine(ctx, basePrompt, rctx)

	texts, usage, err := s.textGen.Generate(ctx, req.Category, req.Platforms, refined)
	if err != nil {
		s.finish(ctx, id, req, usage, 0, domain.GenerationStatusFailed, err, start)
		return domain.GenerationResult{}, err
	}

	// Изображение не зависит от оценки качества текста: генерируем его
	// параллельно со стадиями оценки, улучшения и оптимизации. Текст для
	// промпта снимается до запуска горутины: дальше тексты мутируют.
	imageText := texts[0].Content
	imageCh := make(chan imageOutcome, 1)
	go func() {
		image, imgErr := s.imageGen.Generate(ctx, domain.ImageParams{
			TextContent:       imageText,
			Category:          req.Category,
			Platform:          req.Platforms[0],
			ReferenceImageURL: req.ReferenceImageURL,
			PersistUserID:     req.CallerID,
		})
		imageCh <- imageOutcome{image: image, err: imgErr}
	}()

	aggregate := s.scoreAndEnhance(ctx, texts, req.Category)
	optimizeTexts(texts)

	out := <-imageCh
	image := out.image
	if out.err != nil {
		if errors.Is(out.err, domain.ErrUnsupportedImageType) {
			s.finish(ctx, id, req, usage, aggregate.Overall, domain.GenerationStatusFailed, out.err, start)
			return domain.GenerationResult{}, out.err
		}
		degraded = true
		s.log.Warn().Err(out.err).Msg("генерация изображения деградировала до заглушки")
		image = imagegen.Placeholder(req.Category)
	}

	if title == "" {
		title = deriveTitle(texts[0].Content)
	}

	status := domain.GenerationStatusOK
	if degraded {
		status = domain.GenerationStatusDegraded
	}
	rec := s.finish(ctx, id, req, usage, aggregate.Overall, status, nil, start)
	rec.ImageModel = image.Model
	s.saveRecord(ctx, rec)

	return domain.GenerationResult{
		ID:       id,
		Title:    title,
		Content:  texts,
		Image:    image,
		Category: req.Category,
		Lane:     req.Lane,
		Quality:  aggregate,
	}, nil
}

// buildBasePrompt выбирает источник базового промпта по lane запроса.
func (s *Service) buildBasePrompt(ctx context.Context, req domain.GenerationRequest) (prompt, title string, source *domain.ExtractedSource, degraded bool, err error) {
	switch req.Lane {
	case domain.LaneURL:
		src, err := s.extractSource(ctx, req.URL)
		if err != nil {
			return "", "", nil, false, err
		}
		summary, ok := s.summarizeSource(ctx, src)
		return buildArticlePrompt(src, summary), src.Title, &src, !ok, nil
	case domain.LaneCustom:
		if req.UserPrompt != "" {
			return req.UserPrompt, "", nil, false, nil
		}
		// Запрос только с референс-изображением: промпт по категории.
		return categoryPrompt(req.Category), "", nil, false, nil
	default:
		return categoryPrompt(req.Category), "", nil, false, nil
	}
}

// extractSource достаёт статью из кэша или извлекает заново.
func (s *Service) extractSource(ctx context.Context, url string) (domain.ExtractedSource, error) {
	key := sourceCacheKey(url)
	if s.cache != nil {
		if raw, err := s.cache.Get(key); err == nil && len(raw) > 0 {
			var src domain.ExtractedSource
			if err := json.Unmarshal(raw, &src); err == nil {
				return src, nil
			}
		}
	}

	stageStart := time.Now()
	src, err := s.extractor.Extract(ctx, url)
	metrics.ObserveStage("extract", stageStart, err)
	if err != nil {
		return domain.ExtractedSource{}, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(src); err == nil {
			if err := s.cache.Set(key, raw, sourceCacheTTL); err != nil {
				s.log.Warn().Err(err).Msg("кэширование источника не удалось")
			}
		}
	}
	return src, nil
}

// summarizeSource сжимает статью через шлюз. Отказ не фатален: второй
// возвращаемый флаг сообщает о деградации до сырого отрывка.
func (s *Service) summarizeSource(ctx context.Context, src domain.ExtractedSource) (string, bool) {
	completion, err := s.gateway.Complete(ctx, domain.TaskURLSummarize, []domain.PromptMessage{
		{Role: domain.RoleSystem, Content: "Summarize the article into 3-4 dense sentences keeping the concrete facts. Return only the summary."},
		{Role: domain.RoleUser, Content: fmt.Sprintf("Title: %s\n\n%s", src.Title, clipRunes(src.BodyText, 6000))},
	}, domain.CompletionOpts{
		Temperature:       0.3,
		MaxTokens:         300,
		AllowGracefulSkip: true,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("суммаризация статьи не удалась, используем сырой отрывок")
		return clipRunes(src.BodyText, 1200), false
	}
	if completion == nil {
		return clipRunes(src.BodyText, 1200), false
	}
	summary := strings.TrimSpace(completion.Content)
	if summary == "" {
		return clipRunes(src.BodyText, 1200), false
	}
	return summary, true
}

// scoreAndEnhance оценивает каждый уникальный контент и запускает не
// больше одного улучшения на контент при overall ниже порога.
func (s *Service) scoreAndEnhance(ctx context.Context, texts []domain.GeneratedText, category domain.Category) domain.QualityScore {
	type graded struct {
		content string
		score   domain.QualityScore
	}
	gradedByContent := make(map[string]graded)

	var aggregate domain.QualityScore
	for i := range texts {
		original := texts[i].Content
		g, ok := gradedByContent[original]
		if !ok {
			stageStart := time.Now()
			score := s.quality.Score(ctx, original, texts[i].Platform, category)
			metrics.ObserveStage("quality_score", stageStart, nil)

			content := original
			if score.Overall < enhanceThreshold {
				enhanced := s.quality.Enhance(ctx, original, texts[i].Platform, score)
				if strings.TrimSpace(enhanced) != "" {
					content = enhanced
				}
			}
			g = graded{content: content, score: score}
			gradedByContent[original] = g
		}
		texts[i].Content = g.content
		aggregate.Overall += g.score.Overall
		aggregate.Engagement += g.score.Engagement
		aggregate.Clarity += g.score.Clarity
		aggregate.Relevance += g.score.Relevance
		aggregate.PlatformOptimization += g.score.PlatformOptimization
		aggregate.Feedback = append(aggregate.Feedback, g.score.Feedback...)
		aggregate.Suggestions = append(aggregate.Suggestions, g.score.Suggestions...)
	}

	n := float64(len(texts))
	if n > 0 {
		aggregate.Overall /= n
		aggregate.Engagement /= n
		aggregate.Clarity /= n
		aggregate.Relevance /= n
		aggregate.PlatformOptimization /= n
	}
	return aggregate
}

// optimizeTexts приводит тексты к ограничениям платформ. Общий контент
// оптимизируется один раз под самую строгую из запрошенных платформ:
// записи платформ обязаны остаться посимвольно одинаковыми.
func optimizeTexts(texts []domain.GeneratedText) {
	if len(texts) == 0 {
		return
	}
	if sharedContent(texts) {
		content := optimizer.OptimizeFormat(texts[0].Content, strictestPlatform(texts))
		_, tags := textgen.ExtractHashtags(content)
		count := len([]rune(content))
		for i := range texts {
			texts[i].Content = content
			texts[i].CharacterCount = count
			texts[i].Hashtags = tags
		}
		return
	}
	for i := range texts {
		content := optimizer.OptimizeFormat(texts[i].Content, texts[i].Platform)
		_, tags := textgen.ExtractHashtags(content)
		texts[i].Content = content
		texts[i].CharacterCount = len([]rune(content))
		texts[i].Hashtags = tags
	}
}

func sharedContent(texts []domain.GeneratedText) bool {
	for i := 1; i < len(texts); i++ {
		if texts[i].Content != texts[0].Content {
			return false
		}
	}
	return true
}

func strictestPlatform(texts []domain.GeneratedText) domain.Platform {
	strictest := texts[0].Platform
	minChars := domain.LimitsFor(strictest).MaxChars
	for _, t := range texts[1:] {
		if limits := domain.LimitsFor(t.Platform); limits.MaxChars < minChars {
			minChars = limits.MaxChars
			strictest = t.Platform
		}
	}
	return strictest
}

// finish записывает метрики прохода и собирает аудит-запись. Запись
// сохраняется сразу для ошибочных исходов; успешный исход дополняется
// моделью изображения и сохраняется вызывающей стороной.
func (s *Service) finish(ctx context.Context, id string, req domain.GenerationRequest, usage domain.GenerationUsage, overall float64, status domain.GenerationStatus, cause error, start time.Time) domain.GenerationRecord {
	metrics.GenerationRequestsTotal.WithLabelValues(string(req.Lane), string(req.Category), string(status)).Inc()
	metrics.GenerationDuration.WithLabelValues(string(req.Lane)).Observe(time.Since(start).Seconds())

	rec := domain.GenerationRecord{
		ID:               id,
		CallerID:         req.CallerID,
		Lane:             req.Lane,
		Category:         req.Category,
		Platforms:        req.Platforms,
		TextModel:        usage.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		OverallScore:     overall,
		Status:           status,
		DurationMS:       time.Since(start).Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}
	if cause != nil {
		rec.ErrorReason = cause.Error()
		s.saveRecord(ctx, rec)
	}
	return rec
}

func (s *Service) saveRecord(ctx context.Context, rec domain.GenerationRecord) {
	if s.records == nil {
		return
	}
	if err := s.records.SaveRecord(ctx, rec); err != nil {
		s.log.Warn().Err(err).Str("id", rec.ID).Msg("сохранение аудит-записи не удалось")
	}
}

var categoryPrompts = map[domain.Category]string{
	domain.CategoryTech:       "Write an engaging post about a current trend in technology that practitioners actually feel in their daily work.",
	domain.CategoryAI:         "Write an engaging post about a recent development in artificial intelligence and what it changes for regular users.",
	domain.CategoryBusiness:   "Write an engaging post with one concrete, actionable business insight for founders and operators.",
	domain.CategoryMotivation: "Write an uplifting post with a specific, non-generic thought about growth and perseverance.",
}

func categoryPrompt(category domain.Category) string {
	if prompt, ok := categoryPrompts[category]; ok {
		return prompt
	}
	return "Write an engaging social media post on a broadly interesting topic."
}

func buildArticlePrompt(src domain.ExtractedSource, summary string) string {
	var b strings.Builder
	b.WriteString("Write a social media post that makes people want to read this article.\n")
	if src.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", src.Title)
	}
	if src.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n", src.Author)
	}
	b.WriteString("\nWhat the article says:\n")
	b.WriteString(summary)
	return b.String()
}

// deriveTitle берёт первое предложение контента как заголовок результата.
func deriveTitle(content string) string {
	content = strings.TrimSpace(content)
	for i, r := range content {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			content = content[:i]
			break
		}
	}
	return clipRunes(strings.TrimSpace(content), 80)
}

func sourceCacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return fmt.Sprintf("source:%x", sum[:12])
}

func clipRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
