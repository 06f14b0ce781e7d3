package imagegen

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"smm-post-generator/internal/domain"
	"smm-post-generator/internal/infra/imageapi"
	"smm-post-generator/internal/infra/metrics"
)

type imageClient interface {
	Generate(ctx context.Context, req imageapi.GenerationRequest) (string, error)
}

// promptTextLimit — сколько символов текста поста попадает в промпт изображения.
const promptTextLimit = 200

// Порядок перебора качеств, когда качество не задано явно.
var qualityOrder = []domain.ImageQuality{domain.ImageQualityHigh, domain.ImageQualityMedium, domain.ImageQualityLow}

// Generator строит изображение поста с fallback по уровням качества и
// best-effort переносом результата в долговременное хранилище.
type Generator struct {
	client  imageClient
	model   string
	store   domain.ImageStore
	fetcher domain.ImageFetcher
	log     zerolog.Logger
}

var _ domain.ImageGenerator = (*Generator)(nil)

// New создаёт генератор изображений. store и fetcher могут быть nil —
// тогда перенос в хранилище отключён.
func New(client imageClient, model string, store domain.ImageStore, fetcher domain.ImageFetcher, logger zerolog.Logger) *Generator {
	return &Generator{client: client, model: model, store: store, fetcher: fetcher, log: logger}
}

// Generate возвращает изображение поста. Генерация падает только если
// все уровни качества завершились ошибкой; перенос в хранилище ошибок
// не порождает.
func (g *Generator) Generate(ctx context.Context, params domain.ImageParams) (domain.GeneratedImage, error) {
	prompt := BuildPrompt(params.TextContent, params.Category, params.Platform)

	var image domain.GeneratedImage
	if params.ReferenceImageURL != "" {
		// Референс пользователя используется как есть, без обращения к провайдеру.
		image = domain.GeneratedImage{
			ImageURL: params.ReferenceImageURL,
			Model:    "user-upload",
			Quality:  domain.ImageQualityUploaded,
			Prompt:   prompt,
		}
	} else {
		generated, err := g.generateWithFallback(ctx, prompt, params)
		if err != nil {
			return domain.GeneratedImage{}, err
		}
		image = generated
	}

	return g.persist(ctx, image, params)
}

func (g *Generator) generateWithFallback(ctx context.Context, prompt string, params domain.ImageParams) (domain.GeneratedImage, error) {
	qualities := qualityOrder
	if params.Quality != "" {
		qualities = []domain.ImageQuality{params.Quality}
	}
	size := domain.LimitsFor(params.Platform).ImageSize

	var lastErr error
	for _, quality := range qualities {
		if err := ctx.Err(); err != nil {
			return domain.GeneratedImage{}, err
		}
		url, err := g.client.Generate(ctx, imageapi.GenerationRequest{
			Model:   g.model,
			Prompt:  prompt,
			Size:    size,
			Quality: string(quality),
		})
		if err != nil {
			lastErr = err
			g.log.Warn().Err(err).Str("quality", string(quality)).Msg("генерация изображения не удалась, понижаем качество")
			continue
		}
		return domain.GeneratedImage{ImageURL: url, Model: g.model, Quality: quality, Prompt: prompt}, nil
	}
	return domain.GeneratedImage{}, fmt.Errorf("%w: %s", domain.ErrImageGeneration, lastErr)
}

// Разрешённые типы контента и их расширения в ключе хранилища.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// persist переносит внешнее изображение в долговременное хранилище.
// Для сгенерированных изображений сбой переноса не фатален: остаётся
// внешний URL. Недопустимый тип пользовательского референса — ошибка входа.
func (g *Generator) persist(ctx context.Context, image domain.GeneratedImage, params domain.ImageParams) (domain.GeneratedImage, error) {
	if params.PersistUserID == "" || g.store == nil || g.fetcher == nil {
		return image, nil
	}
	if g.store.IsInternalURL(image.ImageURL) {
		return image, nil
	}

	data, contentType, err := g.fetcher.Fetch(ctx, image.ImageURL)
	if err != nil {
		metrics.ImagePersistFailures.Inc()
		g.log.Warn().Err(err).Msg("не удалось выгрузить изображение для переноса, оставляем внешний URL")
		return image, nil
	}

	ext, ok := allowedImageTypes[normalizeContentType(contentType)]
	if !ok {
		if image.Quality == domain.ImageQualityUploaded {
			return domain.GeneratedImage{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedImageType, contentType)
		}
		metrics.ImagePersistFailures.Inc()
		g.log.Warn().Str("content_type", contentType).Msg("провайдер вернул недопустимый тип, оставляем внешний URL")
		return image, nil
	}

	key := buildStorageKey(params.PersistUserID, ext)
	internalURL, err := g.store.Upload(ctx, key, normalizeContentType(contentType), data)
	if err != nil {
		metrics.ImagePersistFailures.Inc()
		g.log.Warn().Err(err).Msg("загрузка в хранилище не удалась, оставляем внешний URL")
		return image, nil
	}

	image.ImageURL = internalURL
	return image, nil
}

// Ключ содержит случайный суффикс: загрузки одного пользователя не
// перетирают друг друга.
func buildStorageKey(userID, ext string) string {
	return path.Join("social-images", userID, uuid.NewString()+ext)
}

func normalizeContentType(ct string) string {
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = ct[:idx]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// Визуальные стили категорий для промпта изображения.
var categoryStyles = map[domain.Category]string{
	domain.CategoryTech:       "sleek futuristic technology scene, clean lines, blue and violet palette",
	domain.CategoryAI:         "abstract neural network visualization, glowing nodes, deep gradient background",
	domain.CategoryBusiness:   "modern office scene, confident professionals, warm natural light",
	domain.CategoryMotivation: "sunrise over a mountain summit, dramatic light, sense of achievement",
}

// BuildPrompt собирает описание изображения: визуальный стиль категории,
// подсказка размера платформы и начало текста поста.
func BuildPrompt(textContent string, category domain.Category, platform domain.Platform) string {
	style, ok := categoryStyles[category]
	if !ok {
		style = "clean minimalist editorial illustration"
	}
	limits := domain.LimitsFor(platform)

	excerpt := []rune(strings.TrimSpace(textContent))
	if len(excerpt) > promptTextLimit {
		excerpt = excerpt[:promptTextLimit]
	}

	var b strings.Builder
	b.WriteString(style)
	fmt.Fprintf(&b, ", composed for a %s post (%s)", platform, limits.ImageSize)
	if len(excerpt) > 0 {
		fmt.Fprintf(&b, ". The post says: %s", string(excerpt))
	}
	b.WriteString(". No text or watermarks in the image.")
	return b.String()
}

// Placeholder возвращает статичную заглушку, когда генерация изображения
// деградировала.
func Placeholder(category domain.Category) domain.GeneratedImage {
	label := string(category)
	if label == "" {
		label = "post"
	}
	return domain.GeneratedImage{
		ImageURL: fmt.Sprintf("https://placehold.co/1200x675/0f172a/ffffff?text=%s", label),
		Model:    "placeholder",
		Quality:  domain.ImageQualityPlaceholder,
	}
}
