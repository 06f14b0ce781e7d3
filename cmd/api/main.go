package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"smm-post-generator/internal/adapters/extractor"
	"smm-post-generator/internal/adapters/gateway"
	"smm-post-generator/internal/adapters/imagegen"
	"smm-post-generator/internal/adapters/quality"
	"smm-post-generator/internal/adapters/refiner"
	"smm-post-generator/internal/adapters/repo"
	"smm-post-generator/internal/adapters/textgen"
	"smm-post-generator/internal/domain"
	"smm-post-generator/internal/infra/cache"
	"smm-post-generator/internal/infra/config"
	"smm-post-generator/internal/infra/db"
	httpinfra "smm-post-generator/internal/infra/http"
	"smm-post-generator/internal/infra/imageapi"
	loginfra "smm-post-generator/internal/infra/log"
	"smm-post-generator/internal/infra/metrics"
	openaiinfra "smm-post-generator/internal/infra/openai"
	"smm-post-generator/internal/infra/queue"
	"smm-post-generator/internal/infra/storage"
	generateusecase "smm-post-generator/internal/usecase/generate"
)

func main() {
	cfg := config.Load()
	log.Logger = loginfra.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	chatClient := openaiinfra.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
	modelGateway := gateway.New(chatClient, cfg.ModelConfig(), log.With().Str("component", "gateway").Logger())

	imageClient := imageapi.NewClient(cfg.ImageAPI.APIKey, cfg.ImageAPI.BaseURL, cfg.ImageAPI.Timeout)
	var imageStore domain.ImageStore
	if cfg.Storage.BaseURL != "" {
		imageStore = storage.NewClient(cfg.Storage.BaseURL, cfg.Storage.PublicBaseURL, cfg.Storage.AccessToken, cfg.Storage.Timeout)
	}

	var sourceCache domain.Cache
	var generationQueue domain.GenerationQueue
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		sourceCache = cache.NewRedis(redisClient)
		generationQueue = queue.NewRedisGenerationQueue(redisClient, cfg.Queues.Generation)
	}
	if cfg.AMQPURL != "" {
		rabbit, err := queue.NewRabbitGenerationQueue(cfg.AMQPURL, cfg.Queues.Generation)
		if err != nil {
			log.Fatal().Err(err).Msg("api: нет подключения к RabbitMQ")
		}
		defer rabbit.Close()
		generationQueue = rabbit
	}

	var records domain.GenerationRepo
	if cfg.PGDSN != "" {
		pool, err := db.Connect(cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			log.Fatal().Err(err).Msg("api: нет подключения к БД")
		}
		defer pool.Close()
		records = repo.NewPostgres(pool)
	}

	service := generateusecase.NewService(
		extractor.New(nil, cfg.Extractor.Timeout, log.With().Str("component", "extractor").Logger()),
		refiner.New(modelGateway, 0, log.With().Str("component", "refiner").Logger()),
		textgen.New(modelGateway, cfg.Models.PerPlatform, log.With().Str("component", "textgen").Logger()),
		imagegen.New(imageClient, cfg.ImageAPI.Model, imageStore, imagegen.NewHTTPFetcher(0), log.With().Str("component", "imagegen").Logger()),
		quality.New(modelGateway, 0, log.With().Str("component", "quality").Logger()),
		modelGateway,
		records,
		sourceCache,
		log.With().Str("component", "generate").Logger(),
	)

	server := httpinfra.NewServer(log.With().Str("component", "http").Logger())
	server.Router.Route("/api/v1/posts", func(r chi.Router) {
		r.Post("/generate", func(w http.ResponseWriter, req *http.Request) {
			defer req.Body.Close()
			genReq, ok := decodeRequest(w, req)
			if !ok {
				return
			}
			result, err := service.Generate(req.Context(), genReq)
			if err != nil {
				writeGenerationError(w, err)
				return
			}
			writeJSON(w, result)
		})

		r.Post("/generate/async", func(w http.ResponseWriter, req *http.Request) {
			defer req.Body.Close()
			if generationQueue == nil {
				writeError(w, http.StatusServiceUnavailable, "очередь генерации не настроена")
				return
			}
			genReq, ok := decodeRequest(w, req)
			if !ok {
				return
			}
			if err := genReq.Validate(); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			job := domain.GenerationJob{ID: uuid.NewString(), Request: genReq, EnqueuedAt: time.Now().UTC()}
			if err := generationQueue.Enqueue(req.Context(), job); err != nil {
				log.Error().Err(err).Msg("api: постановка задачи в очередь")
				writeError(w, http.StatusInternalServerError, "не удалось поставить задачу в очередь")
				return
			}
			w.WriteHeader(http.StatusAccepted)
			writeJSON(w, map[string]string{"job_id": job.ID})
		})

		r.Get("/generations/{id}", func(w http.ResponseWriter, req *http.Request) {
			if records == nil {
				writeError(w, http.StatusNotFound, "аудит генераций не настроен")
				return
			}
			rec, err := records.GetRecord(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				if errors.Is(err, domain.ErrRecordNotFound) {
					writeError(w, http.StatusNotFound, "запись не найдена")
					return
				}
				log.Error().Err(err).Msg("api: чтение записи генерации")
				writeError(w, http.StatusInternalServerError, "не удалось прочитать запись")
				return
			}
			writeJSON(w, rec)
		})
	})

	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), ":9090")
	go func() {
		log.Info().Int("port", cfg.Port).Msg("api: старт")
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

// Личность вызывающего приходит заголовком: авторизация живёт выше по
// стеку, конвейер доверяет своему вызывающему.
func decodeRequest(w http.ResponseWriter, req *http.Request) (domain.GenerationRequest, bool) {
	var genReq domain.GenerationRequest
	if err := json.NewDecoder(req.Body).Decode(&genReq); err != nil {
		writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return domain.GenerationRequest{}, false
	}
	if callerID := req.Header.Get("X-Caller-ID"); callerID != "" {
		genReq.CallerID = callerID
	}
	return genReq, true
}

func writeGenerationError(w http.ResponseWriter, err error) {
	var allFailed *domain.AllModelsFailedError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrNoPlatforms),
		errors.Is(err, domain.ErrInvalidURL),
		errors.Is(err, domain.ErrUnsupportedImageType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrFetchTimeout),
		errors.Is(err, domain.ErrFetchFailed),
		errors.Is(err, domain.ErrEmptyDocument):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &allFailed):
		writeError(w, http.StatusServiceUnavailable, "генерация временно недоступна, попробуйте ещё раз")
	default:
		log.Error().Err(err).Msg("api: генерация поста")
		writeError(w, http.StatusInternalServerError, "внутренняя ошибка генерации")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}
