package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

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
	"smm-post-generator/internal/infra/imageapi"
	loginfra "smm-post-generator/internal/infra/log"
	"smm-post-generator/internal/infra/metrics"
	openaiinfra "smm-post-generator/internal/infra/openai"
	"smm-post-generator/internal/infra/queue"
	"smm-post-generator/internal/infra/storage"
	generateusecase "smm-post-generator/internal/usecase/generate"
)

// jobTimeout ограничивает один проход конвейера в воркере.
const jobTimeout = 5 * time.Minute

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
			log.Fatal().Err(err).Msg("worker: нет подключения к RabbitMQ")
		}
		defer rabbit.Close()
		generationQueue = rabbit
	}
	if generationQueue == nil {
		log.Fatal().Msg("worker: не настроена ни одна очередь задач")
	}

	var records domain.GenerationRepo
	if cfg.PGDSN != "" {
		pool, err := db.Connect(cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			log.Fatal().Err(err).Msg("worker: нет подключения к БД")
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

	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), ":9091")
	log.Info().Str("queue", cfg.Queues.Generation).Msg("worker: старт")

	for {
		job, err := generationQueue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info().Msg("worker: остановка")
				return
			}
			log.Error().Err(err).Msg("worker: чтение очереди")
			time.Sleep(time.Second)
			continue
		}
		processJob(ctx, service, sourceCache, job)
	}
}

// processJob выполняет одну задачу. Повторная доставка той же задачи
// гасится через Once-ключ в кэше.
func processJob(ctx context.Context, service domain.GenerateService, idempotency domain.Cache, job domain.GenerationJob) {
	run := func() error {
		jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
		defer cancel()

		result, err := service.Generate(jobCtx, job.Request)
		if err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("worker: генерация не удалась")
			return err
		}
		log.Info().
			Str("job_id", job.ID).
			Str("generation_id", result.ID).
			Str("lane", string(result.Lane)).
			Int("platforms", len(result.Content)).
			Msg("worker: генерация завершена")
		return nil
	}

	if idempotency == nil {
		_ = run()
		return
	}
	if err := idempotency.Once("genjob:"+job.ID, 24*time.Hour, run); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("worker: задача завершилась ошибкой")
	}
}
