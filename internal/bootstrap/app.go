package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"coursetutor/internal/ai"
	"coursetutor/internal/app"
	"coursetutor/internal/blob"
	"coursetutor/internal/cache"
	"coursetutor/internal/config"
	mysqlClient "coursetutor/internal/platform/mysql"
	rabbitmqClient "coursetutor/internal/platform/rabbitmq"
	redisClient "coursetutor/internal/platform/redis"
	"coursetutor/internal/ranking"
	"coursetutor/internal/repository"
	"coursetutor/internal/transport/http/handler"
	"coursetutor/internal/worker"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Chunks       *repository.ChunkRepository
	Ingestion    *app.IngestionService
	Tutor        *app.AnswerService
	Companion    *app.AnswerService
	Publisher    *rabbitmqClient.JobPublisher
	IngestWorker *worker.IngestWorker

	StartedAt time.Time
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, StartedAt: time.Now()}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN(), cfg.App.Debug)
	if err != nil {
		return nil, err
	}
	a.MySQL = mysqlDB
	if err := mysqlClient.Migrate(mysqlDB); err != nil {
		_ = a.Close()
		return nil, err
	}

	redisCli, err := redisClient.New(ctx, redisClient.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Redis = redisCli

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.IngestQueue)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.MQConn = mqConn

	blobs, err := blob.NewDiskStore(cfg.Storage.Root)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	embedder, completer, err := ai.NewProviders(cfg.ProviderConfig())
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	retrieval := cfg.RetrievalSettings()
	a.Chunks = repository.NewChunkRepository(mysqlDB)
	contentRepo := repository.NewContentRepository(mysqlDB)
	a.Ingestion = app.NewIngestionService(contentRepo, blobs, a.Chunks, embedder, retrieval, logger)

	deps := app.AnswerDeps{
		Chunks:    a.Chunks,
		Embedder:  embedder,
		Completer: completer,
		Ranker:    ranking.NewLinearRanker(),
		Cache:     cache.NewEmbeddingCache(redisCli, cfg.LLM.EmbeddingModel, cfg.EmbeddingCacheTTL()),
		Logger:    logger,
	}
	a.Tutor = app.NewTutorService(deps, retrieval)
	a.Companion = app.NewStudyCompanionService(deps, retrieval)

	a.Publisher = rabbitmqClient.NewJobPublisher(mqConn, cfg.RabbitMQ.IngestQueue)
	a.IngestWorker = worker.NewIngestWorker(mqConn, a.Ingestion, cfg.RabbitMQ.IngestQueue, retrieval.CourseParallelism, logger)
	if err := a.IngestWorker.Start(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("start ingest worker failed: %w", err)
	}

	logger.Info("application ready",
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("embedding_model", cfg.LLM.EmbeddingModel),
		zap.Int("chunk_size", retrieval.ChunkSize),
		zap.Int("chunk_overlap", retrieval.ChunkOverlap),
	)
	return a, nil
}

// HealthChecks lists the dependencies reported by /healthz.
func (a *App) HealthChecks() map[string]handler.Check {
	return map[string]handler.Check{
		"mysql": func(ctx context.Context) error {
			return mysqlClient.Ping(ctx, a.MySQL)
		},
		"redis": func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		},
		"rabbitmq": func(context.Context) error {
			if a.MQConn == nil || a.MQConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		},
	}
}

func (a *App) Close() error {
	var closeErr error
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			closeErr = errors.Join(closeErr, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = errors.Join(closeErr, err)
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = errors.Join(closeErr, err)
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = errors.Join(closeErr, err)
			}
		}
	}
	return closeErr
}
