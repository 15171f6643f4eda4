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

	"finrag/internal/ai"
	"finrag/internal/answer"
	appsvc "finrag/internal/app"
	"finrag/internal/cache"
	"finrag/internal/config"
	"finrag/internal/embedding"
	"finrag/internal/logging"
	"finrag/internal/metrics"
	"finrag/internal/migrations"
	postgresClient "finrag/internal/platform/postgres"
	rabbitmqClient "finrag/internal/platform/rabbitmq"
	redisClient "finrag/internal/platform/redis"
	"finrag/internal/repository"
	"finrag/internal/retrieval"
)

// App owns every long-lived resource of the server. Nothing is created
// lazily; Close releases all of it.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *gorm.DB
	Redis   *redis.Client
	MQConn  *amqp.Connection
	Metrics *metrics.Metrics

	Embedder  *embedding.Adapter
	Documents *appsvc.DocumentService
	Search    *appsvc.SearchService

	publisher *rabbitmqClient.QueryLogPublisher
	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	db, err := postgresClient.New(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := migrations.Run(db, migrations.Options{Dimension: cfg.Embedding.Dimension}); err != nil {
			return nil, fmt.Errorf("run migrations failed: %w", err)
		}
	}

	var redisCli *redis.Client
	if cfg.Redis.Enabled {
		redisCli, err = redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
	}

	var mqConn *amqp.Connection
	if cfg.RabbitMQ.Enabled {
		mqConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			if redisCli != nil {
				_ = redisCli.Close()
			}
			return nil, err
		}
	}

	return Wire(cfg, logger, db, redisCli, mqConn)
}

// Wire builds the services on top of already opened connections. redisCli
// and mqConn may be nil, which disables the query embedding cache and routes
// search history straight to the database.
func Wire(cfg *config.Config, logger *zap.Logger, db *gorm.DB, redisCli *redis.Client, mqConn *amqp.Connection) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := metrics.New()

	backends, err := embedding.BuildBackends(cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("build embedding backends failed: %w", err)
	}
	opts := []embedding.Option{
		embedding.WithLogger(logger.Named("embedding")),
		embedding.WithObserver(m),
	}
	if cfg.Embedding.TimeoutSeconds > 0 {
		opts = append(opts, embedding.WithTimeout(time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second))
	}
	if redisCli != nil {
		ttl := time.Duration(cfg.Redis.QueryCacheTTLSeconds) * time.Second
		opts = append(opts, embedding.WithCache(cache.NewEmbeddingCache(redisCli, ttl)))
	}
	embedder, err := embedding.NewAdapter(cfg.Embedding.Dimension, backends, opts...)
	if err != nil {
		return nil, err
	}
	if len(backends) == 0 {
		logger.Warn("no embedding backend available, vector search will degrade to lexical")
	}

	docRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	statusRepo := repository.NewStatusRepository(db)
	searchLogRepo := repository.NewSearchLogRepository(db)

	documents := appsvc.NewDocumentService(docRepo, chunkRepo, statusRepo, embedder, m, appsvc.DocumentOptions{
		ChunkSize:      cfg.Chunking.Size,
		ChunkOverlap:   cfg.Chunking.Overlap,
		MaxUploadBytes: cfg.App.MaxUploadBytes,
		Concurrency:    cfg.Embedding.Concurrency,
		BatchSize:      cfg.Embedding.BatchSize,
		IngestTimeout:  cfg.IngestTimeout(),
	}, logger.Named("documents"))

	engine := retrieval.NewEngine(chunkRepo, embedder, docRepo, retrieval.Options{
		DefaultMode:         retrieval.Mode(cfg.Retrieval.DefaultMode),
		DefaultLimit:        cfg.Retrieval.DefaultLimit,
		MaxLimit:            cfg.Retrieval.MaxLimit,
		Strategy:            retrieval.Strategy(cfg.Retrieval.HybridStrategy),
		VectorWeight:        cfg.Retrieval.VectorWeight,
		LexicalWeight:       cfg.Retrieval.LexicalWeight,
		RRFK:                cfg.Retrieval.RRFK,
		CandidateMultiplier: cfg.Retrieval.CandidateMultiplier,
	}, logger.Named("retrieval"))

	var chat answer.ChatCompleter
	if cfg.ChatEnabled() {
		chat = ai.NewOpenAICompatibleClient(ai.ChatConfig{
			BaseURL:       cfg.Chat.BaseURL,
			APIKey:        cfg.Chat.APIKey,
			Model:         cfg.Chat.Model,
			Temperature:   cfg.Chat.Temperature,
			Timeout:       time.Duration(cfg.Chat.TimeoutSeconds) * time.Second,
			MaxRetries:    1,
			RatePerSecond: cfg.Embedding.RateLimitPerSecond,
		})
	}
	synthesizer := answer.NewSynthesizer(chat, cfg.Chat.MaxContextTokens, logger.Named("answer"))

	var (
		queryLog  appsvc.QueryLogger = searchLogRepo
		publisher *rabbitmqClient.QueryLogPublisher
	)
	if mqConn != nil {
		publisher = rabbitmqClient.NewQueryLogPublisher(mqConn, cfg.RabbitMQ.QueryLogQueue)
		queryLog = publisher
	}
	search := appsvc.NewSearchService(engine, synthesizer, queryLog, m, logger.Named("search"))

	return &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Redis:     redisCli,
		MQConn:    mqConn,
		Metrics:   m,
		Embedder:  embedder,
		Documents: documents,
		Search:    search,
		publisher: publisher,
		StartedAt: time.Now(),
	}, nil
}

func (a *App) Close() error {
	var errs []error
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Embedder != nil {
		if err := a.Embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}
