package app

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nutriadvisor/internal/clients"
	"nutriadvisor/internal/config"
	"nutriadvisor/internal/db"
	"nutriadvisor/internal/queue"
	"nutriadvisor/internal/redisconn"
	"nutriadvisor/internal/repository"
	"nutriadvisor/internal/service"
	"nutriadvisor/internal/worker"
)

// WorkerApp wires the queue worker dependencies.
type WorkerApp struct {
	runner *worker.Runner
	db     *sql.DB
	redis  *redis.Client
	logger *zap.Logger
}

// NewWorker constructs the worker graph.
func NewWorker(cfg *config.Config, logger *zap.Logger) (*WorkerApp, error) {
	sqlDB, err := db.NewPostgres(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	redisClient, err := redisconn.NewClient(cfg.Redis.Addr, cfg.Redis.Password)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	consumer := queue.NewConsumer(redisClient, queue.ConsumerConfig{
		Stream:           cfg.Queue.Stream,
		Group:            cfg.Queue.Group,
		DeadLetterStream: cfg.Queue.DeadLetterStream,
		Block:            cfg.QueueBlock(),
		MaxAttempts:      cfg.Queue.MaxAttempts,
	})
	if err := consumer.EnsureGroup(context.Background()); err != nil {
		redisClient.Close()
		sqlDB.Close()
		return nil, err
	}

	ledgerRepo := repository.NewLedgerRepository(sqlDB)
	predictionRepo := repository.NewPredictionRepository(sqlDB)
	modelRepo := repository.NewModelRepository(sqlDB)

	balanceService := service.NewBalanceService(ledgerRepo, logger)
	predictionService := service.NewPredictionService(predictionRepo, logger)

	inferencer := clients.NewRouter(
		clients.NewOllamaClient(cfg.Inference.OllamaURL, cfg.InferenceTimeout(), logger),
		clients.NewOpenAIClient(cfg.Inference.OpenAIBaseURL, cfg.Inference.OpenAIAPIKey, cfg.InferenceTimeout(), logger),
	)

	advisorService := service.NewAdvisorService(
		modelRepo,
		balanceService,
		predictionService,
		nil, // the worker executes tasks, it never re-enqueues them
		inferencer,
		cfg.InferenceTimeout(),
		logger,
	)

	runner := worker.NewRunner(consumer, advisorService, cfg.StaleAfter(), cfg.SweepInterval(), logger)

	return &WorkerApp{
		runner: runner,
		db:     sqlDB,
		redis:  redisClient,
		logger: logger,
	}, nil
}

// Run consumes tasks until ctx is cancelled.
func (a *WorkerApp) Run(ctx context.Context) error {
	return a.runner.Run(ctx)
}

// Close releases resources.
func (a *WorkerApp) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
