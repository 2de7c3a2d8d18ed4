package app

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nutriadvisor/internal/clients"
	"nutriadvisor/internal/config"
	"nutriadvisor/internal/db"
	httpserver "nutriadvisor/internal/http"
	"nutriadvisor/internal/http/handlers"
	"nutriadvisor/internal/queue"
	"nutriadvisor/internal/redisconn"
	"nutriadvisor/internal/repository"
	"nutriadvisor/internal/service"
)

// App wires the API server dependencies.
type App struct {
	server *httpserver.Server
	db     *sql.DB
	redis  *redis.Client
	logger *zap.Logger
}

// New constructs the application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := db.NewPostgres(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	ledgerRepo := repository.NewLedgerRepository(sqlDB)
	predictionRepo := repository.NewPredictionRepository(sqlDB)
	modelRepo := repository.NewModelRepository(sqlDB)

	balanceService := service.NewBalanceService(ledgerRepo, logger)
	predictionService := service.NewPredictionService(predictionRepo, logger)

	var (
		redisClient *redis.Client
		tasks       service.TaskQueue
	)
	if cfg.Queue.Enabled {
		redisClient, err = redisconn.NewClient(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		tasks = queue.NewPublisher(redisClient, cfg.Queue.Stream)
	}

	inferencer := clients.NewRouter(
		clients.NewOllamaClient(cfg.Inference.OllamaURL, cfg.InferenceTimeout(), logger),
		clients.NewOpenAIClient(cfg.Inference.OpenAIBaseURL, cfg.Inference.OpenAIAPIKey, cfg.InferenceTimeout(), logger),
	)

	advisorService := service.NewAdvisorService(
		modelRepo,
		balanceService,
		predictionService,
		tasks,
		inferencer,
		cfg.InferenceTimeout(),
		logger,
	)

	routes := httpserver.Routes{
		Health:        handlers.NewHealthHandler(),
		Balance:       handlers.NewBalanceHandler(balanceService),
		TopUp:         handlers.NewTopUpHandler(balanceService, logger),
		Adjust:        handlers.NewAdjustHandler(balanceService, logger),
		Transactions:  handlers.NewTransactionsHandler(balanceService),
		Models:        handlers.NewModelsHandler(modelRepo),
		SendMessage:   handlers.NewChatHandler(advisorService, logger),
		Predictions:   handlers.NewPredictionsHandler(predictionService),
		PredictionGet: handlers.NewPredictionGetHandler(predictionService),
	}

	router := httpserver.NewRouter(routes)
	server := httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	return &App{
		server: server,
		db:     sqlDB,
		redis:  redisClient,
		logger: logger,
	}, nil
}

// Run starts the HTTP server.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
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
