package setup

import (
	"context"
	"log"

	"github.com/daminow/chatwarden/internal/database"
	"github.com/daminow/chatwarden/internal/logging"
	"github.com/daminow/chatwarden/internal/redis"
	"github.com/daminow/chatwarden/internal/setup/config"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config   // Application configuration
	ConfigDir    string           // Directory the configuration was loaded from
	RuleList     *config.RuleList // Keyword lists for the rule engine
	Logger       *zap.Logger      // Main application logger
	DBLogger     *zap.Logger      // Database-specific logger
	DB           database.Client  // Database connection pool
	RedisManager *redis.Manager   // Redis connection manager
	StatusClient rueidis.Client   // Redis client for heartbeat reporting
	LockClient   rueidis.Client   // Redis client for reconciliation locking
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, logDir string) (*App, error) {
	// Load app configuration
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logger, dbLogger, err := logging.SetupLogging(logDir, cfg.Debug.LogLevel, cfg.Debug.MaxLogsToKeep)
	if err != nil {
		return nil, err
	}

	// Keyword lists can be overridden by a file next to the config
	ruleList, err := config.LoadRuleList(configDir, cfg.Moderation.RuleListFile)
	if err != nil {
		return nil, err
	}

	// Redis manager provides connection pools for various subsystems
	redisManager := redis.NewManager(&cfg.Redis, logger)

	statusClient, err := redisManager.GetClient(redis.StatusDBIndex)
	if err != nil {
		return nil, err
	}

	lockClient, err := redisManager.GetClient(redis.LockDBIndex)
	if err != nil {
		return nil, err
	}

	// Initialize database and apply pending migrations
	db, err := database.NewConnection(ctx, &cfg.PostgreSQL, dbLogger.Named("database"), true)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:       cfg,
		ConfigDir:    configDir,
		RuleList:     ruleList,
		Logger:       logger,
		DBLogger:     dbLogger.Named("database"),
		DB:           db,
		RedisManager: redisManager,
		StatusClient: statusClient,
		LockClient:   lockClient,
	}, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(ctx context.Context) {
	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	// Close database connections
	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Close Redis connections last as other components might need it during cleanup
	s.RedisManager.Close()
}
