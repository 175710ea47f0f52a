package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/untibullet/sprint-rollover/internal/config"
	"github.com/untibullet/sprint-rollover/internal/idgen"
	"github.com/untibullet/sprint-rollover/internal/repository"
	"github.com/untibullet/sprint-rollover/internal/service"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "app",
	Short: "Sprint backlog rollover service",
	Long: `Moves unfinished work of a closed sprint into the backlog and clones it
back into later sprints. Without a subcommand the HTTP server is started.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ./config.yaml or ./config/config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app собранные зависимости команд
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	repo     *repository.Repository
	planning *service.Planning
	backlog  *service.Backlog
	closeDB  func()
}

// newApp загружает конфигурацию, подключается к базе и применяет миграции
func newApp(ctx context.Context) (*app, error) {
	// Загрузка конфигурации
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Инициализация логгера
	logger, err := initLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Подключение к базе данных
	repo, closeDB, err := initRepository(ctx, cfg.Database, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	if err := repo.Migrate(ctx); err != nil {
		closeDB()
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	loc, err := cfg.Rollover.Location()
	if err != nil {
		closeDB()
		_ = logger.Sync()
		return nil, err
	}

	// Инициализация сервисов
	ids := idgen.New(repo)
	planning := service.NewPlanning(repo, ids, logger)
	backlog := service.NewBacklog(repo, planning, ids, logger, service.BacklogOptions{
		CloneConcurrency: cfg.Rollover.CloneConcurrency,
		SkipMigrated:     cfg.Rollover.SkipMigrated,
		Location:         loc,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		planning: planning,
		backlog:  backlog,
		closeDB:  closeDB,
	}, nil
}

func (a *app) Close() {
	a.closeDB()
	_ = a.logger.Sync()
}

// initLogger инициализирует zap логгер на основе конфигурации
func initLogger(cfg config.LoggerConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapConfig zap.Config
	if cfg.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

// initRepository открывает хранилище выбранного драйвера
func initRepository(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*repository.Repository, func(), error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := repository.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("sqlite database opened", zap.String("path", cfg.SQLitePath))
		return repository.NewSQLite(db), func() { closeSQL(db, logger) }, nil
	default:
		pool, err := initDatabase(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("database connection established", zap.String("host", cfg.Host))
		return repository.New(pool), pool.Close, nil
	}
}

func closeSQL(db *sql.DB, logger *zap.Logger) {
	if err := db.Close(); err != nil {
		logger.Error("failed to close database", zap.Error(err))
	}
}

// initDatabase инициализирует пул подключений к PostgreSQL
func initDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Настройки пула
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	// Создание пула
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Проверка подключения
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
