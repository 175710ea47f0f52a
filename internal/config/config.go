package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	// часовые пояса rollover.timezone доступны и без системной tzdata
	_ "time/tzdata"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Rollover RolloverConfig `mapstructure:"rollover"`
}

type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"`
	Host       string `mapstructure:"host"`
	Port       string `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	Name       string `mapstructure:"name"`
	SSLMode    string `mapstructure:"sslmode"`
	SQLitePath string `mapstructure:"sqlite_path"`
	MaxConns   int32  `mapstructure:"max_conns"`
	MinConns   int32  `mapstructure:"min_conns"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RolloverConfig настройки переноса спринта в бэклог
type RolloverConfig struct {
	CloneConcurrency int    `mapstructure:"clone_concurrency"`
	SkipMigrated     bool   `mapstructure:"skip_migrated"`
	Timezone         string `mapstructure:"timezone"`
}

// Load загружает конфигурацию из config.yaml и переопределяет значения из переменных окружения.
// Если файла нет, используются значения по умолчанию и окружение.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile как Load, но читает конфигурацию из явно указанного файла, если path не пуст
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.sqlite_path", filepath.Join("data", "rollover.db"))
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("rollover.clone_concurrency", 1)
	v.SetDefault("rollover.skip_migrated", false)
	v.SetDefault("rollover.timezone", "UTC")
}

// bindEnvVariables явно связывает переменные окружения с ключами конфига
func bindEnvVariables(v *viper.Viper) {
	// Database
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.name", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")
	v.BindEnv("database.sqlite_path", "DB_SQLITE_PATH")

	// Server
	v.BindEnv("server.host", "SERVER_HOST")
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.rate_limit", "SERVER_RATE_LIMIT")

	// Logger
	v.BindEnv("logger.level", "LOG_LEVEL")
	v.BindEnv("logger.format", "LOG_FORMAT")

	// Rollover
	v.BindEnv("rollover.clone_concurrency", "ROLLOVER_CLONE_CONCURRENCY")
	v.BindEnv("rollover.skip_migrated", "ROLLOVER_SKIP_MIGRATED")
	v.BindEnv("rollover.timezone", "ROLLOVER_TIMEZONE")
}

// Validate проверяет значения, которые нельзя исправить молча
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Rollover.CloneConcurrency < 1 {
		return fmt.Errorf("rollover.clone_concurrency must be positive, got %d", c.Rollover.CloneConcurrency)
	}
	if _, err := c.Rollover.Location(); err != nil {
		return err
	}
	return nil
}

// GetDSN возвращает строку подключения к PostgreSQL
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetAddress возвращает адрес сервера в формате host:port
func (c *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Location часовой пояс, в котором определяется текущая дата при переносе
func (c *RolloverConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid rollover.timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
