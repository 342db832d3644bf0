package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config содержит все конфигурационные параметры приложения
type Config struct {
	Database DatabaseConfig
	App      AppConfig
	Invest   InvestConfig
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MigrationPath string
}

// AppConfig содержит общие настройки приложения
type AppConfig struct {
	Env      string
	LogLevel string
	Port     int
}

// InvestConfig содержит параметры инвестиционного движка
type InvestConfig struct {
	BaseDailyRate      float64       // Базовая дневная ставка до множителя уровня
	ReferralProfitRate float64       // Доля прибыли приглашенного, начисляемая рефереру
	ReferralBonus      float64       // Разовый бонус за первую инвестицию приглашенного
	MinFirstDeposit    float64       // Минимальная сумма самого первого депозита
	CycleLength        int           // Длина цикла начисления, в днях
	WalletAddress      string        // Статический адрес кошелька для депозитов
	ReferralJobPeriod  time.Duration // Период пересчета реферальной прибыли
}

// Load загружает конфигурацию из переменных окружения и .env
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Database
	cfg.Database.Host = getEnvDefault("DB_HOST", "localhost")
	cfg.Database.Port = getEnvIntDefault("DB_PORT", 5432)
	cfg.Database.User = os.Getenv("DB_USER")
	cfg.Database.Password = os.Getenv("DB_PASSWORD")
	cfg.Database.Name = os.Getenv("DB_NAME")
	cfg.Database.SSLMode = getEnvDefault("DB_SSL_MODE", "disable")
	cfg.Database.MigrationPath = getEnvDefault("MIGRATION_PATH", "scripts/migrations")

	// App
	cfg.App.Env = getEnvDefault("APP_ENV", "development")
	cfg.App.LogLevel = getEnvDefault("LOG_LEVEL", "info")
	cfg.App.Port = getEnvIntDefault("APP_PORT", 8080)

	// Invest
	cfg.Invest.BaseDailyRate = getEnvFloatDefault("INVEST_BASE_DAILY_RATE", 0.01)
	cfg.Invest.ReferralProfitRate = getEnvFloatDefault("INVEST_REFERRAL_PROFIT_RATE", 0.01)
	cfg.Invest.ReferralBonus = getEnvFloatDefault("INVEST_REFERRAL_BONUS", 5)
	cfg.Invest.MinFirstDeposit = getEnvFloatDefault("INVEST_MIN_FIRST_DEPOSIT", 100)
	cfg.Invest.CycleLength = getEnvIntDefault("INVEST_CYCLE_LENGTH", 30)
	cfg.Invest.WalletAddress = getEnvDefault("INVEST_WALLET_ADDRESS", "TYkKWFnNBsKLsqopLktWfKY9PQm7vE5SJw")
	cfg.Invest.ReferralJobPeriod = getEnvDurationDefault("INVEST_REFERRAL_JOB_PERIOD", 24*time.Hour)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("ошибка валидации конфигурации: %w", err)
	}

	return cfg, nil
}

func getEnvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvFloatDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// validateConfig проверяет корректность конфигурации
func validateConfig(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("DB_HOST не установлен")
	}
	if config.Database.User == "" {
		return fmt.Errorf("DB_USER не установлен")
	}
	if config.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD не установлен")
	}
	if config.Database.Name == "" {
		return fmt.Errorf("DB_NAME не установлен")
	}
	if config.Invest.BaseDailyRate <= 0 {
		return fmt.Errorf("INVEST_BASE_DAILY_RATE должна быть положительной")
	}
	if config.Invest.ReferralProfitRate < 0 {
		return fmt.Errorf("INVEST_REFERRAL_PROFIT_RATE не может быть отрицательной")
	}
	if config.Invest.CycleLength <= 0 {
		return fmt.Errorf("INVEST_CYCLE_LENGTH должна быть положительной")
	}

	return nil
}

// GetDSN возвращает строку подключения к базе данных
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// IsDevelopment проверяет, запущено ли приложение в режиме разработки
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction проверяет, запущено ли приложение в продакшн режиме
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// GetLogLevel возвращает уровень логирования в формате zap
func (c *AppConfig) GetLogLevel() zap.AtomicLevel {
	switch c.LogLevel {
	case "debug":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}
