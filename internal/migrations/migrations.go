package migrations

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"tether-invest/internal/config"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// RunMigrations применяет миграции к базе данных
func RunMigrations(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("начало применения миграций")

	db, err := openMigrationDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	migrationPath := resolveMigrationPath(cfg.Database.MigrationPath, logger)

	if err := goose.Up(db, migrationPath); err != nil {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	logger.Info("миграции успешно применены")
	return nil
}

// GetMigrationStatus возвращает статус миграций
func GetMigrationStatus(cfg *config.Config, logger *zap.Logger) error {
	db, err := openMigrationDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	migrationPath := resolveMigrationPath(cfg.Database.MigrationPath, logger)

	if err := goose.Status(db, migrationPath); err != nil {
		return fmt.Errorf("ошибка получения статуса миграций: %w", err)
	}

	return nil
}

// openMigrationDB открывает временное подключение для goose.
// Пул pgx здесь не подходит: goose работает через database/sql.
func openMigrationDB(cfg *config.Config) (*sql.DB, error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("ошибка установки диалекта: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных для миграций: %w", err)
	}

	return db, nil
}

// resolveMigrationPath определяет путь к миграциям: сначала путь из
// конфигурации, затем стандартные расположения относительно рабочей директории
func resolveMigrationPath(configPath string, logger *zap.Logger) string {
	candidates := []string{configPath}

	if currentDir, err := os.Getwd(); err == nil {
		candidates = append(candidates,
			filepath.Join(currentDir, "scripts", "migrations"),
			filepath.Join(currentDir, "..", "scripts", "migrations"),
		)
	}
	// Для Docker контейнера
	candidates = append(candidates, "/app/scripts/migrations")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			logger.Info("найден путь к миграциям", zap.String("path", path))
			return path
		}
	}

	logger.Warn("директория с миграциями не найдена, используем путь из конфигурации",
		zap.String("path", configPath))
	return configPath
}
