package store

import (
	"context"
	"errors"
	"fmt"

	"tether-invest/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// levelRepository реализует LevelRepository
type levelRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewLevelRepository создает новый репозиторий уровней
func NewLevelRepository(db *pgxpool.Pool, logger *zap.Logger) LevelRepository {
	return &levelRepository{
		db:     db,
		logger: logger,
	}
}

// Create создает новый уровень в каталоге
func (r *levelRepository) Create(ctx context.Context, level *models.Level) error {
	query := `
		INSERT INTO levels (min_active_users, min_amount, profit_multiplier)
		VALUES ($1, $2, $3)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		level.MinActiveUsers, level.MinAmount, level.ProfitMultiplier,
	).Scan(&level.ID)

	if err != nil {
		return fmt.Errorf("ошибка создания уровня: %w", err)
	}

	r.logger.Info("уровень создан",
		zap.Int64("level_id", level.ID),
		zap.Float64("profit_multiplier", level.ProfitMultiplier))

	return nil
}

// GetByID получает уровень по ID
func (r *levelRepository) GetByID(ctx context.Context, id int64) (*models.Level, error) {
	query := `SELECT id, min_active_users, min_amount, profit_multiplier FROM levels WHERE id = $1`

	level := &models.Level{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&level.ID, &level.MinActiveUsers, &level.MinAmount, &level.ProfitMultiplier,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("уровень с ID %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка получения уровня: %w", err)
	}

	return level, nil
}

// Update обновляет уровень
func (r *levelRepository) Update(ctx context.Context, level *models.Level) error {
	query := `
		UPDATE levels
		SET min_active_users = $2, min_amount = $3, profit_multiplier = $4
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		level.ID, level.MinActiveUsers, level.MinAmount, level.ProfitMultiplier,
	)

	if err != nil {
		return fmt.Errorf("ошибка обновления уровня: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("уровень с ID %d: %w", level.ID, models.ErrNotFound)
	}

	r.logger.Info("уровень обновлен", zap.Int64("level_id", level.ID))
	return nil
}

// List получает все уровни каталога
func (r *levelRepository) List(ctx context.Context) ([]*models.Level, error) {
	query := `SELECT id, min_active_users, min_amount, profit_multiplier FROM levels ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения уровней: %w", err)
	}
	defer rows.Close()

	var levels []*models.Level
	for rows.Next() {
		level := &models.Level{}
		err := rows.Scan(&level.ID, &level.MinActiveUsers, &level.MinAmount, &level.ProfitMultiplier)
		if err != nil {
			r.logger.Error("ошибка сканирования уровня", zap.Error(err))
			continue
		}
		levels = append(levels, level)
	}

	return levels, nil
}

// GetHighestQualifying возвращает уровень с наибольшим ID, оба порога
// которого выполнены. Возвращает nil без ошибки, если ни один уровень
// не подходит.
func (r *levelRepository) GetHighestQualifying(ctx context.Context, activeUsers int, totalAmount float64) (*models.Level, error) {
	query := `
		SELECT id, min_active_users, min_amount, profit_multiplier
		FROM levels
		WHERE min_active_users <= $1 AND min_amount <= $2
		ORDER BY id DESC
		LIMIT 1`

	level := &models.Level{}
	err := r.db.QueryRow(ctx, query, activeUsers, totalAmount).Scan(
		&level.ID, &level.MinActiveUsers, &level.MinAmount, &level.ProfitMultiplier,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка подбора уровня: %w", err)
	}

	return level, nil
}
