package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tether-invest/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// investmentRepository реализует InvestmentRepository
type investmentRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewInvestmentRepository создает новый репозиторий инвестиций
func NewInvestmentRepository(db *pgxpool.Pool, logger *zap.Logger) InvestmentRepository {
	return &investmentRepository{
		db:     db,
		logger: logger,
	}
}

const investmentColumns = `id, user_id, amount, start_time, cycle_length, withdrawable_profit, last_withdraw_time, created_at`

// scanInvestment сканирует одну строку инвестиции
func scanInvestment(row pgx.Row) (*models.Investment, error) {
	inv := &models.Investment{}
	err := row.Scan(
		&inv.ID, &inv.UserID, &inv.Amount, &inv.StartTime, &inv.CycleLength,
		&inv.WithdrawableProfit, &inv.LastWithdrawTime, &inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Create создает новую инвестицию
func (r *investmentRepository) Create(ctx context.Context, investment *models.Investment) error {
	query := `
		INSERT INTO investments (user_id, amount, start_time, cycle_length, withdrawable_profit, last_withdraw_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	investment.CreatedAt = time.Now()
	if investment.CycleLength <= 0 {
		investment.CycleLength = models.DefaultCycleLength
	}

	err := r.db.QueryRow(ctx, query,
		investment.UserID, investment.Amount, investment.StartTime,
		investment.CycleLength, investment.WithdrawableProfit,
		investment.LastWithdrawTime, investment.CreatedAt,
	).Scan(&investment.ID)

	if err != nil {
		return fmt.Errorf("ошибка создания инвестиции: %w", err)
	}

	r.logger.Info("инвестиция создана",
		zap.Int64("investment_id", investment.ID),
		zap.Int64("user_id", investment.UserID),
		zap.Float64("amount", investment.Amount))

	return nil
}

// GetByID получает инвестицию по ID
func (r *investmentRepository) GetByID(ctx context.Context, id int64) (*models.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1`

	inv, err := scanInvestment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("инвестиция с ID %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка получения инвестиции: %w", err)
	}

	return inv, nil
}

// Update обновляет инвестицию
func (r *investmentRepository) Update(ctx context.Context, investment *models.Investment) error {
	query := `
		UPDATE investments
		SET amount = $2, start_time = $3, cycle_length = $4, withdrawable_profit = $5, last_withdraw_time = $6
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		investment.ID, investment.Amount, investment.StartTime,
		investment.CycleLength, investment.WithdrawableProfit, investment.LastWithdrawTime,
	)

	if err != nil {
		return fmt.Errorf("ошибка обновления инвестиции: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("инвестиция с ID %d: %w", investment.ID, models.ErrNotFound)
	}

	return nil
}

// ListByUser получает все инвестиции пользователя, старейшие первыми.
// Порядок по start_time важен: аллокатор вывода обходит инвестиции
// именно в этом порядке.
func (r *investmentRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE user_id = $1 ORDER BY start_time ASC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения инвестиций пользователя: %w", err)
	}
	defer rows.Close()

	var investments []*models.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			r.logger.Error("ошибка сканирования инвестиции", zap.Error(err))
			continue
		}
		investments = append(investments, inv)
	}

	return investments, nil
}

// SumAmountByUser возвращает суммарное тело всех инвестиций пользователя
func (r *investmentRepository) SumAmountByUser(ctx context.Context, userID int64) (float64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM investments WHERE user_id = $1`

	var total float64
	err := r.db.QueryRow(ctx, query, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета суммы инвестиций: %w", err)
	}

	return total, nil
}

// CountByUser возвращает число инвестиций пользователя
func (r *investmentRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	query := `SELECT COUNT(*) FROM investments WHERE user_id = $1`

	var count int
	err := r.db.QueryRow(ctx, query, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета инвестиций: %w", err)
	}

	return count, nil
}
