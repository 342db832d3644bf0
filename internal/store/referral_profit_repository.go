package store

import (
	"context"
	"fmt"

	"tether-invest/pkg/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// referralProfitRepository реализует ReferralProfitRepository
type referralProfitRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewReferralProfitRepository создает новый репозиторий реферальной прибыли
func NewReferralProfitRepository(db *pgxpool.Pool, logger *zap.Logger) ReferralProfitRepository {
	return &referralProfitRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert создает или перезаписывает срез реферальной прибыли по паре
// (реферер, приглашенный). profit_amount перезаписывается, не накапливается,
// поэтому повторный запуск пересчета идемпотентен.
func (r *referralProfitRepository) Upsert(ctx context.Context, profit *models.ReferralProfit) error {
	query := `
		INSERT INTO referral_profits (referrer_id, referred_user_id, profit_amount, timestamp)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (referrer_id, referred_user_id)
		DO UPDATE SET profit_amount = EXCLUDED.profit_amount, timestamp = EXCLUDED.timestamp
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		profit.ReferrerID, profit.ReferredUserID, profit.ProfitAmount, profit.Timestamp,
	).Scan(&profit.ID)

	if err != nil {
		return fmt.Errorf("ошибка сохранения реферальной прибыли: %w", err)
	}

	return nil
}

// ListByReferrer получает историю реферальной прибыли реферера
func (r *referralProfitRepository) ListByReferrer(ctx context.Context, referrerID int64) ([]*models.ReferralProfit, error) {
	query := `
		SELECT id, referrer_id, referred_user_id, profit_amount, timestamp
		FROM referral_profits
		WHERE referrer_id = $1
		ORDER BY timestamp DESC`

	rows, err := r.db.Query(ctx, query, referrerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения реферальной прибыли: %w", err)
	}
	defer rows.Close()

	var profits []*models.ReferralProfit
	for rows.Next() {
		p := &models.ReferralProfit{}
		err := rows.Scan(&p.ID, &p.ReferrerID, &p.ReferredUserID, &p.ProfitAmount, &p.Timestamp)
		if err != nil {
			r.logger.Error("ошибка сканирования реферальной прибыли", zap.Error(err))
			continue
		}
		profits = append(profits, p)
	}

	return profits, nil
}

// TotalByReferrer возвращает суммарную реферальную прибыль реферера
func (r *referralProfitRepository) TotalByReferrer(ctx context.Context, referrerID int64) (float64, error) {
	query := `SELECT COALESCE(SUM(profit_amount), 0) FROM referral_profits WHERE referrer_id = $1`

	var total float64
	err := r.db.QueryRow(ctx, query, referrerID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета реферальной прибыли: %w", err)
	}

	return total, nil
}
