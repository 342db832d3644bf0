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

// transactionRepository реализует TransactionRepository
type transactionRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewTransactionRepository создает новый репозиторий транзакций
func NewTransactionRepository(db *pgxpool.Pool, logger *zap.Logger) TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

const transactionColumns = `id, user_id, type_tran, amount, confirmed, confirm_date, description, hash_code, admin_id, request_date`

// scanTransaction сканирует одну строку транзакции
func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	t := &models.Transaction{}
	err := row.Scan(
		&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Confirmed, &t.ConfirmDate,
		&t.Description, &t.HashCode, &t.AdminID, &t.RequestDate,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create создает новую заявку
func (r *transactionRepository) Create(ctx context.Context, transaction *models.Transaction) error {
	query := `
		INSERT INTO user_transactions (user_id, type_tran, amount, confirmed, confirm_date, description, hash_code, admin_id, request_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	if transaction.RequestDate.IsZero() {
		transaction.RequestDate = time.Now()
	}

	err := r.db.QueryRow(ctx, query,
		transaction.UserID, transaction.Type, transaction.Amount,
		transaction.Confirmed, transaction.ConfirmDate, transaction.Description,
		transaction.HashCode, transaction.AdminID, transaction.RequestDate,
	).Scan(&transaction.ID)

	if err != nil {
		return fmt.Errorf("ошибка создания транзакции: %w", err)
	}

	r.logger.Info("транзакция создана",
		zap.Int64("transaction_id", transaction.ID),
		zap.Int64("user_id", transaction.UserID),
		zap.String("type", transaction.Type),
		zap.Float64("amount", transaction.Amount))

	return nil
}

// GetByID получает транзакцию по ID
func (r *transactionRepository) GetByID(ctx context.Context, id int64) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM user_transactions WHERE id = $1`

	t, err := scanTransaction(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("транзакция с ID %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка получения транзакции: %w", err)
	}

	return t, nil
}

// Update обновляет транзакцию
func (r *transactionRepository) Update(ctx context.Context, transaction *models.Transaction) error {
	query := `
		UPDATE user_transactions
		SET confirmed = $2, confirm_date = $3, description = $4, hash_code = $5, admin_id = $6
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		transaction.ID, transaction.Confirmed, transaction.ConfirmDate,
		transaction.Description, transaction.HashCode, transaction.AdminID,
	)

	if err != nil {
		return fmt.Errorf("ошибка обновления транзакции: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("транзакция с ID %d: %w", transaction.ID, models.ErrNotFound)
	}

	return nil
}

// ListByUser получает все транзакции пользователя
func (r *transactionRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM user_transactions WHERE user_id = $1 ORDER BY request_date DESC`

	return r.list(ctx, query, userID)
}

// ListByUserAndType получает транзакции пользователя заданного типа
func (r *transactionRepository) ListByUserAndType(ctx context.Context, userID int64, transactionType string) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM user_transactions WHERE user_id = $1 AND type_tran = $2 ORDER BY request_date DESC`

	return r.list(ctx, query, userID, transactionType)
}

// ListUnconfirmed получает все неподтвержденные транзакции
func (r *transactionRepository) ListUnconfirmed(ctx context.Context) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM user_transactions WHERE confirmed = false ORDER BY request_date ASC`

	return r.list(ctx, query)
}

// FirstConfirmedDepositAmount возвращает сумму первого подтвержденного
// депозита пользователя, 0 — если подтвержденных депозитов еще нет
func (r *transactionRepository) FirstConfirmedDepositAmount(ctx context.Context, userID int64) (float64, error) {
	query := `
		SELECT amount
		FROM user_transactions
		WHERE user_id = $1 AND type_tran = $2 AND confirmed = true
		ORDER BY request_date ASC
		LIMIT 1`

	var amount float64
	err := r.db.QueryRow(ctx, query, userID, models.TransactionTypeDeposit).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("ошибка получения первого депозита: %w", err)
	}

	return amount, nil
}

// list выполняет запрос и сканирует список транзакций
func (r *transactionRepository) list(ctx context.Context, query string, args ...any) ([]*models.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			r.logger.Error("ошибка сканирования транзакции", zap.Error(err))
			continue
		}
		transactions = append(transactions, t)
	}

	return transactions, nil
}
