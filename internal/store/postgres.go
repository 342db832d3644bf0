package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tether-invest/internal/config"
	"tether-invest/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Store представляет интерфейс для работы с базой данных
type Store interface {
	User() UserRepository
	Investment() InvestmentRepository
	Level() LevelRepository
	Transaction() TransactionRepository
	ReferralProfit() ReferralProfitRepository
	DB() *pgxpool.Pool
	Close() error
}

// store реализует интерфейс Store
type store struct {
	db             *pgxpool.Pool
	logger         *zap.Logger
	user           UserRepository
	investment     InvestmentRepository
	level          LevelRepository
	transaction    TransactionRepository
	referralProfit ReferralProfitRepository
}

// UserRepository интерфейс для работы с пользователями
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByReferralCode(ctx context.Context, code string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	ListReferred(ctx context.Context, referrerID int64) ([]*models.User, error)
	ListWithReferrer(ctx context.Context) ([]*models.User, error)
	CountActiveReferred(ctx context.Context, referrerID int64) (int, error)
	GenerateReferralCode(ctx context.Context) (string, error)
}

// InvestmentRepository интерфейс для работы с инвестициями
type InvestmentRepository interface {
	Create(ctx context.Context, investment *models.Investment) error
	GetByID(ctx context.Context, id int64) (*models.Investment, error)
	Update(ctx context.Context, investment *models.Investment) error
	ListByUser(ctx context.Context, userID int64) ([]*models.Investment, error)
	SumAmountByUser(ctx context.Context, userID int64) (float64, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
}

// LevelRepository интерфейс для работы с каталогом уровней
type LevelRepository interface {
	Create(ctx context.Context, level *models.Level) error
	GetByID(ctx context.Context, id int64) (*models.Level, error)
	Update(ctx context.Context, level *models.Level) error
	List(ctx context.Context) ([]*models.Level, error)
	GetHighestQualifying(ctx context.Context, activeUsers int, totalAmount float64) (*models.Level, error)
}

// TransactionRepository интерфейс для работы с заявками на депозит и вывод
type TransactionRepository interface {
	Create(ctx context.Context, transaction *models.Transaction) error
	GetByID(ctx context.Context, id int64) (*models.Transaction, error)
	Update(ctx context.Context, transaction *models.Transaction) error
	ListByUser(ctx context.Context, userID int64) ([]*models.Transaction, error)
	ListByUserAndType(ctx context.Context, userID int64, transactionType string) ([]*models.Transaction, error)
	ListUnconfirmed(ctx context.Context) ([]*models.Transaction, error)
	FirstConfirmedDepositAmount(ctx context.Context, userID int64) (float64, error)
}

// ReferralProfitRepository интерфейс для работы с реферальной прибылью
type ReferralProfitRepository interface {
	Upsert(ctx context.Context, profit *models.ReferralProfit) error
	ListByReferrer(ctx context.Context, referrerID int64) ([]*models.ReferralProfit, error)
	TotalByReferrer(ctx context.Context, referrerID int64) (float64, error)
}

// NewStore создает новое подключение к базе данных
func NewStore(cfg *config.Config, logger *zap.Logger) (Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	// Настройка пула
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ошибка проверки подключения к базе данных: %w", err)
	}

	logger.Info("успешное подключение к базе данных PostgreSQL")

	s := &store{
		db:     db,
		logger: logger,
	}

	// Инициализация репозиториев
	s.user = NewUserRepository(db, logger)
	s.investment = NewInvestmentRepository(db, logger)
	s.level = NewLevelRepository(db, logger)
	s.transaction = NewTransactionRepository(db, logger)
	s.referralProfit = NewReferralProfitRepository(db, logger)

	return s, nil
}

// User возвращает репозиторий пользователей
func (s *store) User() UserRepository {
	return s.user
}

// Investment возвращает репозиторий инвестиций
func (s *store) Investment() InvestmentRepository {
	return s.investment
}

// Level возвращает репозиторий уровней
func (s *store) Level() LevelRepository {
	return s.level
}

// Transaction возвращает репозиторий транзакций
func (s *store) Transaction() TransactionRepository {
	return s.transaction
}

// ReferralProfit возвращает репозиторий реферальной прибыли
func (s *store) ReferralProfit() ReferralProfitRepository {
	return s.referralProfit
}

// DB возвращает подключение к базе данных
func (s *store) DB() *pgxpool.Pool {
	return s.db
}

// Close закрывает подключение к базе данных
func (s *store) Close() error {
	s.logger.Info("закрытие подключения к базе данных")
	s.db.Close()
	return nil
}

// userRepository реализует UserRepository
type userRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewUserRepository создает новый репозиторий пользователей
func NewUserRepository(db *pgxpool.Pool, logger *zap.Logger) UserRepository {
	return &userRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `id, username, referral_code, referral_bonus, referred_by, current_level_id, previous_level_id, created_at, updated_at`

// scanUser сканирует одну строку пользователя
func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.ReferralCode, &user.ReferralBonus,
		&user.ReferredBy, &user.CurrentLevelID, &user.PreviousLevelID,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create создает нового пользователя
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, referral_code, referral_bonus, referred_by, current_level_id, previous_level_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	err := r.db.QueryRow(ctx, query,
		user.Username, user.ReferralCode, user.ReferralBonus, user.ReferredBy,
		user.CurrentLevelID, user.PreviousLevelID, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)

	if err != nil {
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	r.logger.Info("пользователь создан",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username))

	return nil
}

// GetByID получает пользователя по ID
func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("пользователь с ID %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка получения пользователя по ID: %w", err)
	}

	return user, nil
}

// GetByUsername получает пользователя по имени
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("пользователь %s: %w", username, models.ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка получения пользователя по имени: %w", err)
	}

	return user, nil
}

// GetByReferralCode получает пользователя по реферальному коду
func (r *userRepository) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE referral_code = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("пользователь с таким реферальным кодом: %w", models.ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка получения пользователя по реферальному коду: %w", err)
	}

	return user, nil
}

// Update обновляет пользователя
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET username = $2, referral_code = $3, referral_bonus = $4, referred_by = $5,
		    current_level_id = $6, previous_level_id = $7, updated_at = $8
		WHERE id = $1`

	user.UpdatedAt = time.Now()

	result, err := r.db.Exec(ctx, query,
		user.ID, user.Username, user.ReferralCode, user.ReferralBonus,
		user.ReferredBy, user.CurrentLevelID, user.PreviousLevelID, user.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("ошибка обновления пользователя: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("пользователь с ID %d: %w", user.ID, models.ErrNotFound)
	}

	return nil
}

// ListReferred получает пользователей, приглашенных указанным реферером
func (r *userRepository) ListReferred(ctx context.Context, referrerID int64) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE referred_by = $1 ORDER BY id`

	rows, err := r.db.Query(ctx, query, referrerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения приглашенных пользователей: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			r.logger.Error("ошибка сканирования приглашенного пользователя", zap.Error(err))
			continue
		}
		users = append(users, user)
	}

	return users, nil
}

// ListWithReferrer получает всех пользователей, у которых есть реферер.
// Используется периодическим пересчетом реферальной прибыли.
func (r *userRepository) ListWithReferrer(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE referred_by IS NOT NULL ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователей с реферером: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			r.logger.Error("ошибка сканирования пользователя", zap.Error(err))
			continue
		}
		users = append(users, user)
	}

	return users, nil
}

// CountActiveReferred подсчитывает активных рефералов: приглашенных
// пользователей, у которых есть хотя бы одна инвестиция
func (r *userRepository) CountActiveReferred(ctx context.Context, referrerID int64) (int, error) {
	query := `
		SELECT COUNT(DISTINCT u.id)
		FROM users u
		JOIN investments i ON i.user_id = u.id
		WHERE u.referred_by = $1`

	var count int
	err := r.db.QueryRow(ctx, query, referrerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета активных рефералов: %w", err)
	}

	return count, nil
}

// GenerateReferralCode генерирует уникальный реферальный код
func (r *userRepository) GenerateReferralCode(ctx context.Context) (string, error) {
	query := `SELECT generate_referral_code()`

	var code string
	err := r.db.QueryRow(ctx, query).Scan(&code)
	if err != nil {
		return "", fmt.Errorf("ошибка генерации реферального кода: %w", err)
	}

	return code, nil
}
