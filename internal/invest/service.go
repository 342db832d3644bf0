package invest

import (
	"context"
	"fmt"
	"time"

	"tether-invest/internal/config"
	"tether-invest/internal/locker"
	"tether-invest/pkg/models"

	"go.uber.org/zap"
)

// UserStore определяет доступ к пользователям, необходимый инвестиционному сервису
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// InvestmentStore определяет доступ к инвестициям
type InvestmentStore interface {
	Create(ctx context.Context, investment *models.Investment) error
	GetByID(ctx context.Context, id int64) (*models.Investment, error)
	Update(ctx context.Context, investment *models.Investment) error
	ListByUser(ctx context.Context, userID int64) ([]*models.Investment, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
}

// TransactionStore определяет доступ к заявкам на депозит и вывод
type TransactionStore interface {
	Create(ctx context.Context, transaction *models.Transaction) error
	GetByID(ctx context.Context, id int64) (*models.Transaction, error)
	Update(ctx context.Context, transaction *models.Transaction) error
	ListByUser(ctx context.Context, userID int64) ([]*models.Transaction, error)
	ListByUserAndType(ctx context.Context, userID int64, transactionType string) ([]*models.Transaction, error)
	ListUnconfirmed(ctx context.Context) ([]*models.Transaction, error)
	FirstConfirmedDepositAmount(ctx context.Context, userID int64) (float64, error)
}

// ReferralProfitStore определяет чтение накопленной реферальной прибыли
type ReferralProfitStore interface {
	TotalByReferrer(ctx context.Context, referrerID int64) (float64, error)
}

// LevelResolver пересчитывает уровень пользователя и отдает эффективную ставку
type LevelResolver interface {
	Resolve(ctx context.Context, userID int64) (*models.Level, bool, error)
	EffectiveDailyRate(ctx context.Context, user *models.User) (float64, error)
}

// MetricsRecorder записывает метрики инвестиционных операций
type MetricsRecorder interface {
	RecordDepositConfirmed(amount float64)
	RecordWithdrawal(requested, withdrawn float64)
}

// Service управляет жизненным циклом инвестиций: заявками на депозит и
// вывод, подтверждением транзакций, созданием инвестиций и расчетом прибыли
type Service struct {
	users           UserStore
	investments     InvestmentStore
	transactions    TransactionStore
	referralProfits ReferralProfitStore
	levels          LevelResolver
	lock            *locker.PerUser
	metrics         MetricsRecorder
	cfg             config.InvestConfig
	logger          *zap.Logger

	now func() time.Time
}

// NewService создает новый инвестиционный сервис
func NewService(
	users UserStore,
	investments InvestmentStore,
	transactions TransactionStore,
	referralProfits ReferralProfitStore,
	levels LevelResolver,
	lock *locker.PerUser,
	metrics MetricsRecorder,
	cfg config.InvestConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		users:           users,
		investments:     investments,
		transactions:    transactions,
		referralProfits: referralProfits,
		levels:          levels,
		lock:            lock,
		metrics:         metrics,
		cfg:             cfg,
		logger:          logger,
		now:             time.Now,
	}
}

// WalletAddress возвращает адрес кошелька для депозитов.
// Адрес статический: интеграции с платежной сетью нет.
func (s *Service) WalletAddress() string {
	return s.cfg.WalletAddress
}

// CreateDepositRequest регистрирует заявку на депозит и возвращает ее вместе
// с адресом кошелька для перевода. Для самого первого депозита действует
// минимальная сумма.
func (s *Service) CreateDepositRequest(ctx context.Context, userID int64, amount float64) (*models.Transaction, string, error) {
	if amount <= 0 {
		return nil, "", fmt.Errorf("сумма депозита %f: %w", amount, models.ErrInvalidAmount)
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, "", fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	firstAmount, err := s.transactions.FirstConfirmedDepositAmount(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("ошибка проверки первого депозита: %w", err)
	}

	if firstAmount == 0 && amount < s.cfg.MinFirstDeposit {
		return nil, "", fmt.Errorf("минимальная сумма первого депозита %.0f: %w", s.cfg.MinFirstDeposit, models.ErrMinFirstDeposit)
	}

	transaction := &models.Transaction{
		UserID:      userID,
		Type:        models.TransactionTypeDeposit,
		Amount:      amount,
		Description: "Заявка на депозит",
		RequestDate: s.now(),
	}

	if err := s.transactions.Create(ctx, transaction); err != nil {
		return nil, "", fmt.Errorf("ошибка создания заявки на депозит: %w", err)
	}

	return transaction, s.cfg.WalletAddress, nil
}

// SubmitHash прикрепляет хеш внешнего платежа к неподтвержденной заявке
func (s *Service) SubmitHash(ctx context.Context, transactionID int64, hashCode string) (*models.Transaction, error) {
	transaction, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакции: %w", err)
	}

	transaction.HashCode = &hashCode
	if err := s.transactions.Update(ctx, transaction); err != nil {
		return nil, fmt.Errorf("ошибка сохранения хеша платежа: %w", err)
	}

	s.logger.Info("хеш платежа прикреплен к транзакции",
		zap.Int64("transaction_id", transactionID))

	return transaction, nil
}

// CreateWithdrawRequest регистрирует заявку на вывод, ожидающую
// подтверждения администратором
func (s *Service) CreateWithdrawRequest(ctx context.Context, userID int64, amount float64) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("сумма вывода %f: %w", amount, models.ErrInvalidAmount)
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	transaction := &models.Transaction{
		UserID:      userID,
		Type:        models.TransactionTypeWithdraw,
		Amount:      amount,
		Description: "Заявка на вывод",
		RequestDate: s.now(),
	}

	if err := s.transactions.Create(ctx, transaction); err != nil {
		return nil, fmt.Errorf("ошибка создания заявки на вывод: %w", err)
	}

	return transaction, nil
}

// ConfirmTransaction обрабатывает решение администратора по заявке.
// Подтвержденный депозит создает инвестицию, подтвержденный вывод
// запускает аллокатор. Возвращает результат вывода для заявок типа withdraw.
// Проверка, установка флага и диспетчеризация выполняются под блокировкой
// пользователя: параллельные подтверждения одной заявки иначе оба проходят
// проверку confirmed и один депозит порождает две инвестиции.
func (s *Service) ConfirmTransaction(ctx context.Context, transactionID, adminID int64, confirm bool) (*models.Transaction, *models.WithdrawalResult, error) {
	transaction, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка получения транзакции: %w", err)
	}

	s.lock.Lock(transaction.UserID)
	defer s.lock.Unlock(transaction.UserID)

	// Перечитываем под блокировкой: параллельное подтверждение могло
	// обработать заявку, пока блокировка не была взята
	transaction, err = s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка получения транзакции: %w", err)
	}

	if transaction.Confirmed {
		return nil, nil, fmt.Errorf("транзакция %d: %w", transactionID, models.ErrAlreadyConfirmed)
	}

	if !confirm {
		transaction.AdminID = &adminID
		if err := s.transactions.Update(ctx, transaction); err != nil {
			return nil, nil, fmt.Errorf("ошибка сохранения отклоненной транзакции: %w", err)
		}

		s.logger.Info("транзакция отклонена",
			zap.Int64("transaction_id", transactionID),
			zap.Int64("admin_id", adminID))
		return transaction, nil, nil
	}

	now := s.now()
	transaction.Confirmed = true
	transaction.ConfirmDate = &now
	transaction.AdminID = &adminID

	if err := s.transactions.Update(ctx, transaction); err != nil {
		return nil, nil, fmt.Errorf("ошибка подтверждения транзакции: %w", err)
	}

	s.logger.Info("транзакция подтверждена",
		zap.Int64("transaction_id", transactionID),
		zap.Int64("admin_id", adminID),
		zap.String("type", transaction.Type))

	// Блокировка уже взята, поэтому дальше идут неблокирующие варианты
	switch transaction.Type {
	case models.TransactionTypeDeposit:
		if _, err := s.createInvestment(ctx, transaction.UserID, transaction.Amount); err != nil {
			return nil, nil, err
		}
		return transaction, nil, nil

	case models.TransactionTypeWithdraw:
		result, err := s.withdraw(ctx, transaction.UserID, transaction.Amount)
		if err != nil {
			return nil, nil, err
		}
		return transaction, result, nil

	default:
		return nil, nil, fmt.Errorf("неизвестный тип транзакции: %s", transaction.Type)
	}
}

// CreateInvestment создает инвестицию по подтвержденному депозиту,
// начисляет реферальный бонус за первую инвестицию приглашенного и
// пересчитывает уровень пользователя
func (s *Service) CreateInvestment(ctx context.Context, userID int64, amount float64) (*models.Investment, error) {
	s.lock.Lock(userID)
	defer s.lock.Unlock(userID)

	return s.createInvestment(ctx, userID, amount)
}

// createInvestment выполняет создание инвестиции; вызывающая сторона
// обязана держать блокировку пользователя
func (s *Service) createInvestment(ctx context.Context, userID int64, amount float64) (*models.Investment, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("сумма инвестиции %f: %w", amount, models.ErrInvalidAmount)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	investment := &models.Investment{
		UserID:      userID,
		Amount:      amount,
		StartTime:   s.now(),
		CycleLength: s.cfg.CycleLength,
	}

	if err := s.investments.Create(ctx, investment); err != nil {
		return nil, fmt.Errorf("ошибка создания инвестиции: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordDepositConfirmed(amount)
	}

	if err := s.awardFirstInvestmentBonus(ctx, user); err != nil {
		// Бонус не должен блокировать подтвержденный депозит
		s.logger.Error("ошибка начисления реферального бонуса",
			zap.Int64("user_id", userID),
			zap.Error(err))
	}

	if _, _, err := s.levels.Resolve(ctx, userID); err != nil {
		s.logger.Error("ошибка пересчета уровня после депозита",
			zap.Int64("user_id", userID),
			zap.Error(err))
	}

	return investment, nil
}

// awardFirstInvestmentBonus начисляет рефереру разовый бонус, когда у
// приглашенного пользователя появляется самая первая инвестиция
func (s *Service) awardFirstInvestmentBonus(ctx context.Context, user *models.User) error {
	if user.ReferredBy == nil {
		return nil
	}

	count, err := s.investments.CountByUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("ошибка подсчета инвестиций: %w", err)
	}
	if count != 1 {
		return nil
	}

	referrer, err := s.users.GetByID(ctx, *user.ReferredBy)
	if err != nil {
		return fmt.Errorf("ошибка получения реферера: %w", err)
	}

	referrer.ReferralBonus += s.cfg.ReferralBonus
	if err := s.users.Update(ctx, referrer); err != nil {
		return fmt.Errorf("ошибка сохранения бонуса реферера: %w", err)
	}

	s.logger.Info("начислен реферальный бонус за первую инвестицию",
		zap.Int64("referrer_id", referrer.ID),
		zap.Int64("referred_id", user.ID),
		zap.Float64("bonus", s.cfg.ReferralBonus))

	return nil
}

// Snapshot возвращает чистую проекцию состояния одной инвестиции.
// Повторный вызов без изменяющих операций возвращает тот же результат.
func (s *Service) Snapshot(ctx context.Context, investmentID int64) (*models.ProfitSnapshot, error) {
	investment, err := s.investments.GetByID(ctx, investmentID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения инвестиции: %w", err)
	}

	user, err := s.users.GetByID(ctx, investment.UserID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	rate, err := s.levels.EffectiveDailyRate(ctx, user)
	if err != nil {
		return nil, err
	}

	snapshot := investment.Snapshot(s.now(), rate)
	return &snapshot, nil
}

// ProfitSummary возвращает сводку по всем инвестициям пользователя вместе
// с накопленной реферальной прибылью
func (s *Service) ProfitSummary(ctx context.Context, userID int64) (*models.ProfitSummary, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	rate, err := s.levels.EffectiveDailyRate(ctx, user)
	if err != nil {
		return nil, err
	}

	investments, err := s.investments.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения инвестиций: %w", err)
	}

	now := s.now()
	summary := &models.ProfitSummary{TotalInvestments: len(investments)}
	for _, inv := range investments {
		snapshot := inv.Snapshot(now, rate)
		summary.TotalAmount += snapshot.Amount
		summary.WithdrawableProfit += snapshot.Profit
		summary.LockedProfit += snapshot.LockedProfit
	}

	referralProfit, err := s.referralProfits.TotalByReferrer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения реферальной прибыли: %w", err)
	}
	summary.ReferralProfit = referralProfit

	return summary, nil
}

// TransactionHistory возвращает историю заявок пользователя
func (s *Service) TransactionHistory(ctx context.Context, userID int64) ([]*models.Transaction, error) {
	transactions, err := s.transactions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории транзакций: %w", err)
	}
	return transactions, nil
}

// TransactionHistoryByType возвращает историю заявок пользователя одного типа
func (s *Service) TransactionHistoryByType(ctx context.Context, userID int64, transactionType string) ([]*models.Transaction, error) {
	if !models.IsValidTransactionType(transactionType) {
		return nil, fmt.Errorf("тип транзакции %q не поддерживается", transactionType)
	}

	transactions, err := s.transactions.ListByUserAndType(ctx, userID, transactionType)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории транзакций: %w", err)
	}
	return transactions, nil
}

// UnconfirmedTransactions возвращает все заявки, ожидающие решения администратора
func (s *Service) UnconfirmedTransactions(ctx context.Context) ([]*models.Transaction, error) {
	transactions, err := s.transactions.ListUnconfirmed(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения неподтвержденных транзакций: %w", err)
	}
	return transactions, nil
}
