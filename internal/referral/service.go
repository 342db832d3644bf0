package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tether-invest/internal/locker"
	"tether-invest/pkg/models"

	"go.uber.org/zap"
)

// UserStore определяет доступ к пользователям, необходимый реферальному сервису
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByReferralCode(ctx context.Context, code string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	ListReferred(ctx context.Context, referrerID int64) ([]*models.User, error)
	ListWithReferrer(ctx context.Context) ([]*models.User, error)
	GenerateReferralCode(ctx context.Context) (string, error)
}

// InvestmentStore определяет доступ к инвестициям приглашенных пользователей
type InvestmentStore interface {
	ListByUser(ctx context.Context, userID int64) ([]*models.Investment, error)
}

// ProfitStore определяет доступ к записям реферальной прибыли
type ProfitStore interface {
	Upsert(ctx context.Context, profit *models.ReferralProfit) error
	ListByReferrer(ctx context.Context, referrerID int64) ([]*models.ReferralProfit, error)
	TotalByReferrer(ctx context.Context, referrerID int64) (float64, error)
}

// RateProvider возвращает эффективную дневную ставку пользователя
type RateProvider interface {
	EffectiveDailyRate(ctx context.Context, user *models.User) (float64, error)
}

// Recorder записывает метрики пересчета реферальной прибыли
type Recorder interface {
	RecordReferralProfitRun(updated, failed int)
}

// Service представляет сервис для управления реферальной системой:
// коды приглашений, привязка приглашенных и периодический пересчет
// реферальной прибыли
type Service struct {
	users       UserStore
	investments InvestmentStore
	profits     ProfitStore
	rates       RateProvider
	lock        *locker.PerUser
	metrics     Recorder
	logger      *zap.Logger
	profitRate  float64

	now func() time.Time
}

// NewService создает новый сервис рефералов. profitRate — доля прибыли
// приглашенного, начисляемая рефереру.
func NewService(users UserStore, investments InvestmentStore, profits ProfitStore, rates RateProvider, lock *locker.PerUser, metrics Recorder, profitRate float64, logger *zap.Logger) *Service {
	return &Service{
		users:       users,
		investments: investments,
		profits:     profits,
		rates:       rates,
		lock:        lock,
		metrics:     metrics,
		logger:      logger,
		profitRate:  profitRate,
		now:         time.Now,
	}
}

// GetOrGenerateReferralCode получает существующий или генерирует новый реферальный код
func (s *Service) GetOrGenerateReferralCode(ctx context.Context, userID int64) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	// Если код уже есть, возвращаем его
	if user.ReferralCode != nil {
		return *user.ReferralCode, nil
	}

	// Генерируем уникальный код с проверкой
	maxAttempts := 10
	var code string

	for attempt := 0; attempt < maxAttempts; attempt++ {
		generatedCode, err := s.users.GenerateReferralCode(ctx)
		if err != nil {
			return "", fmt.Errorf("ошибка генерации реферального кода: %w", err)
		}

		// Код уникален, если им еще никто не владеет
		_, err = s.users.GetByReferralCode(ctx, generatedCode)
		if errors.Is(err, models.ErrNotFound) {
			code = generatedCode
			break
		}
		if err != nil {
			return "", fmt.Errorf("ошибка проверки реферального кода: %w", err)
		}

		// Код уже существует, пробуем снова
		s.logger.Warn("сгенерированный код уже существует, пробуем снова",
			zap.String("code", generatedCode),
			zap.Int("attempt", attempt+1))
	}

	if code == "" {
		return "", fmt.Errorf("не удалось сгенерировать уникальный реферальный код после %d попыток", maxAttempts)
	}

	// Обновляем пользователя с новым кодом
	user.ReferralCode = &code
	if err := s.users.Update(ctx, user); err != nil {
		return "", fmt.Errorf("ошибка обновления пользователя: %w", err)
	}

	return code, nil
}

// ValidateReferralCode проверяет валидность реферального кода и возвращает
// его владельца
func (s *Service) ValidateReferralCode(ctx context.Context, referralCode string) (*models.User, error) {
	user, err := s.users.GetByReferralCode(ctx, referralCode)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidReferralCode
		}
		return nil, fmt.Errorf("ошибка проверки реферального кода: %w", err)
	}

	return user, nil
}

// LinkReferral привязывает пользователя к владельцу реферального кода.
// Привязка к самому себе запрещена; уже привязанный пользователь не
// перепривязывается.
func (s *Service) LinkReferral(ctx context.Context, userID int64, referralCode string) error {
	referrer, err := s.ValidateReferralCode(ctx, referralCode)
	if err != nil {
		return err
	}

	if referrer.ID == userID {
		return models.ErrSelfReferral
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	if user.ReferredBy != nil {
		return fmt.Errorf("пользователь %d уже привязан к рефереру %d", userID, *user.ReferredBy)
	}

	user.ReferredBy = &referrer.ID
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("ошибка привязки реферала: %w", err)
	}

	s.logger.Info("пользователь привязан к рефереру",
		zap.Int64("user_id", userID),
		zap.Int64("referrer_id", referrer.ID))

	return nil
}

// ListReferred возвращает пользователей, приглашенных реферером
func (s *Service) ListReferred(ctx context.Context, referrerID int64) ([]*models.User, error) {
	users, err := s.users.ListReferred(ctx, referrerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения приглашенных пользователей: %w", err)
	}

	return users, nil
}

// TotalReferralProfit возвращает суммарную реферальную прибыль реферера
// по последнему пересчету
func (s *Service) TotalReferralProfit(ctx context.Context, referrerID int64) (float64, error) {
	total, err := s.profits.TotalByReferrer(ctx, referrerID)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения реферальной прибыли: %w", err)
	}

	return total, nil
}

// ProfitHistory возвращает записи реферальной прибыли реферера по
// каждому приглашенному пользователю
func (s *Service) ProfitHistory(ctx context.Context, referrerID int64) ([]*models.ReferralProfit, error) {
	profits, err := s.profits.ListByReferrer(ctx, referrerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории реферальной прибыли: %w", err)
	}

	return profits, nil
}

// UpdateReferralProfits пересчитывает реферальную прибыль по всем
// пользователям с реферером. Для каждой пары (реферер, приглашенный)
// запись перезаписывается целиком, поэтому повторный запуск без изменения
// инвестиций дает тот же результат. Ошибка по одному пользователю
// логируется и не прерывает пересчет остальных.
func (s *Service) UpdateReferralProfits(ctx context.Context) error {
	referred, err := s.users.ListWithReferrer(ctx)
	if err != nil {
		return fmt.Errorf("ошибка получения пользователей с реферером: %w", err)
	}

	updated := 0
	failed := 0

	for _, user := range referred {
		if err := s.updateUserProfit(ctx, user); err != nil {
			failed++
			s.logger.Error("ошибка пересчета реферальной прибыли пользователя",
				zap.Int64("user_id", user.ID),
				zap.Int64("referrer_id", *user.ReferredBy),
				zap.Error(err))
			continue
		}
		updated++
	}

	if s.metrics != nil {
		s.metrics.RecordReferralProfitRun(updated, failed)
	}

	s.logger.Info("пересчет реферальной прибыли завершен",
		zap.Int("updated", updated),
		zap.Int("failed", failed))

	return nil
}

// updateUserProfit пересчитывает реферальную прибыль по одному
// приглашенному пользователю. Пользователь блокируется на время расчета,
// чтобы срез прибыли не разъехался с параллельным выводом.
func (s *Service) updateUserProfit(ctx context.Context, user *models.User) error {
	s.lock.Lock(user.ID)
	defer s.lock.Unlock(user.ID)

	rate, err := s.rates.EffectiveDailyRate(ctx, user)
	if err != nil {
		return err
	}

	investments, err := s.investments.ListByUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("ошибка получения инвестиций: %w", err)
	}

	now := s.now()
	var totalProfit float64
	for _, inv := range investments {
		snap := inv.Snapshot(now, rate)
		totalProfit += snap.Profit + snap.LockedProfit
	}

	profit := &models.ReferralProfit{
		ReferrerID:     *user.ReferredBy,
		ReferredUserID: user.ID,
		ProfitAmount:   totalProfit * s.profitRate,
		Timestamp:      now,
	}

	if err := s.profits.Upsert(ctx, profit); err != nil {
		return fmt.Errorf("ошибка сохранения реферальной прибыли: %w", err)
	}

	return nil
}
