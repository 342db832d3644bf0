package user

import (
	"context"
	"errors"
	"fmt"

	"tether-invest/internal/referral"
	"tether-invest/internal/store"
	"tether-invest/pkg/models"

	"go.uber.org/zap"
)

// Service представляет сервис для работы с пользователями
type Service struct {
	store    store.Store
	referral *referral.Service
	logger   *zap.Logger
}

// NewService создает новый сервис пользователей
func NewService(store store.Store, referralService *referral.Service, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		referral: referralService,
		logger:   logger,
	}
}

// CreateUser создает нового пользователя. Если передан реферальный код,
// пользователь привязывается к его владельцу; неверный код не мешает
// регистрации и только логируется.
func (s *Service) CreateUser(ctx context.Context, username string, referralCode *string) (*models.User, error) {
	// Проверяем, существует ли пользователь
	existingUser, err := s.store.User().GetByUsername(ctx, username)
	if err == nil && existingUser != nil {
		return existingUser, nil // Пользователь уже существует
	}
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("ошибка проверки пользователя: %w", err)
	}

	user := &models.User{
		Username: username,
	}

	if err := s.store.User().Create(ctx, user); err != nil {
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	// Собственный реферальный код выдается сразу при регистрации
	if _, err := s.referral.GetOrGenerateReferralCode(ctx, user.ID); err != nil {
		s.logger.Warn("не удалось выдать реферальный код",
			zap.Int64("user_id", user.ID),
			zap.Error(err))
	}

	if referralCode != nil && *referralCode != "" {
		if err := s.referral.LinkReferral(ctx, user.ID, *referralCode); err != nil {
			s.logger.Warn("не удалось привязать пользователя к рефереру",
				zap.Int64("user_id", user.ID),
				zap.String("referral_code", *referralCode),
				zap.Error(err))
		}
	}

	s.logger.Info("создан новый пользователь",
		zap.Int64("user_id", user.ID),
		zap.String("username", username))

	// Перечитываем пользователя: код и привязка могли обновить запись
	return s.store.User().GetByID(ctx, user.ID)
}

// GetUser получает пользователя по ID
func (s *Service) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.store.User().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	return user, nil
}

// GetUserByUsername получает пользователя по имени
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.store.User().GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	return user, nil
}

// GetProfile собирает профиль пользователя: текущий уровень, приглашенных
// пользователей и сумму первого подтвержденного депозита
func (s *Service) GetProfile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	user, err := s.store.User().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	profile := &models.UserProfile{User: user}

	if user.CurrentLevelID != nil {
		level, err := s.store.Level().GetByID(ctx, *user.CurrentLevelID)
		if err != nil {
			return nil, fmt.Errorf("ошибка получения уровня пользователя: %w", err)
		}
		profile.Level = level
	}

	referred, err := s.store.User().ListReferred(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения приглашенных пользователей: %w", err)
	}
	profile.ReferredUsers = referred

	firstDeposit, err := s.store.Transaction().FirstConfirmedDepositAmount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения первого депозита: %w", err)
	}
	profile.FirstInvestmentAmount = firstDeposit

	return profile, nil
}
