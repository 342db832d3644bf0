package level

import (
	"context"
	"fmt"
	"time"

	"tether-invest/pkg/models"

	"go.uber.org/zap"
)

// UserStore определяет доступ к пользователям, необходимый резолверу уровней
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	CountActiveReferred(ctx context.Context, referrerID int64) (int, error)
}

// InvestmentStore определяет доступ к инвестициям, необходимый резолверу уровней
type InvestmentStore interface {
	ListByUser(ctx context.Context, userID int64) ([]*models.Investment, error)
	SumAmountByUser(ctx context.Context, userID int64) (float64, error)
	Update(ctx context.Context, investment *models.Investment) error
}

// LevelStore определяет доступ к каталогу уровней
type LevelStore interface {
	GetByID(ctx context.Context, id int64) (*models.Level, error)
	GetHighestQualifying(ctx context.Context, activeUsers int, totalAmount float64) (*models.Level, error)
}

// Recorder записывает метрики переходов между уровнями
type Recorder interface {
	RecordLevelChange(direction string)
}

// Service пересчитывает уровень пользователя и согласует прибыль открытых
// инвестиций при переходе. Resolve — изменяющая команда, а не запрос:
// обнаружив переход, она сохраняет новый уровень и пересчитывает прибыль.
type Service struct {
	users       UserStore
	investments InvestmentStore
	levels      LevelStore
	metrics     Recorder
	logger      *zap.Logger
	dailyRate   float64

	now func() time.Time
}

// NewService создает новый сервис уровней. dailyRate — базовая дневная ставка
// до умножения на множитель уровня.
func NewService(users UserStore, investments InvestmentStore, levels LevelStore, metrics Recorder, dailyRate float64, logger *zap.Logger) *Service {
	return &Service{
		users:       users,
		investments: investments,
		levels:      levels,
		metrics:     metrics,
		logger:      logger,
		dailyRate:   dailyRate,
		now:         time.Now,
	}
}

// Resolve вычисляет текущий уровень пользователя по числу активных рефералов
// и суммарной инвестиции. При переходе сохраняет previous/current уровень
// пользователя, запускает пересчет прибыли и возвращает changed = true.
// Возвращает nil-уровень, если ни один уровень не подходит.
func (s *Service) Resolve(ctx context.Context, userID int64) (*models.Level, bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	activeUsers, err := s.users.CountActiveReferred(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка подсчета активных рефералов: %w", err)
	}

	totalAmount, err := s.investments.SumAmountByUser(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка подсчета суммы инвестиций: %w", err)
	}

	resolved, err := s.levels.GetHighestQualifying(ctx, activeUsers, totalAmount)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка подбора уровня: %w", err)
	}

	if !levelChanged(user.CurrentLevelID, resolved) {
		return resolved, false, nil
	}

	var from *models.Level
	if user.CurrentLevelID != nil {
		from, err = s.levels.GetByID(ctx, *user.CurrentLevelID)
		if err != nil {
			return nil, false, fmt.Errorf("ошибка получения текущего уровня: %w", err)
		}
	}

	user.PreviousLevelID = user.CurrentLevelID
	if resolved != nil {
		id := resolved.ID
		user.CurrentLevelID = &id
	} else {
		user.CurrentLevelID = nil
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, false, fmt.Errorf("ошибка сохранения уровня пользователя: %w", err)
	}

	if err := s.reconcile(ctx, user, from, resolved); err != nil {
		return nil, false, err
	}

	direction := "upgrade"
	if resolved.Rank() < from.Rank() {
		direction = "downgrade"
	}
	if s.metrics != nil {
		s.metrics.RecordLevelChange(direction)
	}

	s.logger.Info("уровень пользователя изменен",
		zap.Int64("user_id", userID),
		zap.String("direction", direction),
		zap.Int64("from_rank", from.Rank()),
		zap.Int64("to_rank", resolved.Rank()),
		zap.Int("active_users", activeUsers),
		zap.Float64("total_amount", totalAmount))

	return resolved, true, nil
}

// reconcile пересчитывает прибыль открытых инвестиций после перехода.
// Понижение: прибыль текущего цикла пересчитывается целиком по новой
// ставке и ЗАМЕНЯЕТ накопленную. Повышение: по новой ставке докредитуются
// только оставшиеся дни текущего цикла. После обработки previous_level_id
// всегда выравнивается с current_level_id.
func (s *Service) reconcile(ctx context.Context, user *models.User, from, to *models.Level) error {
	now := s.now()
	newRate := s.dailyRate * to.Multiplier()

	investments, err := s.investments.ListByUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("ошибка получения инвестиций для пересчета: %w", err)
	}

	for _, inv := range investments {
		switch {
		case to.Rank() < from.Rank():
			inv.WithdrawableProfit = inv.CycleProfit(inv.FullCycles(now), newRate)
		case to.Rank() > from.Rank():
			inv.WithdrawableProfit += float64(inv.RemainingCycleDays(now)) * inv.Amount * newRate
		}

		if err := s.investments.Update(ctx, inv); err != nil {
			return fmt.Errorf("ошибка сохранения пересчитанной инвестиции %d: %w", inv.ID, err)
		}
	}

	user.PreviousLevelID = user.CurrentLevelID
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("ошибка выравнивания предыдущего уровня: %w", err)
	}

	return nil
}

// EffectiveDailyRate возвращает эффективную дневную ставку пользователя:
// базовая ставка, умноженная на множитель текущего уровня (1 без уровня)
func (s *Service) EffectiveDailyRate(ctx context.Context, user *models.User) (float64, error) {
	if user.CurrentLevelID == nil {
		return s.dailyRate, nil
	}

	lvl, err := s.levels.GetByID(ctx, *user.CurrentLevelID)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения уровня пользователя: %w", err)
	}

	return s.dailyRate * lvl.ProfitMultiplier, nil
}

// levelChanged сравнивает текущий уровень пользователя с подобранным
func levelChanged(currentID *int64, resolved *models.Level) bool {
	if currentID == nil {
		return resolved != nil
	}
	if resolved == nil {
		return true
	}
	return *currentID != resolved.ID
}
