package invest

import (
	"context"
	"fmt"

	"tether-invest/pkg/models"

	"go.uber.org/zap"
)

// Withdraw обрабатывает заявку на вывод: двумя проходами в порядке от
// старейшей инвестиции сначала выбирается доступная прибыль, затем тело.
// Нехватка средств не является ошибкой — возвращается частичный результат
// с ненулевым RemainingAmount. После вывода уровень пользователя
// пересчитывается: уменьшение тела может опустить его ниже порога.
func (s *Service) Withdraw(ctx context.Context, userID int64, amount float64) (*models.WithdrawalResult, error) {
	s.lock.Lock(userID)
	defer s.lock.Unlock(userID)

	return s.withdraw(ctx, userID, amount)
}

// withdraw выполняет аллокацию вывода; вызывающая сторона обязана
// держать блокировку пользователя
func (s *Service) withdraw(ctx context.Context, userID int64, amount float64) (*models.WithdrawalResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("сумма вывода %f: %w", amount, models.ErrInvalidAmount)
	}

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
	result := &models.WithdrawalResult{RemainingAmount: amount}

	// Проход 1: вывод из доступной прибыли
	for _, inv := range investments {
		if result.RemainingAmount <= 0 {
			break
		}

		touched := false

		// Фиксация прибыли завершенных циклов от якоря последнего вывода
		if inv.IsCycleComplete(now) {
			cycles := inv.AccruableCycles(now)
			inv.WithdrawableProfit += inv.CycleProfit(cycles, rate)
			withdrawTime := now
			inv.LastWithdrawTime = &withdrawTime
			touched = true
		}

		if inv.WithdrawableProfit > 0 {
			drawn := minFloat(result.RemainingAmount, inv.WithdrawableProfit)
			inv.WithdrawableProfit -= drawn
			result.RemainingAmount -= drawn
			result.TotalWithdrawn += drawn
			result.Entries = append(result.Entries, models.WithdrawalEntry{
				InvestmentID: inv.ID,
				Source:       models.WithdrawalSourceProfit,
				Amount:       drawn,
			})
			touched = true

			// Полный вывод прибыли перезапускает часы цикла
			if inv.WithdrawableProfit == 0 {
				inv.StartTime = now
			}
		}

		if touched {
			if err := s.investments.Update(ctx, inv); err != nil {
				return nil, fmt.Errorf("ошибка сохранения инвестиции %d: %w", inv.ID, err)
			}
		}
	}

	// Проход 2: добор из тела инвестиций
	if result.RemainingAmount > 0 {
		for _, inv := range investments {
			if result.RemainingAmount <= 0 {
				break
			}
			if inv.Amount <= 0 {
				continue
			}

			drawn := minFloat(result.RemainingAmount, inv.Amount)
			inv.Amount -= drawn
			result.RemainingAmount -= drawn
			result.TotalWithdrawn += drawn
			result.Entries = append(result.Entries, models.WithdrawalEntry{
				InvestmentID: inv.ID,
				Source:       models.WithdrawalSourcePrincipal,
				Amount:       drawn,
			})

			if err := s.investments.Update(ctx, inv); err != nil {
				return nil, fmt.Errorf("ошибка сохранения инвестиции %d: %w", inv.ID, err)
			}
		}
	}

	// Уменьшение тела могло опустить пользователя ниже порога уровня
	if _, _, err := s.levels.Resolve(ctx, userID); err != nil {
		s.logger.Error("ошибка пересчета уровня после вывода",
			zap.Int64("user_id", userID),
			zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.RecordWithdrawal(amount, result.TotalWithdrawn)
	}

	s.logger.Info("вывод обработан",
		zap.Int64("user_id", userID),
		zap.Float64("requested", amount),
		zap.Float64("withdrawn", result.TotalWithdrawn),
		zap.Float64("remaining", result.RemainingAmount),
		zap.Int("entries", len(result.Entries)))

	return result, nil
}

// minFloat возвращает меньшее из двух значений
func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
