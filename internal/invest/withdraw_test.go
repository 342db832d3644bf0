package invest

import (
	"context"
	"errors"
	"testing"

	"tether-invest/pkg/models"
)

func TestWithdrawFoldsCompletedCycles(t *testing.T) {
	env := newTestEnv()
	env.users.users[1] = &models.User{ID: 1}

	// 35 дней: один завершенный цикл фиксирует 300 прибыли
	inv := &models.Investment{
		ID:          1,
		UserID:      1,
		Amount:      1000,
		StartTime:   env.now.AddDate(0, 0, -35),
		CycleLength: 30,
	}
	env.investments.items = append(env.investments.items, inv)

	result, err := env.service.Withdraw(context.Background(), 1, 100)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if result.TotalWithdrawn != 100 || result.RemainingAmount != 0 {
		t.Errorf("ожидался полный вывод 100, получено %+v", result)
	}
	if inv.WithdrawableProfit != 200 {
		t.Errorf("после фиксации 300 и вывода 100 ожидалось 200, получено %f", inv.WithdrawableProfit)
	}
	if inv.LastWithdrawTime == nil || !inv.LastWithdrawTime.Equal(env.now) {
		t.Errorf("якорь последнего вывода не обновлен: %+v", inv.LastWithdrawTime)
	}
	if !inv.StartTime.Equal(env.now.AddDate(0, 0, -35)) {
		t.Error("часы цикла не должны сбрасываться при частичном выводе прибыли")
	}

	if len(result.Entries) != 1 {
		t.Fatalf("ожидалась одна строка журнала, получено %d", len(result.Entries))
	}
	entry := result.Entries[0]
	if entry.InvestmentID != 1 || entry.Source != models.WithdrawalSourceProfit || entry.Amount != 100 {
		t.Errorf("некорректная строка журнала: %+v", entry)
	}
}

func TestWithdrawExactProfitResetsClock(t *testing.T) {
	env := newTestEnv()
	env.users.users[1] = &models.User{ID: 1}

	inv := &models.Investment{
		ID:          1,
		UserID:      1,
		Amount:      1000,
		StartTime:   env.now.AddDate(0, 0, -35),
		CycleLength: 30,
	}
	env.investments.items = append(env.investments.items, inv)

	result, err := env.service.Withdraw(context.Background(), 1, 300)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if result.TotalWithdrawn != 300 {
		t.Errorf("ожидался вывод 300, получено %f", result.TotalWithdrawn)
	}
	if inv.WithdrawableProfit != 0 {
		t.Errorf("прибыль должна быть выбрана до нуля, получено %f", inv.WithdrawableProfit)
	}
	if !inv.StartTime.Equal(env.now) {
		t.Errorf("полный вывод прибыли должен перезапускать часы цикла: %v", inv.StartTime)
	}
	if inv.Amount != 1000 {
		t.Errorf("тело не должно затрагиваться, получено %f", inv.Amount)
	}
}

func TestWithdrawProfitThenPrincipal(t *testing.T) {
	env := newTestEnv()
	env.users.users[1] = &models.User{ID: 1}

	// Старейшая инвестиция с зафиксированной прибылью и молодая без прибыли
	inv1 := &models.Investment{
		ID:                 1,
		UserID:             1,
		Amount:             100,
		StartTime:          env.now.AddDate(0, 0, -5),
		CycleLength:        30,
		WithdrawableProfit: 50,
	}
	inv2 := &models.Investment{
		ID:          2,
		UserID:      1,
		Amount:      200,
		StartTime:   env.now.AddDate(0, 0, -3),
		CycleLength: 30,
	}
	env.investments.items = append(env.investments.items, inv1, inv2)

	result, err := env.service.Withdraw(context.Background(), 1, 250)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if result.TotalWithdrawn != 250 || result.RemainingAmount != 0 {
		t.Errorf("ожидался полный вывод 250, получено %+v", result)
	}

	// Сначала вся доступная прибыль, затем тело от старейшей инвестиции
	want := []models.WithdrawalEntry{
		{InvestmentID: 1, Source: models.WithdrawalSourceProfit, Amount: 50},
		{InvestmentID: 1, Source: models.WithdrawalSourcePrincipal, Amount: 100},
		{InvestmentID: 2, Source: models.WithdrawalSourcePrincipal, Amount: 100},
	}
	if len(result.Entries) != len(want) {
		t.Fatalf("ожидалось %d строк журнала, получено %d", len(want), len(result.Entries))
	}
	for i, entry := range result.Entries {
		if entry != want[i] {
			t.Errorf("строка %d: ожидалось %+v, получено %+v", i, want[i], entry)
		}
	}

	if inv1.Amount != 0 {
		t.Errorf("тело старейшей инвестиции должно быть выбрано, получено %f", inv1.Amount)
	}
	if inv2.Amount != 100 {
		t.Errorf("тело второй инвестиции: ожидалось 100, получено %f", inv2.Amount)
	}

	// Инвестиция с нулевым телом сохраняется
	if len(env.investments.items) != 2 {
		t.Errorf("инвестиции не должны удаляться, получено %d", len(env.investments.items))
	}
}

func TestWithdrawPartialIsNotAnError(t *testing.T) {
	env := newTestEnv()
	env.users.users[1] = &models.User{ID: 1}

	env.investments.items = append(env.investments.items, &models.Investment{
		ID:          1,
		UserID:      1,
		Amount:      100,
		StartTime:   env.now.AddDate(0, 0, -2),
		CycleLength: 30,
	})

	result, err := env.service.Withdraw(context.Background(), 1, 500)
	if err != nil {
		t.Fatalf("нехватка средств не должна быть ошибкой: %v", err)
	}

	if result.TotalWithdrawn != 100 {
		t.Errorf("ожидался вывод 100, получено %f", result.TotalWithdrawn)
	}
	if result.RemainingAmount != 400 {
		t.Errorf("ожидался остаток 400, получено %f", result.RemainingAmount)
	}
}

func TestWithdrawInvalidAmount(t *testing.T) {
	env := newTestEnv()
	env.users.users[1] = &models.User{ID: 1}

	_, err := env.service.Withdraw(context.Background(), 1, 0)
	if !errors.Is(err, models.ErrInvalidAmount) {
		t.Errorf("ожидалась ошибка некорректной суммы, получено %v", err)
	}
}

func TestWithdrawTriggersLevelResolve(t *testing.T) {
	env := newTestEnv()
	env.users.users[1] = &models.User{ID: 1}

	env.investments.items = append(env.investments.items, &models.Investment{
		ID:          1,
		UserID:      1,
		Amount:      1000,
		StartTime:   env.now.AddDate(0, 0, -2),
		CycleLength: 30,
	})

	if _, err := env.service.Withdraw(context.Background(), 1, 500); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	// Уменьшение тела может опустить пользователя ниже порога уровня
	if env.resolver.resolveCalls != 1 {
		t.Errorf("ожидался один пересчет уровня, получено %d", env.resolver.resolveCalls)
	}
}

func TestConfirmWithdrawRunsAllocator(t *testing.T) {
	env := newTestEnv()
	env.users.users[1] = &models.User{ID: 1}

	env.investments.items = append(env.investments.items, &models.Investment{
		ID:                 1,
		UserID:             1,
		Amount:             1000,
		StartTime:          env.now.AddDate(0, 0, -2),
		CycleLength:        30,
		WithdrawableProfit: 80,
	})

	tr, err := env.service.CreateWithdrawRequest(context.Background(), 1, 60)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	confirmed, result, err := env.service.ConfirmTransaction(context.Background(), tr.ID, 10, true)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !confirmed.Confirmed {
		t.Error("заявка на вывод не подтверждена")
	}
	if result == nil || result.TotalWithdrawn != 60 {
		t.Errorf("ожидался результат вывода 60, получено %+v", result)
	}
}
