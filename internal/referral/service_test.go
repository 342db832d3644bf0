package referral

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tether-invest/internal/locker"
	"tether-invest/pkg/models"

	"go.uber.org/zap"
)

type fakeUsers struct {
	users     map[int64]*models.User
	nextCodes []string
}

func (f *fakeUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	for _, u := range f.users {
		if u.ReferralCode != nil && *u.ReferralCode == code {
			return u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeUsers) Update(ctx context.Context, user *models.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUsers) ListReferred(ctx context.Context, referrerID int64) ([]*models.User, error) {
	var out []*models.User
	for _, u := range f.users {
		if u.ReferredBy != nil && *u.ReferredBy == referrerID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) ListWithReferrer(ctx context.Context) ([]*models.User, error) {
	var out []*models.User
	// Детерминированный порядок по ID
	for id := int64(1); id <= int64(len(f.users)); id++ {
		if u, ok := f.users[id]; ok && u.ReferredBy != nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) GenerateReferralCode(ctx context.Context) (string, error) {
	if len(f.nextCodes) == 0 {
		return "", fmt.Errorf("коды закончились")
	}
	code := f.nextCodes[0]
	f.nextCodes = f.nextCodes[1:]
	return code, nil
}

type fakeInvestments struct {
	byUser  map[int64][]*models.Investment
	failFor int64
}

func (f *fakeInvestments) ListByUser(ctx context.Context, userID int64) ([]*models.Investment, error) {
	if f.failFor != 0 && f.failFor == userID {
		return nil, fmt.Errorf("база данных недоступна")
	}
	return f.byUser[userID], nil
}

type fakeProfits struct {
	byPair map[[2]int64]*models.ReferralProfit
}

func (f *fakeProfits) Upsert(ctx context.Context, profit *models.ReferralProfit) error {
	if f.byPair == nil {
		f.byPair = map[[2]int64]*models.ReferralProfit{}
	}
	f.byPair[[2]int64{profit.ReferrerID, profit.ReferredUserID}] = profit
	return nil
}

func (f *fakeProfits) ListByReferrer(ctx context.Context, referrerID int64) ([]*models.ReferralProfit, error) {
	var out []*models.ReferralProfit
	for _, p := range f.byPair {
		if p.ReferrerID == referrerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProfits) TotalByReferrer(ctx context.Context, referrerID int64) (float64, error) {
	var total float64
	for _, p := range f.byPair {
		if p.ReferrerID == referrerID {
			total += p.ProfitAmount
		}
	}
	return total, nil
}

type fakeRates struct {
	rate float64
}

func (f *fakeRates) EffectiveDailyRate(ctx context.Context, user *models.User) (float64, error) {
	return f.rate, nil
}

func newTestService(users *fakeUsers, investments *fakeInvestments, profits *fakeProfits, now time.Time) *Service {
	s := NewService(users, investments, profits, &fakeRates{rate: 0.01}, locker.NewPerUser(), nil, 0.01, zap.NewNop())
	s.now = func() time.Time { return now }
	return s
}

func TestGetOrGenerateReferralCode(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	existing := "EXIST123"

	users := &fakeUsers{
		users: map[int64]*models.User{
			1: {ID: 1, ReferralCode: &existing},
			2: {ID: 2},
		},
		nextCodes: []string{"EXIST123", "FRESH456"},
	}

	s := newTestService(users, &fakeInvestments{}, &fakeProfits{}, now)

	t.Run("существующий код возвращается как есть", func(t *testing.T) {
		code, err := s.GetOrGenerateReferralCode(context.Background(), 1)
		if err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
		if code != "EXIST123" {
			t.Errorf("ожидался код EXIST123, получен %s", code)
		}
	})

	t.Run("занятый код перегенерируется", func(t *testing.T) {
		code, err := s.GetOrGenerateReferralCode(context.Background(), 2)
		if err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
		if code != "FRESH456" {
			t.Errorf("ожидался код FRESH456, получен %s", code)
		}
		if users.users[2].ReferralCode == nil || *users.users[2].ReferralCode != "FRESH456" {
			t.Errorf("код не сохранен у пользователя: %+v", users.users[2].ReferralCode)
		}
	})
}

func TestLinkReferral(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	code := "REF00001"

	users := &fakeUsers{users: map[int64]*models.User{
		1: {ID: 1, ReferralCode: &code},
		2: {ID: 2},
	}}

	s := newTestService(users, &fakeInvestments{}, &fakeProfits{}, now)

	t.Run("привязка по коду", func(t *testing.T) {
		if err := s.LinkReferral(context.Background(), 2, code); err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
		if users.users[2].ReferredBy == nil || *users.users[2].ReferredBy != 1 {
			t.Errorf("пользователь не привязан: %+v", users.users[2].ReferredBy)
		}
	})

	t.Run("самоприглашение запрещено", func(t *testing.T) {
		err := s.LinkReferral(context.Background(), 1, code)
		if !errors.Is(err, models.ErrSelfReferral) {
			t.Errorf("ожидалась ошибка самоприглашения, получено %v", err)
		}
	})

	t.Run("неверный код", func(t *testing.T) {
		err := s.LinkReferral(context.Background(), 2, "NOPE")
		if !errors.Is(err, models.ErrInvalidReferralCode) {
			t.Errorf("ожидалась ошибка неверного кода, получено %v", err)
		}
	})

	t.Run("повторная привязка запрещена", func(t *testing.T) {
		if err := s.LinkReferral(context.Background(), 2, code); err == nil {
			t.Error("ожидалась ошибка повторной привязки")
		}
	})
}

func TestUpdateReferralProfits(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	referrerID := int64(1)

	users := &fakeUsers{users: map[int64]*models.User{
		1: {ID: 1},
		2: {ID: 2, ReferredBy: &referrerID},
	}}

	// 35 дней: прибыль 300 + замороженные 50
	investments := &fakeInvestments{byUser: map[int64][]*models.Investment{
		2: {{
			ID:          1,
			UserID:      2,
			Amount:      1000,
			StartTime:   now.AddDate(0, 0, -35),
			CycleLength: 30,
		}},
	}}
	profits := &fakeProfits{}

	s := newTestService(users, investments, profits, now)

	if err := s.UpdateReferralProfits(context.Background()); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	record := profits.byPair[[2]int64{1, 2}]
	if record == nil {
		t.Fatal("запись реферальной прибыли не создана")
	}
	// 1% от (300 + 50)
	if record.ProfitAmount != 3.5 {
		t.Errorf("ожидалась прибыль 3.5, получено %f", record.ProfitAmount)
	}

	// Повторный пересчет без изменения инвестиций дает тот же результат
	if err := s.UpdateReferralProfits(context.Background()); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(profits.byPair) != 1 {
		t.Errorf("запись должна перезаписываться, получено %d записей", len(profits.byPair))
	}
	if profits.byPair[[2]int64{1, 2}].ProfitAmount != 3.5 {
		t.Errorf("повторный пересчет изменил результат: %f", profits.byPair[[2]int64{1, 2}].ProfitAmount)
	}
}

func TestUpdateReferralProfitsIsolatesFailures(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	referrerID := int64(1)

	users := &fakeUsers{users: map[int64]*models.User{
		1: {ID: 1},
		2: {ID: 2, ReferredBy: &referrerID},
		3: {ID: 3, ReferredBy: &referrerID},
	}}

	investments := &fakeInvestments{
		byUser: map[int64][]*models.Investment{
			3: {{
				ID:          1,
				UserID:      3,
				Amount:      2000,
				StartTime:   now.AddDate(0, 0, -30),
				CycleLength: 30,
			}},
		},
		failFor: 2, // пересчет второго пользователя падает
	}
	profits := &fakeProfits{}

	s := newTestService(users, investments, profits, now)

	// Ошибка по одному пользователю не прерывает пересчет остальных
	if err := s.UpdateReferralProfits(context.Background()); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if profits.byPair[[2]int64{1, 2}] != nil {
		t.Error("запись для упавшего пользователя не должна создаваться")
	}
	record := profits.byPair[[2]int64{1, 3}]
	if record == nil {
		t.Fatal("пересчет остальных пользователей должен продолжаться")
	}
	// 1% от (600 + 0)
	if record.ProfitAmount != 6 {
		t.Errorf("ожидалась прибыль 6, получено %f", record.ProfitAmount)
	}
}

func TestTotalReferralProfit(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	profits := &fakeProfits{byPair: map[[2]int64]*models.ReferralProfit{
		{1, 2}: {ReferrerID: 1, ReferredUserID: 2, ProfitAmount: 3.5},
		{1, 3}: {ReferrerID: 1, ReferredUserID: 3, ProfitAmount: 6},
	}}

	s := newTestService(&fakeUsers{users: map[int64]*models.User{}}, &fakeInvestments{}, profits, now)

	total, err := s.TotalReferralProfit(context.Background(), 1)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if total != 9.5 {
		t.Errorf("ожидалась суммарная прибыль 9.5, получено %f", total)
	}
}
