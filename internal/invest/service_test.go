package invest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tether-invest/internal/config"
	"tether-invest/internal/locker"
	"tether-invest/pkg/models"

	"go.uber.org/zap"
)

type fakeUsers struct {
	users map[int64]*models.User
}

func (f *fakeUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) Update(ctx context.Context, user *models.User) error {
	f.users[user.ID] = user
	return nil
}

type fakeInvestments struct {
	nextID int64
	items  []*models.Investment
}

func (f *fakeInvestments) Create(ctx context.Context, investment *models.Investment) error {
	f.nextID++
	investment.ID = f.nextID
	f.items = append(f.items, investment)
	return nil
}

func (f *fakeInvestments) GetByID(ctx context.Context, id int64) (*models.Investment, error) {
	for _, inv := range f.items {
		if inv.ID == id {
			return inv, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeInvestments) Update(ctx context.Context, investment *models.Investment) error {
	return nil
}

func (f *fakeInvestments) ListByUser(ctx context.Context, userID int64) ([]*models.Investment, error) {
	var out []*models.Investment
	for _, inv := range f.items {
		if inv.UserID == userID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeInvestments) CountByUser(ctx context.Context, userID int64) (int, error) {
	count := 0
	for _, inv := range f.items {
		if inv.UserID == userID {
			count++
		}
	}
	return count, nil
}

type fakeTransactions struct {
	nextID       int64
	items        []*models.Transaction
	firstDeposit float64
}

func (f *fakeTransactions) Create(ctx context.Context, transaction *models.Transaction) error {
	f.nextID++
	transaction.ID = f.nextID
	f.items = append(f.items, transaction)
	return nil
}

func (f *fakeTransactions) GetByID(ctx context.Context, id int64) (*models.Transaction, error) {
	for _, tr := range f.items {
		if tr.ID == id {
			return tr, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeTransactions) Update(ctx context.Context, transaction *models.Transaction) error {
	return nil
}

func (f *fakeTransactions) ListByUser(ctx context.Context, userID int64) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for _, tr := range f.items {
		if tr.UserID == userID {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (f *fakeTransactions) ListByUserAndType(ctx context.Context, userID int64, transactionType string) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for _, tr := range f.items {
		if tr.UserID == userID && tr.Type == transactionType {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (f *fakeTransactions) ListUnconfirmed(ctx context.Context) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for _, tr := range f.items {
		if !tr.Confirmed {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (f *fakeTransactions) FirstConfirmedDepositAmount(ctx context.Context, userID int64) (float64, error) {
	return f.firstDeposit, nil
}

type fakeReferralProfits struct {
	total float64
}

func (f *fakeReferralProfits) TotalByReferrer(ctx context.Context, referrerID int64) (float64, error) {
	return f.total, nil
}

type fakeResolver struct {
	rate         float64
	resolveCalls int
}

func (f *fakeResolver) Resolve(ctx context.Context, userID int64) (*models.Level, bool, error) {
	f.resolveCalls++
	return nil, false, nil
}

func (f *fakeResolver) EffectiveDailyRate(ctx context.Context, user *models.User) (float64, error) {
	return f.rate, nil
}

type testEnv struct {
	users        *fakeUsers
	investments  *fakeInvestments
	transactions *fakeTransactions
	resolver     *fakeResolver
	service      *Service
	now          time.Time
}

func newTestEnv() *testEnv {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	env := &testEnv{
		users:        &fakeUsers{users: map[int64]*models.User{}},
		investments:  &fakeInvestments{},
		transactions: &fakeTransactions{},
		resolver:     &fakeResolver{rate: 0.01},
		now:          now,
	}

	cfg := config.InvestConfig{
		BaseDailyRate:   0.01,
		ReferralBonus:   5,
		MinFirstDeposit: 100,
		CycleLength:     30,
		WalletAddress:   "TYkKWFnNBsKLsqopLktWfKY9PQm7vE5SJw",
	}

	env.service = NewService(
		env.users,
		env.investments,
		env.transactions,
		&fakeReferralProfits{},
		env.resolver,
		locker.NewPerUser(),
		nil,
		cfg,
		zap.NewNop(),
	)
	env.service.now = func() time.Time { return now }

	return env
}

func TestCreateDepositRequestMinFirstDeposit(t *testing.T) {
	env := newTestEnv()
	env.users.users[1] = &models.User{ID: 1, Username: "alice"}

	_, _, err := env.service.CreateDepositRequest(context.Background(), 1, 50)
	if !errors.Is(err, models.ErrMinFirstDeposit) {
		t.Errorf("ожидалась ошибка минимального первого депозита, получено %v", err)
	}

	// После первого подтвержденного депозита порог не действует
	env.transactions.firstDeposit = 500
	tr, wallet, err := env.service.CreateDepositRequest(context.Background(), 1, 50)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if wallet == "" {
		t.Error("ожидался адрес кошелька")
	}
	if tr.Type != models.TransactionTypeDeposit || tr.Confirmed {
		t.Errorf("ожидалась неподтвержденная заявка на депозит, получено %+v", tr)
	}
}

func TestCreateDepositRequestInvalidAmount(t *testing.T) {
	env := newTestEnv()
	env.users.users[1] = &models.User{ID: 1}

	_, _, err := env.service.CreateDepositRequest(context.Background(), 1, -10)
	if !errors.Is(err, models.ErrInvalidAmount) {
		t.Errorf("ожидалась ошибка некорректной суммы, получено %v", err)
	}
}

func TestConfirmDepositCreatesInvestment(t *testing.T) {
	env := newTestEnv()
	env.users.users[1] = &models.User{ID: 1, Username: "alice"}

	tr, _, err := env.service.CreateDepositRequest(context.Background(), 1, 500)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	confirmed, result, err := env.service.ConfirmTransaction(context.Background(), tr.ID, 10, true)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if result != nil {
		t.Errorf("для депозита не ожидается результат вывода: %+v", result)
	}
	if !confirmed.Confirmed || confirmed.ConfirmDate == nil || confirmed.AdminID == nil {
		t.Errorf("транзакция не помечена подтвержденной: %+v", confirmed)
	}

	if len(env.investments.items) != 1 {
		t.Fatalf("ожидалась одна инвестиция, получено %d", len(env.investments.items))
	}
	inv := env.investments.items[0]
	if inv.Amount != 500 || inv.CycleLength != 30 || !inv.StartTime.Equal(env.now) {
		t.Errorf("инвестиция создана некорректно: %+v", inv)
	}

	if env.resolver.resolveCalls == 0 {
		t.Error("после депозита должен запускаться пересчет уровня")
	}
}

func TestConfirmDepositAwardsFirstInvestmentBonus(t *testing.T) {
	env := newTestEnv()
	referrerID := int64(1)
	env.users.users[1] = &models.User{ID: 1, Username: "referrer"}
	env.users.users[2] = &models.User{ID: 2, Username: "referred", ReferredBy: &referrerID}

	tr, _, _ := env.service.CreateDepositRequest(context.Background(), 2, 200)
	if _, _, err := env.service.ConfirmTransaction(context.Background(), tr.ID, 10, true); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if env.users.users[1].ReferralBonus != 5 {
		t.Errorf("ожидался бонус 5 за первую инвестицию, получено %f", env.users.users[1].ReferralBonus)
	}

	// Вторая инвестиция бонуса не дает
	tr2, _, _ := env.service.CreateDepositRequest(context.Background(), 2, 300)
	if _, _, err := env.service.ConfirmTransaction(context.Background(), tr2.ID, 10, true); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if env.users.users[1].ReferralBonus != 5 {
		t.Errorf("бонус должен начисляться один раз, получено %f", env.users.users[1].ReferralBonus)
	}
}

func TestConfirmTransactionTwice(t *testing.T) {
	env := newTestEnv()
	env.users.users[1] = &models.User{ID: 1}

	tr, _, _ := env.service.CreateDepositRequest(context.Background(), 1, 200)
	if _, _, err := env.service.ConfirmTransaction(context.Background(), tr.ID, 10, true); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	_, _, err := env.service.ConfirmTransaction(context.Background(), tr.ID, 10, true)
	if !errors.Is(err, models.ErrAlreadyConfirmed) {
		t.Errorf("ожидалась ошибка повторного подтверждения, получено %v", err)
	}
}

// lockstepTransactions хранит одну заявку с копирующей семантикой чтения
// (как строки из базы) и пропускает два первых чтения только вместе,
// чтобы оба подтверждения увидели заявку неподтвержденной
type lockstepTransactions struct {
	mu      sync.Mutex
	item    models.Transaction
	reads   int
	barrier sync.WaitGroup
}

func (g *lockstepTransactions) GetByID(ctx context.Context, id int64) (*models.Transaction, error) {
	g.mu.Lock()
	c := g.item
	g.reads++
	gated := g.reads <= 2
	g.mu.Unlock()

	if gated {
		g.barrier.Done()
		g.barrier.Wait()
	}
	return &c, nil
}

func (g *lockstepTransactions) Update(ctx context.Context, transaction *models.Transaction) error {
	g.mu.Lock()
	g.item = *transaction
	g.mu.Unlock()
	return nil
}

func (g *lockstepTransactions) Create(ctx context.Context, transaction *models.Transaction) error {
	return nil
}

func (g *lockstepTransactions) ListByUser(ctx context.Context, userID int64) ([]*models.Transaction, error) {
	return nil, nil
}

func (g *lockstepTransactions) ListByUserAndType(ctx context.Context, userID int64, transactionType string) ([]*models.Transaction, error) {
	return nil, nil
}

func (g *lockstepTransactions) ListUnconfirmed(ctx context.Context) ([]*models.Transaction, error) {
	return nil, nil
}

func (g *lockstepTransactions) FirstConfirmedDepositAmount(ctx context.Context, userID int64) (float64, error) {
	return 0, nil
}

func TestConfirmTransactionConcurrentDeposit(t *testing.T) {
	users := &fakeUsers{users: map[int64]*models.User{1: {ID: 1}}}
	investments := &fakeInvestments{}

	gate := &lockstepTransactions{
		item: models.Transaction{ID: 1, UserID: 1, Type: models.TransactionTypeDeposit, Amount: 200},
	}
	gate.barrier.Add(2)

	cfg := config.InvestConfig{
		BaseDailyRate: 0.01,
		CycleLength:   30,
	}
	s := NewService(
		users,
		investments,
		gate,
		&fakeReferralProfits{},
		&fakeResolver{rate: 0.01},
		locker.NewPerUser(),
		nil,
		cfg,
		zap.NewNop(),
	)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, _, err := s.ConfirmTransaction(context.Background(), 1, 10, true)
			errs <- err
		}()
	}

	alreadyConfirmed := 0
	for i := 0; i < 2; i++ {
		err := <-errs
		switch {
		case err == nil:
		case errors.Is(err, models.ErrAlreadyConfirmed):
			alreadyConfirmed++
		default:
			t.Fatalf("неожиданная ошибка: %v", err)
		}
	}

	if len(investments.items) != 1 {
		t.Errorf("одна заявка на депозит породила %d инвестиций, ожидалась 1", len(investments.items))
	}
	if alreadyConfirmed != 1 {
		t.Errorf("ожидалось одно повторное подтверждение, получено %d", alreadyConfirmed)
	}
}

func TestRejectTransaction(t *testing.T) {
	env := newTestEnv()
	env.users.users[1] = &models.User{ID: 1}

	tr, _, _ := env.service.CreateDepositRequest(context.Background(), 1, 200)
	rejected, result, err := env.service.ConfirmTransaction(context.Background(), tr.ID, 10, false)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if result != nil {
		t.Errorf("для отклоненной заявки не ожидается результат: %+v", result)
	}
	if rejected.Confirmed {
		t.Error("отклоненная транзакция не должна быть подтверждена")
	}
	if rejected.AdminID == nil || *rejected.AdminID != 10 {
		t.Errorf("администратор решения не сохранен: %+v", rejected.AdminID)
	}

	if len(env.investments.items) != 0 {
		t.Errorf("отклоненный депозит не должен создавать инвестицию, получено %d", len(env.investments.items))
	}
}

func TestSubmitHash(t *testing.T) {
	env := newTestEnv()
	env.users.users[1] = &models.User{ID: 1}

	tr, _, _ := env.service.CreateDepositRequest(context.Background(), 1, 200)
	updated, err := env.service.SubmitHash(context.Background(), tr.ID, "0xabc123")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if updated.HashCode == nil || *updated.HashCode != "0xabc123" {
		t.Errorf("хеш платежа не сохранен: %+v", updated.HashCode)
	}
}

func TestTransactionHistoryByType(t *testing.T) {
	env := newTestEnv()
	env.users.users[1] = &models.User{ID: 1}
	env.transactions.firstDeposit = 500

	if _, _, err := env.service.CreateDepositRequest(context.Background(), 1, 200); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if _, err := env.service.CreateWithdrawRequest(context.Background(), 1, 50); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	deposits, err := env.service.TransactionHistoryByType(context.Background(), 1, models.TransactionTypeDeposit)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(deposits) != 1 || deposits[0].Type != models.TransactionTypeDeposit {
		t.Errorf("ожидалась одна заявка на депозит, получено %+v", deposits)
	}

	if _, err := env.service.TransactionHistoryByType(context.Background(), 1, "bonus"); err == nil {
		t.Error("неизвестный тип транзакции должен отклоняться")
	}
}

func TestProfitSummary(t *testing.T) {
	env := newTestEnv()
	env.users.users[1] = &models.User{ID: 1}

	// Одна инвестиция: 35 дней, цикл завершен, 5 дней текущего
	env.investments.items = append(env.investments.items, &models.Investment{
		ID:     1,
		UserID: 1,
		Amount: 1000,

		StartTime:   env.now.AddDate(0, 0, -35),
		CycleLength: 30,
	})

	summary, err := env.service.ProfitSummary(context.Background(), 1)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if summary.TotalAmount != 1000 {
		t.Errorf("TotalAmount: ожидалось 1000, получено %f", summary.TotalAmount)
	}
	if summary.WithdrawableProfit != 300 {
		t.Errorf("WithdrawableProfit: ожидалось 300, получено %f", summary.WithdrawableProfit)
	}
	if summary.LockedProfit != 50 {
		t.Errorf("LockedProfit: ожидалось 50, получено %f", summary.LockedProfit)
	}
	if summary.TotalInvestments != 1 {
		t.Errorf("TotalInvestments: ожидалось 1, получено %d", summary.TotalInvestments)
	}
}
