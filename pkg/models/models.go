package models

import (
	"time"
)

// User представляет пользователя инвестиционной платформы
type User struct {
	ID            int64   `json:"id" db:"id"`
	Username      string  `json:"username" db:"username"`
	ReferralCode  *string `json:"referral_code" db:"referral_code"`   // Уникальный реферальный код
	ReferralBonus float64 `json:"referral_bonus" db:"referral_bonus"` // Накопленный разовый бонус за рефералов

	ReferredBy      *int64    `json:"referred_by" db:"referred_by"`             // ID пользователя, который пригласил
	CurrentLevelID  *int64    `json:"current_level_id" db:"current_level_id"`   // Текущий уровень (nullable)
	PreviousLevelID *int64    `json:"previous_level_id" db:"previous_level_id"` // Уровень до последнего перехода
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Admin представляет администратора, подтверждающего транзакции
type Admin struct {
	ID          int64     `json:"id" db:"id"`
	Username    string    `json:"username" db:"username"`
	LastDateLog time.Time `json:"last_date_log" db:"last_date_log"`
}

// Level представляет уровень доходности в каталоге уровней.
// Выбор уровня: среди уровней, оба порога которых выполнены,
// берется уровень с наибольшим ID (самый высокий tier).
type Level struct {
	ID               int64   `json:"id" db:"id"`
	MinActiveUsers   int     `json:"min_active_users" db:"min_active_users"` // Порог по активным рефералам
	MinAmount        float64 `json:"min_amount" db:"min_amount"`             // Порог по сумме инвестиций
	ProfitMultiplier float64 `json:"profit_multiplier" db:"profit_multiplier"`
}

// Transaction представляет заявку пользователя на депозит или вывод.
// Заявка не является инвестицией: инвестиция создается только после
// подтверждения депозитной заявки администратором.
type Transaction struct {
	ID          int64      `json:"id" db:"id"`
	UserID      int64      `json:"user_id" db:"user_id"`
	Type        string     `json:"type" db:"type_tran"` // deposit или withdraw
	Amount      float64    `json:"amount" db:"amount"`
	Confirmed   bool       `json:"confirmed" db:"confirmed"`
	ConfirmDate *time.Time `json:"confirm_date" db:"confirm_date"`
	Description string     `json:"description" db:"description"`
	HashCode    *string    `json:"hash_code" db:"hash_code"` // Хеш платежа вне платформы
	AdminID     *int64     `json:"admin_id" db:"admin_id"`   // Администратор, подтвердивший заявку
	RequestDate time.Time  `json:"request_date" db:"request_date"`
}

// ReferralProfit представляет последний рассчитанный срез реферальной
// прибыли по паре (реферер, приглашенный). Перезаписывается, не накапливается.
type ReferralProfit struct {
	ID             int64     `json:"id" db:"id"`
	ReferrerID     int64     `json:"referrer_id" db:"referrer_id"`
	ReferredUserID int64     `json:"referred_user_id" db:"referred_user_id"`
	ProfitAmount   float64   `json:"profit_amount" db:"profit_amount"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
}

// ProfitSnapshot представляет чистую проекцию состояния одной инвестиции.
// Profit включает withdrawable_profit плюс прибыль завершенных, но еще
// не зафиксированных циклов; LockedProfit — прибыль текущего неполного цикла.
type ProfitSnapshot struct {
	Amount       float64 `json:"amount"`
	Profit       float64 `json:"profit"`
	LockedProfit float64 `json:"locked_profit"`
}

// ProfitSummary представляет сводку по всем инвестициям пользователя
type ProfitSummary struct {
	TotalAmount        float64 `json:"total_amount"`
	WithdrawableProfit float64 `json:"withdrawable_profit"`
	LockedProfit       float64 `json:"locked_profit"`
	ReferralProfit     float64 `json:"referral_profit"`
	TotalInvestments   int     `json:"total_investments"`
}

// WithdrawalEntry представляет одну строку журнала вывода по инвестиции
type WithdrawalEntry struct {
	InvestmentID int64   `json:"investment_id"`
	Source       string  `json:"source"` // profit или principal
	Amount       float64 `json:"amount"`
}

// WithdrawalResult представляет итог обработки заявки на вывод.
// Частичный вывод не является ошибкой: RemainingAmount > 0 означает,
// что средств пользователя не хватило на всю заявку.
type WithdrawalResult struct {
	TotalWithdrawn  float64           `json:"total_withdrawn"`
	RemainingAmount float64           `json:"remaining_amount_to_withdraw"`
	Entries         []WithdrawalEntry `json:"transactions"`
}

// UserProfile представляет профиль пользователя с реферальной информацией
type UserProfile struct {
	User                  *User   `json:"user"`
	Level                 *Level  `json:"level,omitempty"`
	ReferredUsers         []*User `json:"referred_users"`
	FirstInvestmentAmount float64 `json:"first_investment_amount"`
}

// Constants для типов транзакций
const (
	TransactionTypeDeposit  = "deposit"
	TransactionTypeWithdraw = "withdraw"
)

// Constants для источников строк журнала вывода
const (
	WithdrawalSourceProfit    = "profit"
	WithdrawalSourcePrincipal = "principal"
)

// IsValidTransactionType проверяет корректность типа транзакции
func IsValidTransactionType(t string) bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdraw:
		return true
	default:
		return false
	}
}

// Multiplier возвращает множитель доходности уровня; для отсутствующего
// уровня действует множитель 1
func (l *Level) Multiplier() float64 {
	if l == nil {
		return 1
	}
	return l.ProfitMultiplier
}

// Rank возвращает ранг уровня для сравнения переходов: отсутствие уровня
// считается рангом 0, выше ранг — выше tier
func (l *Level) Rank() int64 {
	if l == nil {
		return 0
	}
	return l.ID
}
