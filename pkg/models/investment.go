package models

import (
	"time"
)

// DefaultCycleLength — длина цикла начисления по умолчанию, в днях
const DefaultCycleLength = 30

// Investment представляет одну подтвержденную инвестицию пользователя.
// Amount уменьшается при выводе из тела, WithdrawableProfit растет при
// завершении циклов и уменьшается при выводе прибыли. Запись никогда
// не удаляется, даже когда Amount достигает нуля.
type Investment struct {
	ID                 int64      `json:"id" db:"id"`
	UserID             int64      `json:"user_id" db:"user_id"`
	Amount             float64    `json:"amount" db:"amount"`
	StartTime          time.Time  `json:"start_time" db:"start_time"` // Якорь цикла; сбрасывается при полном выводе прибыли
	CycleLength        int        `json:"cycle_length" db:"cycle_length"`
	WithdrawableProfit float64    `json:"withdrawable_profit" db:"withdrawable_profit"`
	LastWithdrawTime   *time.Time `json:"last_withdraw_time" db:"last_withdraw_time"` // Якорь доначисления после первого вывода
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
}

// cycleLength возвращает длину цикла с учетом значения по умолчанию
func (i *Investment) cycleLength() int {
	if i.CycleLength <= 0 {
		return DefaultCycleLength
	}
	return i.CycleLength
}

// DaysActive возвращает число полных дней с начала текущего цикла.
// Точность — сутки, неполные дни отбрасываются.
func (i *Investment) DaysActive(now time.Time) int {
	days := int(now.Sub(i.StartTime).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// FullCycles возвращает число полностью завершенных циклов от start_time
func (i *Investment) FullCycles(now time.Time) int {
	return i.DaysActive(now) / i.cycleLength()
}

// IsCycleComplete сообщает, завершен ли хотя бы один цикл от start_time.
// Проверка не зависит от last_withdraw_time и используется как быстрое
// предусловие перед фиксацией прибыли.
func (i *Investment) IsCycleComplete(now time.Time) bool {
	return i.FullCycles(now) > 0
}

// AccruedProfit возвращает прибыль завершенных циклов, еще не
// зафиксированную в withdrawable_profit. dailyRate — эффективная дневная
// ставка (базовая ставка, умноженная на множитель уровня пользователя).
func (i *Investment) AccruedProfit(now time.Time, dailyRate float64) float64 {
	return float64(i.FullCycles(now)*i.cycleLength()) * i.Amount * dailyRate
}

// LockedProfit возвращает прибыль текущего незавершенного цикла
func (i *Investment) LockedProfit(now time.Time, dailyRate float64) float64 {
	return float64(i.DaysActive(now)%i.cycleLength()) * i.Amount * dailyRate
}

// Snapshot возвращает чистую проекцию состояния инвестиции на момент now.
// Проекция не изменяет withdrawable_profit: фиксация происходит только при
// выводе или пересчете уровня.
func (i *Investment) Snapshot(now time.Time, dailyRate float64) ProfitSnapshot {
	return ProfitSnapshot{
		Amount:       i.Amount,
		Profit:       i.WithdrawableProfit + i.AccruedProfit(now, dailyRate),
		LockedProfit: i.LockedProfit(now, dailyRate),
	}
}

// AccruableCycles возвращает число циклов, завершенных с момента последнего
// вывода (или с start_time, если выводов еще не было). Именно эти циклы
// фиксируются в withdrawable_profit при выводе.
func (i *Investment) AccruableCycles(now time.Time) int {
	anchor := i.StartTime
	if i.LastWithdrawTime != nil {
		anchor = *i.LastWithdrawTime
	}
	days := int(now.Sub(anchor).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days / i.cycleLength()
}

// CycleProfit возвращает прибыль за заданное число полных циклов
func (i *Investment) CycleProfit(cycles int, dailyRate float64) float64 {
	return float64(cycles*i.cycleLength()) * i.Amount * dailyRate
}

// RemainingCycleDays возвращает число дней до конца текущего цикла.
// На границе цикла (и в день создания) возвращает 0: досрочный кредит
// при смене уровня не должен покрывать еще не начавшийся цикл.
func (i *Investment) RemainingCycleDays(now time.Time) int {
	elapsed := i.DaysActive(now) % i.cycleLength()
	if elapsed == 0 {
		return 0
	}
	return i.cycleLength() - elapsed
}
