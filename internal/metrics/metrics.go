package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics содержит все метрики приложения
type Metrics struct {
	logger *zap.Logger

	// Счетчики
	depositsConfirmed   prometheus.Counter
	depositAmount       prometheus.Counter
	withdrawalsTotal    prometheus.Counter
	levelChanges        *prometheus.CounterVec
	referralProfitUsers *prometheus.CounterVec

	// Гистограммы
	withdrawalRequested prometheus.Histogram
	withdrawalWithdrawn prometheus.Histogram

	// Gauge метрики
	lastReferralProfitRun prometheus.Gauge
}

// New создает новый экземпляр метрик
func New(logger *zap.Logger) *Metrics {
	m := &Metrics{
		logger: logger,

		// Счетчики депозитов
		depositsConfirmed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "deposits_confirmed_total",
				Help: "Общее количество подтвержденных депозитов",
			},
		),
		depositAmount: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "deposit_amount_total",
				Help: "Суммарный объем подтвержденных депозитов",
			},
		),

		// Счетчик обработанных выводов
		withdrawalsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "withdrawals_total",
				Help: "Общее количество обработанных заявок на вывод",
			},
		),

		// Счетчики переходов между уровнями
		levelChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "level_changes_total",
				Help: "Общее количество переходов между уровнями",
			},
			[]string{"direction"}, // upgrade, downgrade
		),

		// Счетчики пересчета реферальной прибыли
		referralProfitUsers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "referral_profit_users_total",
				Help: "Количество пользователей, обработанных пересчетом реферальной прибыли",
			},
			[]string{"status"}, // updated, failed
		),

		// Гистограммы сумм вывода
		withdrawalRequested: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "withdrawal_requested_amount",
				Help:    "Запрошенная сумма вывода",
				Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
			},
		),
		withdrawalWithdrawn: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "withdrawal_withdrawn_amount",
				Help:    "Фактически выведенная сумма",
				Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
			},
		),

		// Gauge времени последнего пересчета реферальной прибыли
		lastReferralProfitRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "last_referral_profit_run_timestamp",
				Help: "Unix timestamp последнего пересчета реферальной прибыли",
			},
		),
	}

	// Регистрируем все метрики
	prometheus.MustRegister(
		m.depositsConfirmed,
		m.depositAmount,
		m.withdrawalsTotal,
		m.levelChanges,
		m.referralProfitUsers,
		m.withdrawalRequested,
		m.withdrawalWithdrawn,
		m.lastReferralProfitRun,
	)

	return m
}

// RecordDepositConfirmed записывает подтвержденный депозит
func (m *Metrics) RecordDepositConfirmed(amount float64) {
	m.depositsConfirmed.Inc()
	m.depositAmount.Add(amount)
	m.logger.Debug("метрика депозита записана", zap.Float64("amount", amount))
}

// RecordWithdrawal записывает обработанную заявку на вывод
func (m *Metrics) RecordWithdrawal(requested, withdrawn float64) {
	m.withdrawalsTotal.Inc()
	m.withdrawalRequested.Observe(requested)
	m.withdrawalWithdrawn.Observe(withdrawn)
	m.logger.Debug("метрика вывода записана",
		zap.Float64("requested", requested),
		zap.Float64("withdrawn", withdrawn))
}

// RecordLevelChange записывает переход пользователя между уровнями
func (m *Metrics) RecordLevelChange(direction string) {
	m.levelChanges.WithLabelValues(direction).Inc()
	m.logger.Debug("метрика перехода уровня записана", zap.String("direction", direction))
}

// RecordReferralProfitRun записывает итог пересчета реферальной прибыли
func (m *Metrics) RecordReferralProfitRun(updated, failed int) {
	m.referralProfitUsers.WithLabelValues("updated").Add(float64(updated))
	m.referralProfitUsers.WithLabelValues("failed").Add(float64(failed))
	m.lastReferralProfitRun.SetToCurrentTime()
	m.logger.Debug("метрика пересчета реферальной прибыли записана",
		zap.Int("updated", updated),
		zap.Int("failed", failed))
}

// Handler возвращает HTTP handler для метрик
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
