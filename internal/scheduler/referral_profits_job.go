package scheduler

import (
	"context"
	"fmt"

	"tether-invest/internal/referral"

	"go.uber.org/zap"
)

// ReferralProfitsJob отвечает за периодический пересчет реферальной прибыли
type ReferralProfitsJob struct {
	referralService *referral.Service
	logger          *zap.Logger
}

// NewReferralProfitsJob создает новую джобу пересчета реферальной прибыли
func NewReferralProfitsJob(referralService *referral.Service, logger *zap.Logger) *ReferralProfitsJob {
	return &ReferralProfitsJob{
		referralService: referralService,
		logger:          logger,
	}
}

// Name возвращает имя джобы для логов планировщика
func (j *ReferralProfitsJob) Name() string {
	return "referral_profits"
}

// Run запускает джобу пересчета реферальной прибыли
func (j *ReferralProfitsJob) Run(ctx context.Context) error {
	j.logger.Info("запуск джобы пересчета реферальной прибыли")

	if err := j.referralService.UpdateReferralProfits(ctx); err != nil {
		j.logger.Error("ошибка пересчета реферальной прибыли", zap.Error(err))
		return fmt.Errorf("ошибка пересчета реферальной прибыли: %w", err)
	}

	j.logger.Info("джоба пересчета реферальной прибыли завершена")
	return nil
}
