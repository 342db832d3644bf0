package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job интерфейс для периодических задач
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// entry связывает задачу с ее собственным периодом запуска
type entry struct {
	job    Job
	period time.Duration
}

// Scheduler управляет запуском периодических задач. Каждая задача
// работает со своим периодом в отдельной горутине.
type Scheduler struct {
	logger  *zap.Logger
	entries []entry
}

// NewScheduler создает новый планировщик задач
func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		logger:  logger,
		entries: make([]entry, 0),
	}
}

// AddJob регистрирует задачу с указанным периодом запуска
func (s *Scheduler) AddJob(job Job, period time.Duration) {
	s.entries = append(s.entries, entry{job: job, period: period})
	s.logger.Info("задача зарегистрирована в планировщике",
		zap.String("job", job.Name()),
		zap.Duration("period", period))
}

// Start запускает все зарегистрированные задачи и блокируется до отмены
// контекста. Каждая задача выполняется сразу при старте, затем по тикеру.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("запуск планировщика задач",
		zap.Int("jobs_count", len(s.entries)))

	var wg sync.WaitGroup
	for _, e := range s.entries {
		wg.Add(1)
		go func(e entry) {
			defer wg.Done()
			s.runLoop(ctx, e)
		}(e)
	}

	wg.Wait()
	s.logger.Info("остановка планировщика задач")
}

// runLoop крутит тикер одной задачи до отмены контекста
func (s *Scheduler) runLoop(ctx context.Context, e entry) {
	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	s.runJob(ctx, e.job)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("остановка задачи", zap.String("job", e.job.Name()))
			return
		case <-ticker.C:
			s.runJob(ctx, e.job)
		}
	}
}

// runJob запускает одну задачу и логирует результат
func (s *Scheduler) runJob(ctx context.Context, job Job) {
	start := time.Now()
	s.logger.Debug("запуск задачи", zap.String("job", job.Name()))

	if err := job.Run(ctx); err != nil {
		s.logger.Error("ошибка выполнения задачи",
			zap.String("job", job.Name()),
			zap.Error(err))
		return
	}

	s.logger.Debug("задача выполнена",
		zap.String("job", job.Name()),
		zap.Duration("elapsed", time.Since(start)))
}
