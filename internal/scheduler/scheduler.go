// Package scheduler runs the fixed-tick loop that feeds due schedules to
// the executor. Single process, single loop; inter-job parallelism lives
// in the executor.
package scheduler

import (
	"time"

	"terrasync/internal/config"
	"terrasync/internal/executor"
	"terrasync/internal/logger"
	"terrasync/internal/repository"

	"go.uber.org/zap"
)

type Scheduler struct {
	executor  *executor.Executor
	cfg       *config.Config
	schedRepo *repository.ScheduleRepository
	histRepo  *repository.HistoryRepository

	reloadCh chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func New(exec *executor.Executor, cfg *config.Config) *Scheduler {
	return &Scheduler{
		executor:  exec,
		cfg:       cfg,
		schedRepo: repository.NewScheduleRepository(),
		histRepo:  repository.NewHistoryRepository(),
		reloadCh:  make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start reconciles state left behind by a previous process, then begins
// ticking.
func (s *Scheduler) Start() {
	s.reconcile()
	go s.loop()
}

// Stop halts the tick loop. In-flight runs are not cancelled; they drain
// on their own.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// Reload picks up a changed tick interval without restarting the loop.
func (s *Scheduler) Reload() {
	select {
	case s.reloadCh <- struct{}{}:
	default:
	}
}

// reconcile finalizes runs orphaned by a crash: the registry is empty at
// boot, so any history still running and any schedule still marked
// running belong to a process that no longer exists.
func (s *Scheduler) reconcile() {
	orphans, err := s.histRepo.MarkOrphansFailed("process terminated during run")
	if err != nil {
		logger.Log.Warn("failed to reconcile orphaned histories", zap.Error(err))
	} else if orphans > 0 {
		logger.Log.Info("marked orphaned runs as failed", zap.Int64("count", orphans))
	}

	reset, err := s.schedRepo.ResetRunning()
	if err != nil {
		logger.Log.Warn("failed to reset running schedules", zap.Error(err))
	} else if reset > 0 {
		logger.Log.Info("reset stuck schedules to idle", zap.Int64("count", reset))
	}
}

func (s *Scheduler) loop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.Tick())
	defer ticker.Stop()

	logger.Log.Info("scheduler started", zap.Duration("tick", s.cfg.Tick()))

	for {
		select {
		case now := <-ticker.C:
			started, err := s.executor.RunDue(now)
			if err != nil {
				logger.Log.Error("tick failed", zap.Error(err))
				continue
			}
			if started > 0 {
				logger.Log.Info("tick started jobs", zap.Int("count", started))
			}

		case <-s.reloadCh:
			ticker.Reset(s.cfg.Tick())
			logger.Log.Info("scheduler tick updated", zap.Duration("tick", s.cfg.Tick()))

		case <-s.stopCh:
			logger.Log.Info("scheduler stopped")
			return
		}
	}
}
