package services

import (
	"context"

	"github.com/sjperalta/cashflow-api/internal/jobs"
	"github.com/sjperalta/cashflow-api/pkg/logger"
)

type JobService struct {
	worker *jobs.Worker
}

func NewJobService(worker *jobs.Worker) *JobService {
	return &JobService{
		worker: worker,
	}
}

// GetStatus reports worker counters and every registered schedule
func (s *JobService) GetStatus() jobs.WorkerStats {
	return s.worker.GetStats()
}

// runAsync hands a job to the worker, or runs it inline when there is none
// (one-shot commands and tests).
func runAsync(worker *jobs.Worker, name string, job jobs.Job) {
	if worker == nil {
		if err := job(context.Background()); err != nil {
			logger.Error("[Job] Inline job failed", "job", name, "error", err)
		}
		return
	}
	worker.EnqueueAsync(name, job)
}
