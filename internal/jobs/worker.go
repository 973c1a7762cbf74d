package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sjperalta/cashflow-api/pkg/logger"
)

// Job represents a background task
type Job func(ctx context.Context) error

// ErrorHandler is told about every failed or panicking job
type ErrorHandler func(name string, err error)

// Worker manages background jobs and scheduled tasks
type Worker struct {
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	queue         chan namedJob
	asyncSem      chan struct{}
	maxConcurrent int
	closed        atomic.Bool

	cron      *cron.Cron
	location  *time.Location
	schedules map[string]*ScheduleInfo

	onError ErrorHandler

	stats   WorkerStats
	statsMu sync.RWMutex
}

type namedJob struct {
	name string
	job  Job
}

// WorkerStats holds statistics about the worker
type WorkerStats struct {
	ActiveJobs    int            `json:"active_jobs"`
	CompletedJobs int64          `json:"completed_jobs"`
	FailedJobs    int64          `json:"failed_jobs"`
	QueueLength   int            `json:"queue_length"`
	MaxConcurrent int            `json:"max_concurrent"`
	Schedules     []ScheduleInfo `json:"schedules"`
}

// ScheduleInfo describes one recurring job
type ScheduleInfo struct {
	Name         string     `json:"name"`
	Schedule     string     `json:"schedule"`
	Runs         int64      `json:"runs"`
	Failures     int64      `json:"failures"`
	LastRun      *time.Time `json:"last_run"`
	LastDuration string     `json:"last_duration,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	NextRun      *time.Time `json:"next_run,omitempty"`

	cronID cron.EntryID
}

// NewWorker creates a worker with N concurrent processors. Cron schedules
// are evaluated in loc; nil means the local time zone.
func NewWorker(numWorkers int, loc *time.Location) *Worker {
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	// Allow 2x workers for async jobs
	asyncLimit := numWorkers * 2
	if asyncLimit < 10 {
		asyncLimit = 10
	}

	w := &Worker{
		ctx:           ctx,
		cancel:        cancel,
		queue:         make(chan namedJob, 100),
		asyncSem:      make(chan struct{}, asyncLimit),
		maxConcurrent: asyncLimit,
		location:      loc,
		schedules:     make(map[string]*ScheduleInfo),
	}

	w.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{})),
	)
	w.cron.Start()

	// Start worker goroutines
	for i := 0; i < numWorkers; i++ {
		w.wg.Add(1)
		go w.process(i)
	}

	return w
}

// OnError registers a callback for failed jobs (error reporting, alerts)
func (w *Worker) OnError(fn ErrorHandler) {
	w.onError = fn
}

// Enqueue adds a job to be processed by the worker pool
func (w *Worker) Enqueue(name string, job Job) {
	if w.closed.Load() {
		logger.Warn("[Worker] Shut down, dropping job", "job", name)
		return
	}
	select {
	case w.queue <- namedJob{name: name, job: job}:
	default:
		logger.Warn("[Worker] Queue full, running job synchronously", "job", name)
		w.run(name, job)
	}
}

// EnqueueAsync runs a job in a new goroutine (fire-and-forget), bounded by semaphore
func (w *Worker) EnqueueAsync(name string, job Job) {
	if w.closed.Load() {
		logger.Warn("[Worker] Shut down, dropping async job", "job", name)
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		// Acquire semaphore to limit concurrency
		w.asyncSem <- struct{}{}
		defer func() { <-w.asyncSem }()

		w.run(name, job)
	}()
}

// process handles jobs from the queue
func (w *Worker) process(workerID int) {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case nj, ok := <-w.queue:
			if !ok {
				return
			}
			start := time.Now()
			if err := w.run(nj.name, nj.job); err == nil {
				logger.Debug(fmt.Sprintf("[Worker %d] Job completed in %v", workerID, time.Since(start)), "job", nj.name)
			}
		}
	}
}

// run executes a job, recovering panics and recording the outcome
func (w *Worker) run(name string, job Job) (err error) {
	w.trackJobStart()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			logger.Error("[Worker] Job failed", "job", name, "error", err)
			w.trackJobFailure()
			if w.onError != nil {
				w.onError(name, err)
			}
		}
		w.trackJobEnd()
	}()
	return job(w.ctx)
}

// ScheduleEvery runs a job at fixed intervals. The first run happens after the interval (not at startup).
func (w *Worker) ScheduleEvery(name string, interval time.Duration, job Job) {
	w.register(name, "@every "+interval.String(), 0)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.tick(name, interval, job)
	}()
}

// ScheduleEveryImmediate runs a job once at startup, then at fixed intervals. Use this when the process
// may restart often so jobs run soon after start instead of waiting for the first interval.
func (w *Worker) ScheduleEveryImmediate(name string, interval time.Duration, job Job) {
	w.register(name, "@every "+interval.String()+" (immediate)", 0)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.runScheduledJob(name, job)
		w.tick(name, interval, job)
	}()
}

func (w *Worker) tick(name string, interval time.Duration, job Job) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.runScheduledJob(name, job)
		}
	}
}

// ScheduleCron runs a job on a standard five-field cron spec ("0 9 * * *")
// in the worker's time zone.
func (w *Worker) ScheduleCron(name, spec string, job Job) error {
	id, err := w.cron.AddFunc(spec, func() {
		w.runScheduledJob(name, job)
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q for %s: %w", spec, name, err)
	}
	w.register(name, spec, id)
	return nil
}

// ScheduleAt runs a job once at a specific time
func (w *Worker) ScheduleAt(name string, at time.Time, job Job) {
	w.register(name, "@at "+at.Format(time.RFC3339), 0)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		timer := time.NewTimer(time.Until(at))
		defer timer.Stop()

		select {
		case <-w.ctx.Done():
			return
		case <-timer.C:
			w.runScheduledJob(name, job)
		}
	}()
}

func (w *Worker) register(name, spec string, id cron.EntryID) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.schedules[name] = &ScheduleInfo{Name: name, Schedule: spec, cronID: id}
}

func (w *Worker) runScheduledJob(name string, job Job) {
	start := time.Now()
	err := w.run(name, job)
	elapsed := time.Since(start)

	w.statsMu.Lock()
	if info, ok := w.schedules[name]; ok {
		info.Runs++
		info.LastRun = &start
		info.LastDuration = elapsed.String()
		info.LastError = ""
		if err != nil {
			info.Failures++
			info.LastError = err.Error()
		}
	}
	w.statsMu.Unlock()

	if err == nil {
		logger.Info("[Scheduler] Job completed", "job", name, "elapsed", elapsed)
	}
}

// Shutdown gracefully stops all workers
func (w *Worker) Shutdown() {
	if !w.closed.CompareAndSwap(false, true) {
		return
	}
	// Wait for running cron jobs before cancelling their context
	<-w.cron.Stop().Done()
	w.cancel()
	close(w.queue)
	w.wg.Wait()
}

// Context returns the worker's context for checking cancellation
func (w *Worker) Context() context.Context {
	return w.ctx
}

// Location returns the time zone cron schedules run in
func (w *Worker) Location() *time.Location {
	return w.location
}

// GetStats returns the current worker statistics
func (w *Worker) GetStats() WorkerStats {
	w.statsMu.RLock()
	stats := w.stats
	stats.Schedules = make([]ScheduleInfo, 0, len(w.schedules))
	for _, info := range w.schedules {
		copied := *info
		if info.cronID != 0 {
			if next := w.cron.Entry(info.cronID).Next; !next.IsZero() {
				copied.NextRun = &next
			}
		}
		stats.Schedules = append(stats.Schedules, copied)
	}
	w.statsMu.RUnlock()

	sort.Slice(stats.Schedules, func(i, j int) bool { return stats.Schedules[i].Name < stats.Schedules[j].Name })
	stats.QueueLength = len(w.queue)
	stats.MaxConcurrent = w.maxConcurrent
	return stats
}

func (w *Worker) trackJobStart() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs++
}

// CompletedJobs counts every finished job; FailedJobs is the failed subset.
func (w *Worker) trackJobEnd() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs--
	w.stats.CompletedJobs++
}

func (w *Worker) trackJobFailure() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.FailedJobs++
}

// cronLogger adapts the cron library's logger to slog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("[Cron] "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("[Cron] "+msg, append(keysAndValues, "error", err)...)
}
