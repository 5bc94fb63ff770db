package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sjperalta/transfer-ledger/pkg/logger"
)

// Job represents a background task
type Job func(ctx context.Context) error

// Worker runs fire-and-forget ledger side effects and the scheduled
// reconciliation pass
type Worker struct {
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	queue         chan namedJob
	asyncSem      chan struct{}
	maxConcurrent int
	stats         WorkerStats
	schedules     map[string]*ScheduleStatus
	statsMu       sync.RWMutex
	closeOnce     sync.Once
}

type namedJob struct {
	name string
	run  Job
}

// WorkerStats holds statistics about the worker
type WorkerStats struct {
	ActiveJobs    int   `json:"active_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
	FailedJobs    int64 `json:"failed_jobs"`
	QueueLength   int   `json:"queue_length"`
	MaxConcurrent int   `json:"max_concurrent"`
}

// ScheduleStatus reports the last outcome of a recurring job
type ScheduleStatus struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	LastRun   *time.Time    `json:"last_run,omitempty"`
	LastError string        `json:"last_error,omitempty"`
	Runs      int64         `json:"runs"`
}

// NewWorker creates a worker with N concurrent processors
func NewWorker(numWorkers int) *Worker {
	if numWorkers < 1 {
		numWorkers = 1
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
		schedules:     make(map[string]*ScheduleStatus),
	}

	for i := 0; i < numWorkers; i++ {
		w.wg.Add(1)
		go w.process(i)
	}

	return w
}

// Enqueue adds a job to be processed by the worker pool
func (w *Worker) Enqueue(name string, job Job) {
	select {
	case w.queue <- namedJob{name: name, run: job}:
	default:
		logger.Warn("[Worker] Queue full, running job synchronously", "job", name)
		w.runTracked(name, job)
	}
}

// EnqueueAsync runs a job in a new goroutine (fire-and-forget), bounded by semaphore
func (w *Worker) EnqueueAsync(name string, job Job) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		w.asyncSem <- struct{}{}
		defer func() { <-w.asyncSem }()

		w.runTracked(name, job)
	}()
}

func (w *Worker) process(workerID int) {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case job, ok := <-w.queue:
			if !ok {
				return
			}
			start := time.Now()
			if err := w.runTracked(job.name, job.run); err == nil {
				logger.Debug(fmt.Sprintf("[Worker %d] Job completed in %v", workerID, time.Since(start)), "job", job.name)
			}
		}
	}
}

// ScheduleEvery runs a job at fixed intervals. The first run happens after the interval.
func (w *Worker) ScheduleEvery(name string, interval time.Duration, job Job) {
	w.register(name, interval)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(name, interval, job)
	}()
}

// ScheduleEveryImmediate runs a job once at startup, then at fixed intervals
func (w *Worker) ScheduleEveryImmediate(name string, interval time.Duration, job Job) {
	w.register(name, interval)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.runScheduled(name, job)
		w.loop(name, interval, job)
	}()
}

func (w *Worker) loop(name string, interval time.Duration, job Job) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.runScheduled(name, job)
		}
	}
}

func (w *Worker) runScheduled(name string, job Job) {
	start := time.Now()
	err := w.runTracked(name, job)
	if err == nil {
		logger.Info(fmt.Sprintf("[Scheduler] Job completed in %v", time.Since(start)), "job", name)
	}

	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	if status, ok := w.schedules[name]; ok {
		status.LastRun = &start
		status.Runs++
		status.LastError = ""
		if err != nil {
			status.LastError = err.Error()
		}
	}
}

// runTracked executes job with stats bookkeeping and panic recovery
func (w *Worker) runTracked(name string, job Job) (err error) {
	w.trackJobStart()
	defer w.trackJobEnd()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
			logger.Error("[Worker] Job panic", "job", name, "panic", r)
			w.trackJobFailure()
		}
	}()

	if err = job(w.ctx); err != nil {
		logger.Error("[Worker] Job error", "job", name, "error", err)
		w.trackJobFailure()
	}
	return err
}

func (w *Worker) register(name string, interval time.Duration) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.schedules[name] = &ScheduleStatus{Name: name, Interval: interval}
}

// Shutdown gracefully stops all workers
func (w *Worker) Shutdown() {
	w.closeOnce.Do(func() {
		w.cancel()
		w.wg.Wait()
	})
}

// Context returns the worker's context for checking cancellation
func (w *Worker) Context() context.Context {
	return w.ctx
}

// GetStats returns the current worker statistics
func (w *Worker) GetStats() WorkerStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	stats := w.stats
	stats.QueueLength = len(w.queue)
	stats.MaxConcurrent = w.maxConcurrent
	return stats
}

// Schedules returns a snapshot of the recurring jobs
func (w *Worker) Schedules() []ScheduleStatus {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	out := make([]ScheduleStatus, 0, len(w.schedules))
	for _, s := range w.schedules {
		out = append(out, *s)
	}
	return out
}

func (w *Worker) trackJobStart() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs++
}

// trackJobEnd counts every finished job; FailedJobs is the failing subset
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
