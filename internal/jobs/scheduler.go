package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one unit of periodic background work.
type Job interface {
	Name() string
	Run() error
}

// Scheduler runs its jobs on a shared interval. It implements
// cartridge.BackgroundWorker.
type Scheduler struct {
	logger   *slog.Logger
	interval time.Duration
	jobs     []Job

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	ticker    *time.Ticker
	isRunning bool
	done      chan struct{}

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool
}

// NewScheduler creates a scheduler for jobs. A non-positive interval
// disables the periodic loop; RunOnce still works.
func NewScheduler(logger *slog.Logger, interval time.Duration, jobs ...Job) *Scheduler {
	return &Scheduler{
		logger:   logger,
		interval: interval,
		jobs:     jobs,
	}
}

// executeJobSafely runs a job only if no other job is currently executing.
// A job that panics still counts as run.
func (s *Scheduler) executeJobSafely(job Job) (ran bool) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", job.Name()))
		s.processingMutex.Unlock()
		return false
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", job.Name()),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	ran = true
	if err := job.Run(); err != nil {
		s.logger.Error("Error executing job", slog.String("job", job.Name()), slog.Any("error", err))
	}
	return ran
}

// RunOnce executes every job a single time and reports how many ran.
func (s *Scheduler) RunOnce() int {
	ran := 0
	for _, job := range s.jobs {
		if s.executeJobSafely(job) {
			ran++
		}
	}
	return ran
}

// Start begins the periodic loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.interval <= 0 || len(s.jobs) == 0 {
		s.logger.Info("Background jobs are disabled.")
		return nil
	}
	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.ticker = time.NewTicker(s.interval)
	s.done = make(chan struct{})
	s.isRunning = true

	s.logger.Info("Starting background jobs",
		slog.Duration("interval", s.interval),
		slog.Int("jobs", len(s.jobs)))

	go s.loop(s.ctx, s.ticker, s.done)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, ticker *time.Ticker, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ticker.C:
			s.RunOnce()
		case <-ctx.Done():
			s.logger.Info("Background jobs loop stopped")
			return
		}
	}
}

// Stop halts the loop and waits for the current run to finish.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.logger.Info("Stopping background jobs...")
	s.ticker.Stop()
	s.cancel()
	done := s.done
	s.isRunning = false
	s.mu.Unlock()

	<-done
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether the loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
