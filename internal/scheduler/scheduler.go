// Package scheduler fires periodic maintenance jobs, such as the group
// synchronizer, on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/user/blurt/internal/gateway"
)

// JobFunc is one unit of scheduled work.
type JobFunc func(ctx context.Context) error

// Job is a named cron entry.
type Job struct {
	Name     string
	Schedule string
	Run      JobFunc
}

// Scheduler runs registered jobs on their schedules. A failed run is retried
// with the configured policy; runs of one job never overlap.
type Scheduler struct {
	policy *gateway.RetryPolicy
	logger *slog.Logger
	cron   *cron.Cron
	jobs   []Job

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate reports whether schedule parses.
func Validate(schedule string) error {
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return nil
}

// New creates a Scheduler. A nil policy runs each job once per tick.
func New(policy *gateway.RetryPolicy, logger *slog.Logger) *Scheduler {
	if policy == nil {
		policy = &gateway.RetryPolicy{MaxAttempts: 1, Multiplier: 1}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{policy: policy, logger: logger, cron: newCron()}
}

func newCron() *cron.Cron {
	return cron.New(cron.WithParser(cronParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
}

// Add registers a job. An empty schedule disables the job.
func (s *Scheduler) Add(job Job) error {
	if job.Schedule == "" {
		s.logger.Info("job disabled", "name", job.Name)
		return nil
	}
	if job.Run == nil {
		return fmt.Errorf("job %s has no run function", job.Name)
	}
	if err := Validate(job.Schedule); err != nil {
		return fmt.Errorf("job %s: %w", job.Name, err)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Start registers every job as a cron entry and starts the cron ticker. Jobs
// run under ctx; cancelling it aborts in-flight retries.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	for _, job := range s.jobs {
		job := job
		if _, err := s.cron.AddFunc(job.Schedule, func() { s.fire(job) }); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name, err)
		}
		s.logger.Info("scheduled job", "name", job.Name, "schedule", job.Schedule)
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) fire(job Job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	s.logger.Debug("cron firing job", "name", job.Name)
	if err := s.policy.Execute(ctx, job.Run); err != nil {
		s.logger.Error("scheduled job failed", "name", job.Name, "error", err)
	}
}

// Reload stops the existing cron, creates a new one and starts it again
// with the registered jobs.
func (s *Scheduler) Reload(ctx context.Context) error {
	s.Stop()
	s.cron = newCron()
	return s.Start(ctx)
}

// Stop cancels in-flight jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}
