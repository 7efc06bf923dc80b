// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultJobTimeout = 30 * time.Minute

var ErrJobNotFound = errors.New("job not found")

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

type job struct {
	name string
	spec string
	run  JobFunc
	id   cron.EntryID
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration

	mu   sync.Mutex
	jobs map[string]*job
}

// NewScheduler creates a new job scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	// standard 5-field format, seconds disabled
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:    c,
		logger:  logger,
		timeout: defaultJobTimeout,
		jobs:    make(map[string]*job),
	}
}

// Add registers run under name on the cron spec.
func (s *Scheduler) Add(name, spec string, run JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %q already registered", name)
	}
	j := &job{name: name, spec: spec, run: run}
	id, err := s.cron.AddFunc(spec, func() { _ = s.execute(j) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %q: %w", spec, name, err)
	}
	j.id = id
	s.jobs[name] = j
	return nil
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
}

// Stop gracefully stops all scheduled jobs. The returned context is done once
// running jobs have finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// Next reports when the named job runs next.
func (s *Scheduler) Next(name string) (time.Time, error) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.cron.Entry(j.id).Next, nil
}

// RunNow runs the named job synchronously outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(j)
}

func (s *Scheduler) execute(j *job) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	s.logger.Info("starting job", slog.String("job", j.name))

	if err := j.run(ctx); err != nil {
		s.logger.Error("job failed",
			slog.String("job", j.name),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err),
		)
		return err
	}

	s.logger.Info("job completed",
		slog.String("job", j.name),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}
