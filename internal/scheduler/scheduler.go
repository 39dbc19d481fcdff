// Package scheduler wraps robfig/cron/v3 to re-run a saved (lens, query,
// mode) triple on an interval, driving the same orchestration path as the
// CLI run command. Grounded on the teacher's
// internal/services/scheduler/scheduler_service.go (robfig/cron wrapper,
// job entry tracking, panic-recovered execution), simplified to this
// domain's single job shape: there is no event bus, crawler coordination,
// or job-definition storage here, just a fixed set of recurring
// ingestion jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// RunFunc executes one ingestion run for a saved (lens, query, mode)
// triple, the same path the CLI's run command drives.
type RunFunc func(ctx context.Context, lensID, query, mode string) error

// jobEntry tracks one registered recurring ingestion job.
type jobEntry struct {
	name      string
	lensID    string
	query     string
	mode      string
	schedule  string
	entryID   cron.EntryID
	isRunning bool
	lastRun   *time.Time
	lastError string
}

// Service runs recurring ingestion jobs on robfig/cron schedules.
type Service struct {
	cron    *cron.Cron
	logger  arbor.ILogger
	run     RunFunc
	mu      sync.Mutex
	jobs    map[string]*jobEntry
	running bool
}

func NewService(logger arbor.ILogger, run RunFunc) *Service {
	return &Service{
		cron:   cron.New(),
		logger: logger,
		run:    run,
		jobs:   map[string]*jobEntry{},
	}
}

// RegisterJob adds a recurring ingestion job. schedule is a standard
// five-field cron expression.
func (s *Service) RegisterJob(name, schedule, lensID, query, mode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("scheduler: job %s already registered", name)
	}

	entry := &jobEntry{name: name, lensID: lensID, query: query, mode: mode, schedule: schedule}

	entryID, err := s.cron.AddFunc(schedule, func() { s.executeJob(name) })
	if err != nil {
		return fmt.Errorf("scheduler: failed to add cron job %s: %w", name, err)
	}
	entry.entryID = entryID
	s.jobs[name] = entry

	s.logger.Debug().
		Str("job_name", name).
		Str("schedule", schedule).
		Str("lens_id", lensID).
		Str("query", query).
		Msg("scheduler: job registered")

	return nil
}

// Start begins running registered jobs on their schedules.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info().Msg("scheduler: started")
}

// Stop halts the scheduler, waiting for any in-flight job to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("scheduler: stopped")
}

// TriggerNow runs a registered job immediately, outside its schedule.
func (s *Service) TriggerNow(name string) error {
	s.mu.Lock()
	_, exists := s.jobs[name]
	s.mu.Unlock()
	if !exists {
		return fmt.Errorf("scheduler: job %s not found", name)
	}

	go s.executeJob(name)
	return nil
}

// executeJob runs one job's ingestion, recovering from panics and
// recording the outcome on the job entry.
func (s *Service) executeJob(name string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("job_name", name).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("scheduler: recovered from panic in job execution")

			s.mu.Lock()
			if entry, ok := s.jobs[name]; ok {
				entry.isRunning = false
				entry.lastError = fmt.Sprintf("panic: %v", r)
			}
			s.mu.Unlock()
		}
	}()

	s.mu.Lock()
	entry, exists := s.jobs[name]
	if !exists {
		s.mu.Unlock()
		return
	}
	entry.isRunning = true
	lensID, query, mode := entry.lensID, entry.query, entry.mode
	s.mu.Unlock()

	start := time.Now()
	err := s.run(context.Background(), lensID, query, mode)
	completed := time.Now()

	s.mu.Lock()
	entry.isRunning = false
	entry.lastRun = &completed
	if err != nil {
		entry.lastError = err.Error()
	} else {
		entry.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().
			Str("job_name", name).
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("scheduler: job execution failed")
		return
	}
	s.logger.Debug().
		Str("job_name", name).
		Dur("duration", time.Since(start)).
		Msg("scheduler: job execution completed")
}

// JobStatus is a point-in-time snapshot of one registered job.
type JobStatus struct {
	Name      string
	Schedule  string
	LensID    string
	Query     string
	Mode      string
	IsRunning bool
	LastRun   *time.Time
	LastError string
	NextRun   *time.Time
}

// Status returns a snapshot of one job's state.
func (s *Service) Status(name string) (JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.jobs[name]
	if !exists {
		return JobStatus{}, fmt.Errorf("scheduler: job %s not found", name)
	}

	var nextRun *time.Time
	cronEntry := s.cron.Entry(entry.entryID)
	if !cronEntry.Next.IsZero() {
		nextRun = &cronEntry.Next
	}

	return JobStatus{
		Name:      entry.name,
		Schedule:  entry.schedule,
		LensID:    entry.lensID,
		Query:     entry.query,
		Mode:      entry.mode,
		IsRunning: entry.isRunning,
		LastRun:   entry.lastRun,
		LastError: entry.lastError,
		NextRun:   nextRun,
	}, nil
}
