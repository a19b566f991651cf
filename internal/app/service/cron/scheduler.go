package cron

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tunehaus/backstage/internal/models"
	"github.com/tunehaus/backstage/pkg/clock"
	"github.com/tunehaus/backstage/pkg/metrics"
	"github.com/tunehaus/backstage/pkg/tool"
)

// runTimeout caps a single job execution.
const runTimeout = 10 * time.Minute

// RunResult is what a job hands back for its run record.
type RunResult struct {
	Processed int
	Failed    int
	Counters  map[string]any
}

type JobFunc func(ctx context.Context) (*RunResult, error)

type job struct {
	name      string
	interval  time.Duration
	autoStart bool
	fn        JobFunc

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	inFlight  bool
	stopCh    chan struct{}
}

// tryAcquire claims the job's single run slot. Scheduled ticks and manual
// triggers share it, so at most one run of a job is ever in flight.
func (j *job) tryAcquire() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.inFlight {
		return false
	}
	j.inFlight = true
	return true
}

func (j *job) release() {
	j.mu.Lock()
	j.inFlight = false
	j.mu.Unlock()
}

// Scheduler runs registered jobs on fixed tickers and records every
// execution in cron_job_runs. One goroutine per started job; a tick is
// skipped when the previous run of the same job is still in flight.
type Scheduler struct {
	db    *gorm.DB
	clock clock.Clock
	log   *zap.SugaredLogger

	mu    sync.Mutex
	jobs  map[string]*job
	order []string
	wg    sync.WaitGroup
}

func NewScheduler(db *gorm.DB, clk clock.Clock, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		db:    db,
		clock: clk,
		log:   log,
		jobs:  map[string]*job{},
	}
}

// Register adds a named job. Registering the same name twice replaces the
// definition, so wiring is idempotent across restarts.
func (s *Scheduler) Register(name string, interval time.Duration, autoStart bool, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; !exists {
		s.order = append(s.order, name)
	}
	s.jobs[name] = &job{name: name, interval: interval, autoStart: autoStart, fn: fn}
}

// Start launches the ticker loop of every auto-start job.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range s.order {
		if j := s.jobs[name]; j.autoStart {
			s.startLocked(j)
		}
	}
}

// Stop signals every running job loop and waits for in-flight runs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for _, j := range s.jobs {
		j.mu.Lock()
		if j.running {
			close(j.stopCh)
			j.running = false
		}
		j.mu.Unlock()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) StartJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	s.startLocked(j)
	return nil
}

func (s *Scheduler) StopJob(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		close(j.stopCh)
		j.running = false
	}
	return nil
}

func (s *Scheduler) startLocked(j *job) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return
	}
	j.running = true
	j.startedAt = s.clock.Now()
	j.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.loop(j, j.stopCh)
}

func (s *Scheduler) loop(j *job, stopCh chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	// spawned tracks this loop's own run so shutdown can drain it; the
	// job-level slot is what keeps ticks and manual triggers exclusive.
	spawned := false
	done := make(chan struct{}, 1)
	for {
		select {
		case <-stopCh:
			if spawned {
				<-done
			}
			return
		case <-done:
			spawned = false
		case <-ticker.C:
			if !j.tryAcquire() {
				s.log.Warnw("job tick skipped, previous run still in flight", "job", j.name)
				continue
			}
			spawned = true
			go func() {
				s.execute(context.Background(), j)
				j.release()
				done <- struct{}{}
			}()
		}
	}
}

// TriggerJob runs the named job once, immediately, on the caller's
// goroutine. Manual triggers work whether or not the ticker loop is
// running, but they share the job's run slot: a trigger that lands while
// a scheduled or manual run is in flight fails with ErrJobBusy.
func (s *Scheduler) TriggerJob(ctx context.Context, name string) (*models.CronJobRun, error) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if !j.tryAcquire() {
		return nil, fmt.Errorf("%w: %s", ErrJobBusy, name)
	}
	defer j.release()
	return s.execute(ctx, j), nil
}

// execute runs the job once and persists the run record. A panicking job is
// recorded as a failed run; it never takes the scheduler down.
func (s *Scheduler) execute(ctx context.Context, j *job) *models.CronJobRun {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	started := s.clock.Now()
	run := &models.CronJobRun{
		ID:        tool.GenerateUUIDV7(),
		JobName:   j.name,
		StartedAt: started,
	}

	result, err := s.invoke(ctx, j)
	finished := s.clock.Now()
	run.FinishedAt = &finished
	run.Success = err == nil
	if result != nil {
		run.Processed = result.Processed
		run.Failed = result.Failed
		if len(result.Counters) > 0 {
			run.Counters = datatypes.JSONMap(result.Counters)
		}
	}
	if err != nil {
		run.Error = err.Error()
		s.log.Errorw("job run failed", "job", j.name, "err", err)
	} else {
		s.log.Infow("job run finished",
			"job", j.name, "processed", run.Processed, "failed", run.Failed, "duration", run.Duration())
	}
	metrics.Cron().ObserveRun(j.name, finished.Sub(started), err)

	if dbErr := s.db.WithContext(context.WithoutCancel(ctx)).Create(run).Error; dbErr != nil {
		s.log.Errorw("failed to record job run", "job", j.name, "err", dbErr)
	}
	return run
}

func (s *Scheduler) invoke(ctx context.Context, j *job) (result *RunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
			s.log.Errorw("job panic", "job", j.name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	return j.fn(ctx)
}

// JobStatus is the live view of one registered job.
type JobStatus struct {
	Name     string             `json:"name"`
	Interval string             `json:"interval"`
	Running  bool               `json:"running"`
	LastRun  *models.CronJobRun `json:"last_run,omitempty"`
}

// Status reports every registered job with its most recent run.
func (s *Scheduler) Status(ctx context.Context) ([]*JobStatus, error) {
	s.mu.Lock()
	names := make([]string, len(s.order))
	copy(names, s.order)
	s.mu.Unlock()

	statuses := make([]*JobStatus, 0, len(names))
	for _, name := range names {
		s.mu.Lock()
		j := s.jobs[name]
		s.mu.Unlock()
		j.mu.Lock()
		st := &JobStatus{Name: j.name, Interval: j.interval.String(), Running: j.running}
		j.mu.Unlock()

		var last models.CronJobRun
		err := s.db.WithContext(ctx).
			Where("job_name = ?", name).
			Order("started_at desc").
			First(&last).Error
		switch {
		case err == nil:
			st.LastRun = &last
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("failed to load last run for %s: %w", name, err)
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// JobHistory returns the most recent runs of one job, newest first.
func (s *Scheduler) JobHistory(ctx context.Context, name string, limit int) ([]*models.CronJobRun, error) {
	s.mu.Lock()
	_, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	var runs []*models.CronJobRun
	err := s.db.WithContext(ctx).
		Where("job_name = ?", name).
		Order("started_at desc").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load job history: %w", err)
	}
	return runs, nil
}

// JobStatistic aggregates a job's runs over a trailing window.
type JobStatistic struct {
	JobName        string     `json:"job_name"`
	Runs           int64      `json:"runs"`
	Successes      int64      `json:"successes"`
	Failures       int64      `json:"failures"`
	TotalProcessed int64      `json:"total_processed"`
	TotalFailed    int64      `json:"total_failed"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	LastSuccess    bool       `json:"last_success"`
}

// JobStatistics aggregates run outcomes per job over the trailing window.
func (s *Scheduler) JobStatistics(ctx context.Context, days int) ([]*JobStatistic, error) {
	if days <= 0 || days > 90 {
		days = 7
	}
	since := s.clock.Now().AddDate(0, 0, -days)

	var runs []*models.CronJobRun
	err := s.db.WithContext(ctx).
		Where("started_at >= ?", since).
		Order("started_at asc").
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load job runs: %w", err)
	}

	byJob := map[string]*JobStatistic{}
	var order []string
	for _, run := range runs {
		stat, ok := byJob[run.JobName]
		if !ok {
			stat = &JobStatistic{JobName: run.JobName}
			byJob[run.JobName] = stat
			order = append(order, run.JobName)
		}
		stat.Runs++
		if run.Success {
			stat.Successes++
		} else {
			stat.Failures++
		}
		stat.TotalProcessed += int64(run.Processed)
		stat.TotalFailed += int64(run.Failed)
		startedAt := run.StartedAt
		stat.LastRunAt = &startedAt
		stat.LastSuccess = run.Success
	}

	stats := make([]*JobStatistic, 0, len(order))
	for _, name := range order {
		stats = append(stats, byJob[name])
	}
	return stats, nil
}

// JobHealth is the health verdict for one job.
type JobHealth struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	Healthy bool   `json:"healthy"`
	Reason  string `json:"reason,omitempty"`
}

// HealthCheck flags a running job as unhealthy when its last run failed or
// no run has finished within two intervals. Stopped jobs are reported but
// never unhealthy: not running is a state, not a failure.
func (s *Scheduler) HealthCheck(ctx context.Context) ([]*JobHealth, bool, error) {
	statuses, err := s.Status(ctx)
	if err != nil {
		return nil, false, err
	}

	allHealthy := true
	checks := make([]*JobHealth, 0, len(statuses))
	for _, st := range statuses {
		check := &JobHealth{Name: st.Name, Running: st.Running, Healthy: true}
		if st.Running {
			s.mu.Lock()
			j := s.jobs[st.Name]
			s.mu.Unlock()
			j.mu.Lock()
			interval, startedAt := j.interval, j.startedAt
			j.mu.Unlock()
			switch {
			case st.LastRun == nil:
				if s.clock.Now().Sub(startedAt) > 2*interval {
					check.Healthy = false
					check.Reason = "no run since start"
				}
			case !st.LastRun.Success:
				check.Healthy = false
				check.Reason = "last run failed"
			case s.clock.Now().Sub(st.LastRun.StartedAt) > 2*interval:
				check.Healthy = false
				check.Reason = "no recent run"
			}
		}
		if !check.Healthy {
			allHealthy = false
		}
		checks = append(checks, check)
	}
	return checks, allHealthy, nil
}
