// Package scheduler runs periodic jobs on independent tickers and keeps
// per-job run statistics.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Job is a unit of periodic work. Run returning an error wrapping ErrSkipped
// counts as a skipped run rather than a failure.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

var ErrSkipped = errors.New("run skipped")

type JobStatus struct {
	Name                string        `json:"name"`
	Interval            string        `json:"interval"`
	Runs                int64         `json:"runs"`
	Failures            int64         `json:"failures"`
	ConsecutiveFailures int64         `json:"consecutive_failures"`
	Skipped             int64         `json:"skipped"`
	LastError           string        `json:"last_error,omitempty"`
	LastRun             time.Time     `json:"last_run,omitzero"`
	LastDuration        time.Duration `json:"last_duration_ns"`
	Running             bool          `json:"running"`
}

type job struct {
	Job
	mu     sync.Mutex // serializes runs of this job
	status JobStatus
}

type Scheduler struct {
	jobs    []*job
	statsMu sync.RWMutex
	isSkip  func(error) bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New builds a scheduler. isSkip, if non-nil, marks additional errors as
// skipped runs.
func New(isSkip func(error) bool, jobs ...Job) *Scheduler {
	s := &Scheduler{isSkip: isSkip}
	for _, j := range jobs {
		s.jobs = append(s.jobs, &job{
			Job:    j,
			status: JobStatus{Name: j.Name, Interval: j.Interval.String()},
		})
	}
	return s
}

// Start runs each job once immediately, then on its interval, until ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, j)
	}
	slog.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop cancels the job loops and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	slog.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	defer s.wg.Done()

	s.runJob(ctx, j)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runJob(ctx, j)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, j *job) error {
	if !j.mu.TryLock() {
		s.record(j, func(st *JobStatus) { st.Skipped++ })
		slog.Warn("job still running, skipping", "job", j.Name)
		return ErrSkipped
	}
	defer j.mu.Unlock()

	s.record(j, func(st *JobStatus) { st.Running = true })
	start := time.Now()
	err := j.Run(ctx)
	elapsed := time.Since(start)

	s.record(j, func(st *JobStatus) {
		st.Running = false
		st.LastRun = start.UTC()
		st.LastDuration = elapsed
		switch {
		case err == nil:
			st.Runs++
			st.ConsecutiveFailures = 0
			st.LastError = ""
		case s.skipped(err):
			st.Skipped++
		default:
			st.Runs++
			st.Failures++
			st.ConsecutiveFailures++
			st.LastError = err.Error()
		}
	})

	if err != nil && !s.skipped(err) {
		slog.Error("job failed", "job", j.Name, "duration", elapsed, "error", err)
	} else {
		slog.Debug("job finished", "job", j.Name, "duration", elapsed)
	}
	return err
}

func (s *Scheduler) skipped(err error) bool {
	if errors.Is(err, ErrSkipped) {
		return true
	}
	return s.isSkip != nil && s.isSkip(err)
}

func (s *Scheduler) record(j *job, fn func(*JobStatus)) {
	s.statsMu.Lock()
	fn(&j.status)
	s.statsMu.Unlock()
}

// Status returns a snapshot of every job, sorted by name.
func (s *Scheduler) Status() []JobStatus {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.status)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}
