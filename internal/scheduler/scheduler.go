package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler runs a job immediately on Start and then once per interval until
// Stop. A panicking run is logged and does not stop the schedule.
type Scheduler struct {
	name     string
	interval time.Duration
	job      func(context.Context)

	running atomic.Bool
	runs    atomic.Int64
	lastRun atomic.Int64 // unix nanos of the last finished run, 0 if none

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Status struct {
	Name      string        `json:"name"`
	Running   bool          `json:"running"`
	Interval  time.Duration `json:"interval"`
	Runs      int64         `json:"runs"`
	LastRunAt *time.Time    `json:"lastRunAt,omitempty"`
}

func New(name string, interval time.Duration, job func(context.Context)) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if job == nil {
		return nil, errors.New("job must not be nil")
	}
	return &Scheduler{
		name:     name,
		interval: interval,
		job:      job,
		done:     make(chan struct{}),
	}, nil
}

func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		slog.Info("scheduler started", "name", s.name, "interval", s.interval.String())

		s.safeRun(ctx)

		for {
			select {
			case <-ctx.Done():
				slog.Info("scheduler stopping", "name", s.name)
				return
			case <-ticker.C:
				s.safeRun(ctx)
			}
		}
	}()

	return true
}

// Stop cancels the schedule and waits for an in-flight run to return.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	slog.Info("scheduler stopped", "name", s.name)
	return true
}

func (s *Scheduler) Status() Status {
	st := Status{
		Name:     s.name,
		Running:  s.running.Load(),
		Interval: s.interval,
		Runs:     s.runs.Load(),
	}
	if ns := s.lastRun.Load(); ns != 0 {
		t := time.Unix(0, ns).UTC()
		st.LastRunAt = &t
	}
	return st
}

func (s *Scheduler) safeRun(ctx context.Context) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler run panic recovered", "name", s.name, "panic", r)
		}
		s.runs.Add(1)
		s.lastRun.Store(time.Now().UnixNano())
	}()

	s.job(ctx)
	slog.Info("scheduler run completed", "name", s.name, "duration_ms", time.Since(start).Milliseconds())
}
