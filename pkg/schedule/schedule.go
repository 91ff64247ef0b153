// Package schedule runs recurring background jobs.
//
//	s := schedule.New(loc)
//	s.Every(time.Minute).Name("sweep").Run(sweep)
//	s.Daily().At("23:55").Name("archive").WithoutOverlapping().Run(archive)
//	s.Start(ctx)
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/invictusops/invictus/pkg/logger"
	"github.com/invictusops/invictus/pkg/metrics"
)

// Task is one run of a job. Its context ends when the scheduler stops.
type Task func(ctx context.Context) error

type entry struct {
	id        string
	interval  time.Duration
	hour, min int
	daily     bool
	noOverlap bool
	task      Task

	mu      sync.Mutex
	next    time.Time
	running bool
}

// Scheduler dispatches due entries once per tick.
type Scheduler struct {
	loc  *time.Location
	now  func() time.Time
	tick time.Duration

	mu      sync.Mutex
	entries []*entry
	wg      sync.WaitGroup
}

// New returns a scheduler whose daily times are read in loc.
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{loc: loc, now: time.Now, tick: time.Second}
}

// WithClock replaces the clock and the tick interval. Tests use it.
func (s *Scheduler) WithClock(now func() time.Time, tick time.Duration) *Scheduler {
	s.now, s.tick = now, tick
	return s
}

// Builder configures one entry before Run registers it.
type Builder struct {
	s *Scheduler
	e *entry
}

// Every runs the job every d, the first time one interval after Start.
func (s *Scheduler) Every(d time.Duration) *Builder {
	return &Builder{s: s, e: &entry{interval: d}}
}

// Daily runs the job once a day, at midnight unless At says otherwise.
func (s *Scheduler) Daily() *Builder {
	return &Builder{s: s, e: &entry{daily: true}}
}

// At sets the wall-clock time of a daily job as "HH:MM".
func (b *Builder) At(hhmm string) *Builder {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		panic(fmt.Sprintf("schedule: invalid time %q", hhmm))
	}
	b.e.hour, b.e.min = h, m
	return b
}

func (b *Builder) Name(id string) *Builder {
	b.e.id = id
	return b
}

// WithoutOverlapping skips a run while the previous one is still going.
func (b *Builder) WithoutOverlapping() *Builder {
	b.e.noOverlap = true
	return b
}

// Run registers the job.
func (b *Builder) Run(task Task) {
	b.e.task = task
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if b.e.id == "" {
		b.e.id = fmt.Sprintf("job-%d", len(b.s.entries)+1)
	}
	b.s.entries = append(b.s.entries, b.e)
}

// List describes the registered jobs.
func (s *Scheduler) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		freq := e.interval.String()
		if e.daily {
			freq = fmt.Sprintf("daily %02d:%02d", e.hour, e.min)
		}
		out = append(out, fmt.Sprintf("%s  [%s]", e.id, freq))
	}
	return out
}

// Start dispatches due jobs until ctx ends, then waits for running jobs.
// It blocks.
func (s *Scheduler) Start(ctx context.Context) {
	log := logger.Component("schedule")

	s.mu.Lock()
	now := s.now()
	for _, e := range s.entries {
		e.next = s.following(e, now)
	}
	s.mu.Unlock()
	log.Info("scheduler started", "jobs", len(s.entries))

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			log.Info("scheduler stopped")
			return
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			current := append([]*entry(nil), s.entries...)
			s.mu.Unlock()
			for _, e := range current {
				s.dispatch(ctx, e, now)
			}
		}
	}
}

func (s *Scheduler) following(e *entry, after time.Time) time.Time {
	if !e.daily {
		return after.Add(e.interval)
	}
	local := after.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), e.hour, e.min, 0, 0, s.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Scheduler) dispatch(ctx context.Context, e *entry, now time.Time) {
	e.mu.Lock()
	if now.Before(e.next) {
		e.mu.Unlock()
		return
	}
	e.next = s.following(e, now)
	if e.noOverlap && e.running {
		e.mu.Unlock()
		metrics.ScheduledRuns.WithLabelValues(e.id, "skipped").Inc()
		logger.Component("schedule").Warn("skipping overlapping run", "job", e.id)
		return
	}
	e.running = true
	e.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
		}()
		s.run(ctx, e)
	}()
}

func (s *Scheduler) run(ctx context.Context, e *entry) {
	log := logger.Component("schedule").With("job", e.id)
	defer func() {
		if r := recover(); r != nil {
			metrics.ScheduledRuns.WithLabelValues(e.id, "error").Inc()
			log.Error("job panicked", "panic", r)
		}
	}()

	start := time.Now()
	if err := e.task(ctx); err != nil {
		metrics.ScheduledRuns.WithLabelValues(e.id, "error").Inc()
		log.Error("job failed", "error", err)
		return
	}
	metrics.ScheduledRuns.WithLabelValues(e.id, "ok").Inc()
	log.Info("job finished", "took", time.Since(start))
}
