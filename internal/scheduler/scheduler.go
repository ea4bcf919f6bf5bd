// Package scheduler runs one goroutine per monitor, on a fixed
// interval with an initial delay, for the lifetime of the process.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/prodzilla/prodzilla/internal/monitor"
	"github.com/prodzilla/prodzilla/internal/runner"
)

// Monitor is the closed two-variant contract the scheduler dispatches
// on: *monitor.Probe and *monitor.Story. The set of kinds will not
// grow at runtime, so Start dispatches each kind to its runner method
// through a closure instead of an open interface with a RunOnce method.
type Monitor interface {
	GetName() string
	GetSchedule() monitor.Schedule
}

// Scheduler owns one goroutine per registered monitor. It never stops
// a monitor on its own; each goroutine runs until the context passed
// to Start is canceled.
type Scheduler struct {
	runner *runner.Runner
	logger *slog.Logger
}

func New(r *runner.Runner, logger *slog.Logger) *Scheduler {
	return &Scheduler{runner: r, logger: logger}
}

// Start spawns one goroutine per monitor and returns immediately; the
// goroutines run until ctx is canceled.
func (s *Scheduler) Start(ctx context.Context, probes []*monitor.Probe, stories []*monitor.Story) {
	for _, p := range probes {
		p := p
		go s.loop(ctx, p, func(runCtx context.Context) {
			s.runner.RunProbe(runCtx, p)
		})
	}
	for _, story := range stories {
		story := story
		go s.loop(ctx, story, func(runCtx context.Context) {
			s.runner.RunStory(runCtx, story)
		})
	}
}

// loop implements the cumulative-drift-corrected schedule: sleep past
// the initial delay, then repeatedly sleep only if the clock hasn't
// already caught up to the next tick, advancing next by a fixed
// interval regardless of how long the run itself took. interval == 0
// is a valid, discouraged configuration meaning "run back-to-back as
// fast as possible" rather than a fixed cadence.
func (s *Scheduler) loop(ctx context.Context, m Monitor, run func(context.Context)) {
	sched := m.GetSchedule()
	interval := time.Duration(sched.Interval) * time.Second
	if interval == 0 {
		s.logger.Warn("monitor has zero interval, running back-to-back", "monitor", m.GetName())
	}

	initialDelay := time.Duration(sched.InitialDelay) * time.Second
	timer := time.NewTimer(initialDelay)
	defer timer.Stop()

	next := time.Now().Add(initialDelay)

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		next = next.Add(interval)
		run(ctx)

		if ctx.Err() != nil {
			return
		}

		now := time.Now()
		wait := time.Duration(0)
		if now.Before(next) {
			wait = next.Sub(now)
		}
		timer.Reset(wait)
	}
}
