// Package scheduler fires monitoring cycles on a cron-like minute anchor
// restricted to an hour window: minute M of every hour between StartHour and
// EndHour in the configured timezone.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Job is the unit of work a trigger fires. TryRun must absorb the call when a
// run is already in progress and report whether it actually started.
type Job interface {
	TryRun(ctx context.Context) bool
}

// Schedule describes the firing pattern.
type Schedule struct {
	Minute    int
	StartHour int
	EndHour   int
	Location  *time.Location
}

// Next returns the first firing instant strictly after now.
func (s Schedule) Next(now time.Time) time.Time {
	local := now.In(s.Location)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.Location)

	// Two days is always enough: today's remaining slots, else tomorrow's first.
	for d := 0; d < 2; d++ {
		for hour := s.StartHour; hour <= s.EndHour; hour++ {
			candidate := day.AddDate(0, 0, d).Add(
				time.Duration(hour)*time.Hour + time.Duration(s.Minute)*time.Minute)
			if candidate.After(now) {
				return candidate
			}
		}
	}
	return day.AddDate(0, 0, 2).Add(
		time.Duration(s.StartHour)*time.Hour + time.Duration(s.Minute)*time.Minute)
}

// Trigger runs a Job on a Schedule until its context is cancelled.
type Trigger struct {
	schedule Schedule
	grace    time.Duration
	job      Job
	clock    clockwork.Clock
	logger   *slog.Logger
}

// New builds a Trigger. A nil clock means the real one.
func New(schedule Schedule, grace time.Duration, job Job, clock clockwork.Clock, logger *slog.Logger) *Trigger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Trigger{
		schedule: schedule,
		grace:    grace,
		job:      job,
		clock:    clock,
		logger:   logger,
	}
}

// Run blocks, firing the job at each schedule slot, until ctx is cancelled.
// A slot that is reached more than the misfire grace after its nominal time
// is skipped, not fired late.
func (t *Trigger) Run(ctx context.Context) {
	for {
		now := t.clock.Now()
		next := t.schedule.Next(now)
		t.logger.Debug("scheduler waiting", "next", next)

		select {
		case <-ctx.Done():
			t.logger.Info("scheduler stopped")
			return
		case <-t.clock.After(next.Sub(now)):
		}

		if late := t.clock.Now().Sub(next); late > t.grace {
			t.logger.Warn("skipping misfired slot", "slot", next, "late", late)
			continue
		}

		if started := t.job.TryRun(ctx); !started {
			t.logger.Info("cycle already running, slot absorbed", "slot", next)
		}
	}
}
