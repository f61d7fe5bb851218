package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/teambition/rrule-go"
)

// Job receives the wall-clock fire time in the scheduler's timezone.
type Job func(ctx context.Context, now time.Time) error

// Daily fires a job once a day at a fixed local time.
type Daily struct {
	hour, minute, second int
	loc                  *time.Location
	job                  Job
	now                  func() time.Time
	logger               zerolog.Logger
}

func NewDaily(hour, minute, second int, loc *time.Location, job Job, logger zerolog.Logger) (*Daily, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return nil, fmt.Errorf("invalid time of day %02d:%02d:%02d", hour, minute, second)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Daily{
		hour:   hour,
		minute: minute,
		second: second,
		loc:    loc,
		job:    job,
		now:    time.Now,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Next returns the first fire time strictly after now. Wall-clock time is
// kept across DST changes.
func (d *Daily) Next(now time.Time) time.Time {
	now = now.In(d.loc)
	yesterday := now.AddDate(0, 0, -1)
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), d.hour, d.minute, d.second, 0, d.loc),
	})
	if err != nil {
		// unreachable for a plain daily rule
		next := time.Date(now.Year(), now.Month(), now.Day(), d.hour, d.minute, d.second, 0, d.loc)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
	return rule.After(now, false)
}

// Start blocks, running the job at every fire time until ctx is done. A job
// error is logged and the schedule continues.
func (d *Daily) Start(ctx context.Context) {
	for {
		now := d.now().In(d.loc)
		next := d.Next(now)
		d.logger.Info().Time("next_run", next).Msg("⏰ Next payment check scheduled")

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		fired := d.now().In(d.loc)
		if err := d.job(ctx, fired); err != nil {
			d.logger.Error().Err(err).Msg("Scheduled job failed")
		}
	}
}
