// Package scheduler runs the price updaters on a cron inside the daily trading window.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"welcome-craft/internal/localtime"
	"welcome-craft/internal/models"
	"welcome-craft/internal/pricing"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is one metal's update.
type Job interface {
	Metal() models.Metal
	FetchAndSavePrice(ctx context.Context) (*pricing.UpdateResult, error)
}

type Config struct {
	EveryMinutes int
	StartHour    int
	EndHour      int // inclusive
	JobTimeout   time.Duration
}

// Spec is the cron expression for cfg, e.g. "*/15 5-13 * * *".
func Spec(cfg Config) string {
	return fmt.Sprintf("*/%d %d-%d * * *", cfg.EveryMinutes, cfg.StartHour, cfg.EndHour)
}

// Outcome of one job within a tick.
type Outcome struct {
	Metal  models.Metal
	Result *pricing.UpdateResult
	Err    error
}

type Scheduler struct {
	cron    *cron.Cron
	spec    string
	jobs    []Job
	timeout time.Duration
	log     *logrus.Entry
}

// New registers the price tick. Jobs run in the given order on every tick.
func New(cfg Config, jobs []Job, log *logrus.Entry) (*Scheduler, error) {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	cronLog := cron.PrintfLogger(log)

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(localtime.Zone),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		spec:    Spec(cfg),
		jobs:    jobs,
		timeout: cfg.JobTimeout,
		log:     log,
	}

	if _, err := s.cron.AddFunc(s.spec, func() { s.Tick(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid price schedule %q: %w", s.spec, err)
	}
	return s, nil
}

// Tick runs every job once. Failures are logged and do not stop later jobs;
// the next tick is the retry.
func (s *Scheduler) Tick(ctx context.Context) []Outcome {
	s.log.Info("Running scheduled price updates")

	outcomes := make([]Outcome, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobCtx, cancel := context.WithTimeout(ctx, s.timeout)
		res, err := job.FetchAndSavePrice(jobCtx)
		cancel()

		entry := s.log.WithField("metal", job.Metal())
		if err != nil {
			entry.WithError(err).Error("Scheduled price update failed")
		} else {
			state := "unchanged"
			if res.Saved {
				state = "saved"
			}
			entry.WithField("price", res.Price.String()).Infof("Price %s", state)
		}
		outcomes = append(outcomes, Outcome{Metal: job.Metal(), Result: res, Err: err})
	}
	return outcomes
}

// AddMaintenance registers a housekeeping job on its own cron spec.
func (s *Scheduler) AddMaintenance(spec, name string, fn func(ctx context.Context) error) error {
	entry := s.log.WithField("job", name)
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			entry.WithError(err).Error("Maintenance job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	return nil
}

// NextRun is the first price tick strictly after t.
func (s *Scheduler) NextRun(t time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(s.spec)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(t.In(localtime.Zone)), nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.WithField("spec", s.spec).Infof("Price scheduler started (%s)", localtime.Zone)
}

// Stop prevents new ticks and waits for a running one, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("Price scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
