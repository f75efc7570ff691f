package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultRolloverSchedule runs the sweep a minute after every hour.
const DefaultRolloverSchedule = "1 * * * *"

// RolloverJob periodically resets expired quota periods.
type RolloverJob struct {
	cron    *cron.Cron
	service *Service
	logger  *slog.Logger
	timeout time.Duration
}

// NewRolloverJob schedules the sweep using a standard five-field cron spec.
func NewRolloverJob(service *Service, schedule string, logger *slog.Logger) (*RolloverJob, error) {
	if schedule == "" {
		schedule = DefaultRolloverSchedule
	}
	job := &RolloverJob{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		service: service,
		logger:  logger,
		timeout: time.Minute,
	}
	if _, err := job.cron.AddFunc(schedule, job.Run); err != nil {
		return nil, fmt.Errorf("scheduling quota rollover %q: %w", schedule, err)
	}
	return job, nil
}

// Start begins running the schedule in the background.
func (j *RolloverJob) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *RolloverJob) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Run performs one sweep.
func (j *RolloverJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if _, err := j.service.RolloverExpired(ctx); err != nil && j.logger != nil {
		j.logger.Error("quota rollover failed", "error", err)
	}
}
