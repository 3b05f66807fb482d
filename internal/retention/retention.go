// Package retention schedules the purge of expired conversation turns and
// working memory. Expiry is enforced at read time by the store; the purge
// only reclaims space, so a missed run is harmless.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSchedule runs the purge nightly at 03:10, away from backup windows.
const DefaultSchedule = "10 3 * * *"

// Purger deletes expired rows and reports how many were removed.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Job runs the retention purge on a cron schedule.
type Job struct {
	cron   *cron.Cron
	purger Purger
}

// NewJob creates a retention job over the given purger using the standard
// 5-field cron format.
func NewJob(purger Purger, schedule string) (*Job, error) {
	j := &Job{cron: cron.New(), purger: purger}
	if _, err := j.cron.AddFunc(schedule, j.run); err != nil {
		return nil, fmt.Errorf("registering retention schedule %q: %w", schedule, err)
	}
	return j, nil
}

func (j *Job) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("retention_purge_failed")
		return
	}
	log.Info().Int64("rows_removed", removed).Msg("retention_purge_completed")
}

// RunOnce triggers an immediate purge outside the schedule.
func (j *Job) RunOnce(ctx context.Context) (int64, error) {
	return j.purger.PurgeExpired(ctx)
}

// Start begins executing the schedule.
func (j *Job) Start() {
	j.cron.Start()
}

// Stop halts the scheduler and waits for a running purge to complete.
func (j *Job) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}
