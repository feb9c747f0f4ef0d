package main

import (
	"context"
	"fmt"
	"time"
)

// RetentionSweeper is the unit of background work, kept behind an interface for testing
type RetentionSweeper interface {
	sweepExpiredAnalyses(ctx context.Context) (int64, error)
}

// StartBackgroundTasks runs the retention sweep every interval until ctx is
// cancelled. Failures back off exponentially up to an hour.
func StartBackgroundTasks(ctx context.Context, app RetentionSweeper, interval time.Duration) {
	go func() {
		minBackoffDuration := 10 * time.Second
		maxBackoffDuration := time.Hour
		backoffDuration := minBackoffDuration

		for {
			wait := interval
			removed, err := app.sweepExpiredAnalyses(ctx)
			if err != nil {
				log.Errorf("Error in retention sweep: %v", err)
				wait = backoffDuration

				backoffDuration *= 2
				if backoffDuration > maxBackoffDuration {
					log.Warnf("Max backoff duration reached. Using %v", maxBackoffDuration)
					backoffDuration = maxBackoffDuration
				}
			} else {
				backoffDuration = minBackoffDuration
				if removed > 0 {
					log.Infof("Retention sweep removed %d analyses", removed)
				}
			}

			select {
			case <-ctx.Done():
				log.Infoln("Background tasks shutting down")
				return
			case <-time.After(wait):
			}
		}
	}()
}

// sweepExpiredAnalyses deletes analyses older than the retention window.
func (app *App) sweepExpiredAnalyses(ctx context.Context) (int64, error) {
	if app.Config.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -app.Config.RetentionDays)
	removed, err := DeleteAnalysesBefore(app.Database.WithContext(ctx), cutoff)
	if err != nil {
		return 0, fmt.Errorf("error deleting analyses before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return removed, nil
}
