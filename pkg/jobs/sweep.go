package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/developer-overheid-nl/don-defect-register/pkg/tools"
	"github.com/robfig/cron/v3"
)

// BlobSweeper removes stored images that no detection references.
type BlobSweeper interface {
	Sweep(ctx context.Context, grace time.Duration) (int, error)
}

// ScheduleBlobSweep sets up a cron job that sweeps orphaned images on the cron schedule.
// An empty schedule disables the job and returns nil. Runs never overlap.
func ScheduleBlobSweep(ctx context.Context, sweeper BlobSweeper, schedule string, grace time.Duration, logger *log.Logger) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}
	if logger == nil {
		logger = log.Default()
	}
	cronLogger := cron.PrintfLogger(logger.StandardLog(log.StandardLogOptions{ForceLevel: log.DebugLevel}))

	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))
	_, err := c.AddFunc(schedule, func() {
		<-tools.Dispatch(ctx, "blob_sweep", func(ctx context.Context) error {
			_, err := sweeper.Sweep(ctx, grace)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("blob sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	logger.Info("blob sweep scheduled", "schedule", schedule, "grace", grace)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return c, nil
}
