package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/wolfman30/appointment-insights/pkg/logging"
)

type Refresher interface {
	Refresh(ctx context.Context) error
}

var resyncParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// StartResync schedules a full refresh on a standard 5-field cron spec (or a
// descriptor such as "@every 5m"). It covers changes the feed missed. An
// empty or "off" spec returns a nil scheduler. Overlapping runs are skipped.
func StartResync(ctx context.Context, spec string, r Refresher, logger *logging.Logger) (*cron.Cron, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.EqualFold(spec, "off") {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	c := cron.New(
		cron.WithParser(resyncParser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err := c.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		if err := r.Refresh(ctx); err != nil {
			logger.Warn("scheduled resync failed", "error", err)
			return
		}
		logger.Debug("scheduled resync complete")
	})
	if err != nil {
		return nil, fmt.Errorf("dashboard: resync schedule %q: %w", spec, err)
	}
	c.Start()
	logger.Info("scheduled resync enabled", "schedule", spec)
	return c, nil
}
