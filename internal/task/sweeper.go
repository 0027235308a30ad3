package task

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweep evicts terminal tasks whose completion is older than the retention
// window, together with their results and per-task subscriptions. It returns
// how many tasks were removed.
func (e *Engine) Sweep(now time.Time) int {
	e.mu.Lock()
	removed := e.tasks.expire(now, e.cfg.RetentionWindow)
	remaining := e.tasks.len()
	e.mu.Unlock()

	for _, id := range removed {
		e.bus.CloseSubject(id.String())
	}
	if len(removed) > 0 {
		e.logger.Debug("swept expired tasks",
			"removed", len(removed),
			"remaining", remaining)
	}
	return len(removed)
}

func (e *Engine) newSweepCron() (*cron.Cron, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	_, err := c.AddFunc(e.cfg.SweepSchedule, func() {
		e.Sweep(e.now())
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", e.cfg.SweepSchedule, err)
	}
	return c, nil
}
