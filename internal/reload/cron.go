package reload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/cronexpr"
)

// CronScheduler supplements SIGHUP with a scheduled refresh: parse the
// cron expression once, compute the next fire time, sleep until it,
// repeat. It triggers the exact same Controller path a SIGHUP does —
// no separate reload logic — so scheduled and signal-driven reloads
// are coalesced the same way if they land close together.
type CronScheduler struct {
	Logger     *slog.Logger
	Controller *Controller
	expr       *cronexpr.Expression
}

// NewCronScheduler parses spec string (standard 5-field cron syntax, as
// accepted by hashicorp/cronexpr). An empty spec disables scheduling.
func NewCronScheduler(logger *slog.Logger, c *Controller, spec string) (*CronScheduler, error) {
	if spec == "" {
		return nil, nil
	}
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("reload: invalid refresh_cron %q: %w", spec, err)
	}
	return &CronScheduler{Logger: logger, Controller: c, expr: expr}, nil
}

// Run blocks, firing Controller.TriggerAsync at each scheduled time,
// until ctx is cancelled.
func (s *CronScheduler) Run(ctx context.Context) {
	if s == nil {
		return
	}
	for {
		next := s.expr.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.log().Info("scheduled reload firing", "next", next)
			s.Controller.TriggerAsync()
		}
	}
}

func (s *CronScheduler) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
