package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"chatrelay/pkg/logger"
)

// StartSweeper schedules periodic idle-session sweeps according to the given
// cron expression. A non-positive maxIdle disables sweeping. Returns a cancel
// func for shutdown.
func StartSweeper(ctx context.Context, h *Hub, cronExpr string, maxIdle time.Duration) (context.CancelFunc, error) {
	if maxIdle <= 0 {
		logger.Info("sweeper_disabled")
		return func() {}, nil
	}
	if cronExpr == "" {
		cronExpr = "*/5 * * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("sweeper_invalid_cron", "cron", cronExpr)
		return nil, fmt.Errorf("invalid sweep cron expression: %s", cronExpr)
	}
	logger.Info("sweeper_enabled", "cron", cronExpr, "idle_timeout", maxIdle.String())
	ctx2, cancel := context.WithCancel(ctx)
	go runSweeper(ctx2, h, cronExpr, maxIdle)
	return cancel, nil
}

// runSweeper computes the next cron tick with gronx and sleeps until then.
func runSweeper(ctx context.Context, h *Hub, cronExpr string, maxIdle time.Duration) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("sweeper_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		select {
		case <-time.After(next.Sub(now)):
		case <-ctx.Done():
			logger.Info("sweeper_stopping")
			return
		}
		if n := h.SweepIdle(maxIdle); n > 0 {
			logger.Info("idle_sweep_complete", "swept", n)
		}
	}
}
