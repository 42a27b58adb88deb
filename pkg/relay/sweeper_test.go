package relay

import (
	"context"
	"testing"
	"time"
)

func TestStartSweeperDisabledWithoutIdleTimeout(t *testing.T) {
	cancel, err := StartSweeper(context.Background(), newTestHub(), "*/5 * * * *", 0)
	if err != nil {
		t.Fatalf("StartSweeper: %v", err)
	}
	cancel()
}

func TestStartSweeperRejectsBadCron(t *testing.T) {
	if _, err := StartSweeper(context.Background(), newTestHub(), "every tuesday", time.Minute); err == nil {
		t.Fatal("invalid cron expression accepted")
	}
}

func TestStartSweeperDefaultsCron(t *testing.T) {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	cancel, err := StartSweeper(ctx, newTestHub(), "", time.Minute)
	if err != nil {
		t.Fatalf("StartSweeper with empty cron: %v", err)
	}
	cancel()
}
