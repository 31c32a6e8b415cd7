package distnode

import (
	"context"
	"log/slog"
	"time"
)

// RunHeartbeatLoop registers with the master then sends a heartbeat every
// interval until ctx is cancelled. Call in a goroutine from a worker node's
// startup.
func RunHeartbeatLoop(ctx context.Context, client *Client, masterAddr string, masterPort int, workerID, selfAddr string, selfPort int, interval time.Duration) error {
	if err := client.RegisterWorker(ctx, masterAddr, masterPort, workerID, selfAddr, selfPort); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := client.Heartbeat(ctx, masterAddr, masterPort, workerID); err != nil {
				slog.Error("distnode: heartbeat failed", "worker_id", workerID, "error", err)
			}
		}
	}
}
