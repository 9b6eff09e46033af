package checkin

import (
	"context"
	"log"
	"time"
)

// StartSweeper: 1 分間隔（設定可）で期限切れ session を一括 expire する。
// 失敗しても次の tick に任せてプロセスは落とさない。ctx のキャンセルで停止。
func StartSweeper(ctx context.Context, svc *Service, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("[INFO] session sweeper stopped")
				return
			case <-ticker.C:
				n, err := svc.ExpireDue(ctx, svc.clock.Now())
				if err != nil {
					log.Printf("[WARN] session sweep failed: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("[INFO] expired %d checkin sessions", n)
				}
			}
		}
	}()
}
