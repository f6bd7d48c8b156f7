package dispatcher

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/notify"
)

// heartbeat is the per-job status ticker running alongside the blocking
// session calls. stop signals the goroutine and waits for it to exit, so a
// terminal message can never race a late heartbeat edit.
type heartbeat struct {
	stopCh   chan struct{}
	doneCh   chan struct{}
	done     atomic.Int32
	total    int
	stopOnce sync.Once
}

// startHeartbeat launches the status ticker for one job
func (d *Dispatcher) startHeartbeat(reporter notify.Reporter, total int) *heartbeat {
	hb := &heartbeat{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		total:  total,
	}

	go func() {
		defer close(hb.doneCh)

		ticker := time.NewTicker(d.cfg.HeartbeatInterval)
		defer ticker.Stop()

		tick := 0
		for {
			select {
			case <-hb.stopCh:
				return
			case <-ticker.C:
				glyph := heartbeatGlyphs[tick%len(heartbeatGlyphs)]
				tick++
				reporter.Heartbeat(glyph, int(hb.done.Load()), hb.total)
			}
		}
	}()

	return hb
}

// completed records a finished batch item for heartbeat display
func (hb *heartbeat) completed(n int) {
	hb.done.Store(int32(n))
}

// stop signals the ticker and joins it; safe to call more than once
func (hb *heartbeat) stop() {
	hb.stopOnce.Do(func() {
		close(hb.stopCh)
	})
	<-hb.doneCh
}
