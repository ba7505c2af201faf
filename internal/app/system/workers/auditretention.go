// internal/app/system/workers/auditretention.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/campusdesk/internal/app/store/audit"
	"go.uber.org/zap"
)

// AuditRetention is a background worker that removes audit events older
// than a maximum age.
type AuditRetention struct {
	events   *audit.Store
	log      *zap.Logger
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAuditRetention creates a new retention worker.
//
// Parameters:
//   - events: the audit event store
//   - logger: zap logger for logging
//   - interval: how often to purge (e.g., 1 hour)
//   - maxAge: how long an event is kept (e.g., 90 days)
func NewAuditRetention(events *audit.Store, logger *zap.Logger, interval, maxAge time.Duration) *AuditRetention {
	return &AuditRetention{
		events:   events,
		log:      logger,
		interval: interval,
		maxAge:   maxAge,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start purges once and then begins the background loop.
func (w *AuditRetention) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("audit retention worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("max_age", w.maxAge))
}

// Stop signals the worker to stop and waits for it to finish. It is safe to
// call more than once.
func (w *AuditRetention) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		w.log.Info("audit retention worker stopped")
	})
}

func (w *AuditRetention) run() {
	defer w.wg.Done()

	w.Purge()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Purge()
		}
	}
}

// Purge removes expired events once and returns how many went.
func (w *AuditRetention) Purge() int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := w.now().Add(-w.maxAge)
	count, err := w.events.DeleteBefore(ctx, cutoff)
	if err != nil {
		w.log.Error("failed to purge audit events", zap.Error(err))
		return count
	}

	if count > 0 {
		w.log.Info("purged audit events", zap.Int("count", count), zap.Time("cutoff", cutoff))
	}
	return count
}
