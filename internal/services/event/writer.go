package event

import (
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"
)

// Writer wraps the async Influx write API and tracks the last write error
// so /healthz and /readyz can report storage trouble.
type Writer struct {
	api api.WriteAPI
	log *zap.SugaredLogger

	mu      sync.RWMutex
	lastErr time.Time
}

// NewWriter starts the listener for async Influx write errors.
func NewWriter(w api.WriteAPI, log *zap.SugaredLogger) *Writer {
	ww := &Writer{
		api: w,
		log: log,
		// start "clean": pretend the last error is far in the past
		lastErr: time.Now().Add(-24 * time.Hour),
	}
	go func() {
		for err := range w.Errors() {
			if err != nil {
				ww.mu.Lock()
				ww.lastErr = time.Now()
				ww.mu.Unlock()
				ww.log.Errorw("influx write error", "error", err)
			}
		}
	}()
	return ww
}

// Write queues the event and bumps the ingest counter.
func (w *Writer) Write(evt CommonEvent) {
	w.api.WritePoint(EventToPoint(evt))
	eventsIngested.WithLabelValues(evt.EventType, evt.Severity).Inc()
}

// LastErrorAge returns how long the writer has gone without a write error.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

// Flush drains any batched points, for shutdown.
func (w *Writer) Flush() {
	if w != nil && w.api != nil {
		w.api.Flush()
	}
}
