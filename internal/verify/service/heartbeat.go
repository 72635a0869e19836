package service

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"strconv"
	"time"

	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/store"
)

// HeartbeatReporter periodically emits a service-status audit event with
// uptime, store counts, and process health.  It runs as a background
// goroutine and is safe to stop via its context or the Stop method.
type HeartbeatReporter struct {
	store        *store.Store
	notifier     NotificationSink
	interval     time.Duration
	logger       *log.Logger
	latencyProbe func() time.Duration
	startedAt    time.Time
	cancel       context.CancelFunc
	done         chan struct{}
}

// HeartbeatOption adjusts a reporter before it starts.
type HeartbeatOption func(*HeartbeatReporter)

// WithLatencyProbe attaches a gateway round-trip measurement that each beat
// reports alongside the process stats.
func WithLatencyProbe(fn func() time.Duration) HeartbeatOption {
	return func(h *HeartbeatReporter) { h.latencyProbe = fn }
}

// NewHeartbeatReporter creates a reporter but does not start it.
// Call Start to begin the background loop.
func NewHeartbeatReporter(st *store.Store, sink NotificationSink, interval time.Duration, logger *log.Logger, opts ...HeartbeatOption) *HeartbeatReporter {
	h := &HeartbeatReporter{
		store:    st,
		notifier: sink,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start begins the background loop.  It sends an immediate beat on startup,
// then repeats on the configured interval.  An interval <= 0 disables the
// reporter entirely.
func (h *HeartbeatReporter) Start(ctx context.Context) {
	if h.interval <= 0 {
		h.logger.Printf("heartbeat reporter disabled (interval=0)")
		close(h.done)
		return
	}

	h.startedAt = time.Now().UTC()
	ctx, h.cancel = context.WithCancel(ctx)

	go h.loop(ctx)

	h.logger.Printf("heartbeat reporter started (interval=%s)", h.interval)
}

// Stop signals the reporter to exit and waits for it to finish.
func (h *HeartbeatReporter) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	<-h.done
}

func (h *HeartbeatReporter) loop(ctx context.Context) {
	defer close(h.done)

	h.beat(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.beat(ctx)
		}
	}
}

func (h *HeartbeatReporter) beat(ctx context.Context) {
	pending, verified, revoked := h.store.Counts()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	details := map[string]string{
		"uptime":     formatUptime(time.Since(h.startedAt)),
		"pending":    strconv.Itoa(pending),
		"verified":   strconv.Itoa(verified),
		"revoked":    strconv.Itoa(revoked),
		"heap_mb":    strconv.FormatUint(mem.HeapAlloc>>20, 10),
		"goroutines": strconv.Itoa(runtime.NumGoroutine()),
	}
	if h.latencyProbe != nil {
		details["gateway_latency"] = h.latencyProbe().Round(time.Millisecond).String()
	}

	ev := AuditEvent{
		Kind:    AuditHeartbeat,
		Details: details,
		At:      time.Now().UTC(),
	}
	if err := h.notifier.SendAudit(ctx, ev); err != nil {
		h.logger.Printf("heartbeat: %v", err)
	}
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Minute)
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
}
