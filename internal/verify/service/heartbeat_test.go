package service_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/service"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/store"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/types"
)

func TestHeartbeat_SendsImmediateBeatWithCounts(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	st := store.New(nopPersister{}, logger)
	if _, err := st.UpsertPending(types.Profile{ID: "100", Username: "alice"}, "tok"); err != nil {
		t.Fatalf("UpsertPending: %v", err)
	}
	if _, err := st.Promote("200", "admin-1", types.Profile{ID: "200", Username: "bob"}); err != nil {
		t.Fatalf("Promote: %v", err)
	}

	sink := newFakeSink()
	h := service.NewHeartbeatReporter(st, sink, time.Hour, logger)
	h.Start(context.Background())

	// The first beat is sent synchronously at loop start; poll briefly for it.
	deadline := time.After(2 * time.Second)
	for len(sink.auditsOfKind(service.AuditHeartbeat)) == 0 {
		select {
		case <-deadline:
			t.Fatal("no heartbeat within 2s")
		case <-time.After(10 * time.Millisecond):
		}
	}
	h.Stop()

	beats := sink.auditsOfKind(service.AuditHeartbeat)
	ev := beats[0]
	if ev.Details["pending"] != "1" {
		t.Errorf("expected pending=1, got %q", ev.Details["pending"])
	}
	if ev.Details["verified"] != "1" {
		t.Errorf("expected verified=1, got %q", ev.Details["verified"])
	}
	if ev.Details["revoked"] != "0" {
		t.Errorf("expected revoked=0, got %q", ev.Details["revoked"])
	}
	if ev.Details["uptime"] == "" {
		t.Error("expected an uptime string")
	}
	if ev.Details["heap_mb"] == "" {
		t.Error("expected a heap size reading")
	}
	if ev.Details["goroutines"] == "" || ev.Details["goroutines"] == "0" {
		t.Errorf("expected a live goroutine count, got %q", ev.Details["goroutines"])
	}
	if _, ok := ev.Details["gateway_latency"]; ok {
		t.Error("no latency expected without a probe")
	}
}

func TestHeartbeat_LatencyProbe_ReportedPerBeat(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	st := store.New(nopPersister{}, logger)
	sink := newFakeSink()

	h := service.NewHeartbeatReporter(st, sink, time.Hour, logger,
		service.WithLatencyProbe(func() time.Duration { return 42 * time.Millisecond }))
	h.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for len(sink.auditsOfKind(service.AuditHeartbeat)) == 0 {
		select {
		case <-deadline:
			t.Fatal("no heartbeat within 2s")
		case <-time.After(10 * time.Millisecond):
		}
	}
	h.Stop()

	ev := sink.auditsOfKind(service.AuditHeartbeat)[0]
	if ev.Details["gateway_latency"] != "42ms" {
		t.Errorf("expected gateway_latency=42ms, got %q", ev.Details["gateway_latency"])
	}
}

func TestHeartbeat_ZeroInterval_IsDisabled(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	st := store.New(nopPersister{}, logger)
	sink := newFakeSink()

	h := service.NewHeartbeatReporter(st, sink, 0, logger)
	h.Start(context.Background())
	h.Stop() // must not hang

	if len(sink.audits) != 0 {
		t.Error("disabled reporter must not beat")
	}
}
