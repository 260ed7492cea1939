package systemd

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/smazurov/uvcrtsp/internal/events"
)

type recorder struct {
	mu     sync.Mutex
	states []string
}

func (r *recorder) notify(state string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	return true, nil
}

func (r *recorder) has(state string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.states {
		if s == state {
			return true
		}
	}
	return false
}

func (r *recorder) count(state string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.states {
		if s == state {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNotifierReportsLifecycle(t *testing.T) {
	rec := &recorder{}
	bus := events.New()
	n := newNotifier(rec.notify, 0, bus, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n.Ready()
	if !rec.has(daemon.SdNotifyReady) {
		t.Fatal("READY not sent")
	}

	bus.Publish(events.SessionStateChangedEvent{DeviceName: "/dev/bus/usb/001/004", From: "open", To: "streaming", Port: 10558})
	waitFor(t, func() bool { return rec.has("STATUS=streaming /dev/bus/usb/001/004 on port 10558") })

	n.Stopping()
	if !rec.has(daemon.SdNotifyStopping) {
		t.Error("STOPPING not sent")
	}
}

func TestNotifierFeedsWatchdog(t *testing.T) {
	rec := &recorder{}
	n := newNotifier(rec.notify, 10*time.Millisecond, events.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	n.Ready()
	waitFor(t, func() bool { return rec.count(daemon.SdNotifyWatchdog) >= 2 })
	n.Stopping()

	after := rec.count(daemon.SdNotifyWatchdog)
	time.Sleep(30 * time.Millisecond)
	if rec.count(daemon.SdNotifyWatchdog) != after {
		t.Error("watchdog kept running after Stopping")
	}
}

func TestStatusLine(t *testing.T) {
	tests := []struct {
		ev   events.SessionStateChangedEvent
		want string
	}{
		{events.SessionStateChangedEvent{To: "detached"}, "detached"},
		{events.SessionStateChangedEvent{DeviceName: "/dev/bus/usb/001/004", To: "opening"}, "opening /dev/bus/usb/001/004"},
		{events.SessionStateChangedEvent{DeviceName: "/dev/bus/usb/001/005", To: "detached", Code: "DEVICE_BUSY"}, "detached /dev/bus/usb/001/005 (DEVICE_BUSY)"},
	}
	for _, tt := range tests {
		if got := statusLine(tt.ev); !strings.EqualFold(got, tt.want) {
			t.Errorf("statusLine(%+v) = %q, want %q", tt.ev, got, tt.want)
		}
	}
}
