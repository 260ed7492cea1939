//go:build linux

package permission

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/uvcrtsp/internal/capture"
	"golang.org/x/sys/unix"
)

func newTestBroker(t *testing.T, allowed []string, granted *atomic.Bool) *NodeBroker {
	t.Helper()
	b := NewNodeBroker(allowed)
	b.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	b.access = func(string) error {
		if granted.Load() {
			return nil
		}
		return unix.EACCES
	}
	return b
}

func testNode(t *testing.T) capture.Device {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video0")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	return capture.Device{Name: "/dev/bus/usb/001/004", Path: path, VendorID: "046D", ProductID: "0825"}
}

func collect() (func(Result), chan Result) {
	ch := make(chan Result, 4)
	return func(r Result) { ch <- r }, ch
}

func next(t *testing.T, ch chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		if r.Action != Action {
			t.Errorf("Action = %q, want %q", r.Action, Action)
		}
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no permission result")
		return Result{}
	}
}

func TestRequestGrantedImmediately(t *testing.T) {
	var granted atomic.Bool
	granted.Store(true)
	b := newTestBroker(t, nil, &granted)

	cb, ch := collect()
	b.Request(testNode(t), cb)

	if r := next(t, ch); r.Outcome != Granted || r.Err != nil {
		t.Errorf("got %v (%v), want granted", r.Outcome, r.Err)
	}
}

func TestRequestDeniedByAllowList(t *testing.T) {
	var granted atomic.Bool
	granted.Store(true)
	b := newTestBroker(t, []string{"0c45:6366"}, &granted)

	cb, ch := collect()
	b.Request(testNode(t), cb)

	r := next(t, ch)
	if r.Outcome != Denied || !errors.Is(r.Err, ErrNotAllowed) {
		t.Errorf("got %v (%v), want denied by allow-list", r.Outcome, r.Err)
	}
}

func TestAllowListIsCaseInsensitive(t *testing.T) {
	b := NewNodeBroker([]string{" 046d:0825 "})
	if !b.Allowed(capture.Device{VendorID: "046D", ProductID: "0825"}) {
		t.Error("expected device to be allowed")
	}
}

func TestRequestPendingThenGranted(t *testing.T) {
	var granted atomic.Bool
	b := newTestBroker(t, nil, &granted)
	dev := testNode(t)

	cb, ch := collect()
	b.Request(dev, cb)

	if r := next(t, ch); r.Outcome != Pending {
		t.Fatalf("first result = %v, want pending", r.Outcome)
	}

	granted.Store(true)
	if err := os.Chmod(dev.Path, 0o660); err != nil {
		t.Fatal(err)
	}

	if r := next(t, ch); r.Outcome != Granted {
		t.Errorf("second result = %v (%v), want granted", r.Outcome, r.Err)
	}
}

func TestRequestPendingThenRemoved(t *testing.T) {
	var granted atomic.Bool
	b := newTestBroker(t, nil, &granted)
	dev := testNode(t)

	cb, ch := collect()
	b.Request(dev, cb)
	next(t, ch)

	if err := os.Remove(dev.Path); err != nil {
		t.Fatal(err)
	}

	r := next(t, ch)
	if r.Outcome != Denied || !errors.Is(r.Err, ErrNodeRemoved) {
		t.Errorf("got %v (%v), want denied with ErrNodeRemoved", r.Outcome, r.Err)
	}
}

func TestCancelStopsWaiting(t *testing.T) {
	var granted atomic.Bool
	b := newTestBroker(t, nil, &granted)
	dev := testNode(t)

	cb, ch := collect()
	b.Request(dev, cb)
	next(t, ch)

	b.Cancel(dev)
	granted.Store(true)
	_ = os.Chmod(dev.Path, 0o660)

	select {
	case r := <-ch:
		t.Fatalf("result after cancel: %v", r.Outcome)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOutcomeString(t *testing.T) {
	for outcome, want := range map[Outcome]string{Pending: "pending", Granted: "granted", Denied: "denied"} {
		if got := outcome.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", outcome, got, want)
		}
	}
}
