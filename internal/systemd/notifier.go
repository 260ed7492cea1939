// Package systemd reports service readiness and lifecycle status to the
// service manager through sd_notify.
package systemd

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/smazurov/uvcrtsp/internal/events"
)

// NotifyFunc sends a state string to the service manager. It reports false
// when no manager is listening.
type NotifyFunc func(state string) (bool, error)

// Notifier forwards lifecycle transitions as STATUS= lines and keeps the
// watchdog fed.
type Notifier struct {
	notify   NotifyFunc
	interval time.Duration
	eventBus *events.Bus
	logger   *slog.Logger

	mu          sync.Mutex
	unsubscribe func()
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewNotifier creates a notifier using the NOTIFY_SOCKET of the process.
func NewNotifier(eventBus *events.Bus, logger *slog.Logger) *Notifier {
	interval, _ := daemon.SdWatchdogEnabled(false)
	return newNotifier(func(state string) (bool, error) {
		return daemon.SdNotify(false, state)
	}, interval/2, eventBus, logger)
}

func newNotifier(notify NotifyFunc, interval time.Duration, eventBus *events.Bus, logger *slog.Logger) *Notifier {
	return &Notifier{
		notify:   notify,
		interval: interval,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Ready signals that startup finished and starts following the lifecycle.
func (n *Notifier) Ready() {
	n.send(daemon.SdNotifyReady)

	n.mu.Lock()
	defer n.mu.Unlock()
	n.unsubscribe = n.eventBus.Subscribe(n.handleEvent)
	if n.interval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		n.cancel = cancel
		n.done = make(chan struct{})
		go n.keepalive(ctx, n.done)
	}
}

// Stopping signals shutdown and stops the watchdog.
func (n *Notifier) Stopping() {
	n.mu.Lock()
	if n.unsubscribe != nil {
		n.unsubscribe()
		n.unsubscribe = nil
	}
	cancel, done := n.cancel, n.done
	n.cancel, n.done = nil, nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	n.send(daemon.SdNotifyStopping)
}

func (n *Notifier) handleEvent(ev events.SessionStateChangedEvent) {
	n.send("STATUS=" + statusLine(ev))
}

func statusLine(ev events.SessionStateChangedEvent) string {
	switch {
	case ev.Code != "":
		return fmt.Sprintf("%s %s (%s)", ev.To, ev.DeviceName, ev.Code)
	case ev.Port != 0 && ev.To == "streaming":
		return fmt.Sprintf("streaming %s on port %d", ev.DeviceName, ev.Port)
	case ev.DeviceName != "":
		return ev.To + " " + ev.DeviceName
	default:
		return ev.To
	}
}

func (n *Notifier) keepalive(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}

func (n *Notifier) send(state string) {
	if _, err := n.notify(state); err != nil {
		n.logger.Warn("Failed to notify service manager", "state", state, "error", err)
	}
}
