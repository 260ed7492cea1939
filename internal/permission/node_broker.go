//go:build linux

package permission

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/smazurov/uvcrtsp/internal/capture"
	"github.com/smazurov/uvcrtsp/internal/logging"
	"golang.org/x/sys/unix"
)

// ErrNotAllowed is returned for devices outside the allow-list.
var ErrNotAllowed = errors.New("device not in allow-list")

// ErrNodeRemoved is returned when the node disappears while waiting.
var ErrNodeRemoved = errors.New("device node removed")

// NodeBroker grants a device when the process can read and write its V4L2
// node. When access is refused it waits for udev or logind to update the
// node's ACL.
type NodeBroker struct {
	allowed []string
	access  func(path string) error
	logger  *slog.Logger

	mu      sync.Mutex
	waiting map[string]*nodeWait
}

type nodeWait struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// NewNodeBroker returns a broker. allowed holds vendor:product ids; an
// empty list allows every device.
func NewNodeBroker(allowed []string) *NodeBroker {
	normalized := make([]string, 0, len(allowed))
	for _, id := range allowed {
		if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
			normalized = append(normalized, id)
		}
	}
	return &NodeBroker{
		allowed: normalized,
		access:  checkAccess,
		logger:  logging.GetLogger("permission"),
		waiting: make(map[string]*nodeWait),
	}
}

func checkAccess(path string) error {
	return unix.Access(path, unix.R_OK|unix.W_OK)
}

// Allowed reports whether dev passes the allow-list.
func (b *NodeBroker) Allowed(dev capture.Device) bool {
	return len(b.allowed) == 0 || slices.Contains(b.allowed, strings.ToLower(dev.ID()))
}

// Request checks access to dev.Path and reports through callback.
func (b *NodeBroker) Request(dev capture.Device, callback func(Result)) {
	result := func(outcome Outcome, err error) {
		callback(Result{Device: dev, Outcome: outcome, Err: err, Action: Action})
	}

	if !b.Allowed(dev) {
		b.logger.Warn("Device refused by allow-list", "device", dev.Name, "id", dev.ID())
		result(Denied, fmt.Errorf("%s: %w", dev.ID(), ErrNotAllowed))
		return
	}

	err := b.access(dev.Path)
	switch {
	case err == nil:
		b.logger.Debug("Access granted", "device", dev.Name, "path", dev.Path)
		result(Granted, nil)
		return
	case !errors.Is(err, unix.EACCES) && !errors.Is(err, unix.EPERM):
		result(Denied, fmt.Errorf("access %s: %w", dev.Path, err))
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		err = watcher.Add(filepath.Dir(dev.Path))
		if err != nil {
			watcher.Close()
		}
	}
	if err != nil {
		result(Denied, fmt.Errorf("watch %s: %w", dev.Path, err))
		return
	}

	wait := &nodeWait{watcher: watcher, done: make(chan struct{})}
	b.mu.Lock()
	if prev, ok := b.waiting[dev.Name]; ok {
		prev.stop()
	}
	b.waiting[dev.Name] = wait
	b.mu.Unlock()

	b.logger.Info("Waiting for access to device node", "device", dev.Name, "path", dev.Path)
	result(Pending, nil)

	go b.watch(dev, wait, func(outcome Outcome, err error) {
		if !wait.stopped() {
			result(outcome, err)
		}
	})
}

func (b *NodeBroker) watch(dev capture.Device, wait *nodeWait, result func(Outcome, error)) {
	defer b.forget(dev.Name, wait)

	// The ACL may have changed between the access check and the watch.
	if b.access(dev.Path) == nil {
		result(Granted, nil)
		return
	}

	target := filepath.Clean(dev.Path)
	for {
		select {
		case <-wait.done:
			return
		case ev, ok := <-wait.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
				result(Denied, fmt.Errorf("%s: %w", dev.Path, ErrNodeRemoved))
				return
			}
			if err := b.access(dev.Path); err == nil {
				b.logger.Info("Access granted after ACL change", "device", dev.Name, "path", dev.Path)
				result(Granted, nil)
				return
			}
		case err, ok := <-wait.watcher.Errors:
			if !ok {
				return
			}
			b.logger.Warn("Device node watch error", "path", dev.Path, "error", err)
		}
	}
}

// Cancel stops waiting for dev.
func (b *NodeBroker) Cancel(dev capture.Device) {
	b.mu.Lock()
	wait, ok := b.waiting[dev.Name]
	delete(b.waiting, dev.Name)
	b.mu.Unlock()
	if ok {
		wait.stop()
	}
}

func (b *NodeBroker) forget(name string, wait *nodeWait) {
	b.mu.Lock()
	if b.waiting[name] == wait {
		delete(b.waiting, name)
	}
	b.mu.Unlock()
	wait.stop()
}

func (w *nodeWait) stop() {
	w.once.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

func (w *nodeWait) stopped() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}
