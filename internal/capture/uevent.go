//go:build linux

package capture

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"golang.org/x/sys/unix"
)

// Kernel uevent actions the helper reacts to.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

const subsystemVideo4Linux = "video4linux"

// UEvent is one kernel object event.
type UEvent struct {
	Action    string
	KObj      string
	Subsystem string
	DevName   string
	Env       map[string]string
}

// ParseUEvent decodes a kernel broadcast "ACTION@KOBJ\0KEY=VALUE\0...".
// Returns nil when data is not a uevent.
func ParseUEvent(data []byte) *UEvent {
	fields := bytes.Split(data, []byte{0})
	if len(fields) == 0 {
		return nil
	}
	action, kobj, ok := strings.Cut(string(fields[0]), "@")
	if !ok || action == "" {
		return nil
	}

	ev := &UEvent{Action: action, KObj: kobj, Env: make(map[string]string)}
	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(string(field), "=")
		if !ok || key == "" {
			continue
		}
		ev.Env[key] = value
		switch key {
		case "SUBSYSTEM":
			ev.Subsystem = value
		case "DEVNAME":
			ev.DevName = value
		}
	}
	return ev
}

// Node returns the device node basename ("video0"). DEVNAME may be either
// the bare name or a path relative to /dev.
func (e *UEvent) Node() string {
	name := e.DevName
	if name == "" {
		if i := strings.LastIndexByte(e.KObj, '/'); i >= 0 {
			name = e.KObj[i+1:]
		}
	}
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// ueventMonitor reads kernel uevents from a netlink socket.
type ueventMonitor struct {
	fd int
}

func newUEventMonitor() (*ueventMonitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, err
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1}); err != nil {
		unix.Close(fd)
		return nil, err
	}
	// One second receive timeout lets run observe cancellation.
	tv := unix.Timeval{Sec: 1}
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &ueventMonitor{fd: fd}, nil
}

func (m *ueventMonitor) Close() error {
	return unix.Close(m.fd)
}

// run delivers video4linux events until ctx is done. events is closed on
// return.
func (m *ueventMonitor) run(ctx context.Context, events chan<- UEvent) error {
	defer close(events)

	buf := make([]byte, 8192)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, _, err := unix.Recvfrom(m.fd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}

		ev := ParseUEvent(buf[:n])
		if ev == nil || ev.Subsystem != subsystemVideo4Linux {
			continue
		}

		select {
		case events <- *ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
