// Package lifecycle sequences a capture device from attach to a live RTSP
// stream: permission, open, preview, encode and publish.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/uvcrtsp/internal/capture"
	"github.com/smazurov/uvcrtsp/internal/events"
	"github.com/smazurov/uvcrtsp/internal/logging"
	"github.com/smazurov/uvcrtsp/internal/metrics"
	"github.com/smazurov/uvcrtsp/internal/permission"
	"github.com/smazurov/uvcrtsp/internal/streaming"
)

// DefaultPermissionTimeout bounds how long a pending permission request
// is waited for.
const DefaultPermissionTimeout = 30 * time.Second

// Options configure a Controller.
type Options struct {
	Helper    capture.Helper
	Broker    permission.Broker
	Registry  *Registry
	NewStream StreamFactory
	NewAudio  AudioFactory

	Config   streaming.Config
	Target   streaming.TargetSettings // InputFormat is filled from the camera
	BasePort int
	Host     string // host advertised in stream URLs

	// PermissionTimeout of zero waits forever.
	PermissionTimeout time.Duration

	Bus    *events.Bus
	Logger *slog.Logger
}

// Snapshot describes the controller for status reporting.
type Snapshot struct {
	State     State             `json:"state" example:"streaming"`
	Device    *capture.Device   `json:"device,omitempty"`
	SessionID string            `json:"session_id,omitempty" example:"9b2f3c9e-7d0a-4a51-9a0e-2d1c5c7b8e11"`
	Port      int               `json:"port,omitempty" example:"10558"`
	URL       string            `json:"url,omitempty" example:"rtsp://camera.local:10558/"`
	Since     time.Time         `json:"since"`
	LastError string            `json:"last_error,omitempty"`
	Stream    *streaming.Status `json:"stream,omitempty"`
}

type handler func(ev event)

// Controller is the device lifecycle state machine. Capture, permission
// and stream callbacks only enqueue events; Run handles them one at a time
// in arrival order.
type Controller struct {
	opts     Options
	logger   *slog.Logger
	capture  *CaptureSession
	handlers map[State]handler

	queueMu sync.Mutex
	queue   []event
	signal  chan struct{}

	// Owned by the Run goroutine.
	state     State
	device    *capture.Device
	session   *Session
	req       uint64
	permTimer *time.Timer

	snapMu     sync.RWMutex
	snap       Snapshot
	snapStream Stream

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates a controller and registers it as the helper's
// state callback.
func NewController(opts Options) *Controller {
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.BasePort == 0 {
		opts.BasePort = DefaultBasePort
	}
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("lifecycle")
	}

	c := &Controller{
		opts:    opts,
		logger:  opts.Logger,
		capture: NewCaptureSession(opts.Helper, opts.Registry),
		signal:  make(chan struct{}, 1),
		state:   StateDetached,
		snap:    Snapshot{State: StateDetached, Since: time.Now()},
	}
	c.handlers = map[State]handler{
		StatePermissionRequested: c.whilePermissionRequested,
		StateOpening:             c.whileOpening,
		StateOpen:                c.whileOpen,
		StateStreaming:           c.whileStreaming,
		StateClosed:              c.whileClosed,
	}
	opts.Helper.SetStateCallback(c)
	metrics.SetSessionState(StateDetached.String())
	return c
}

// Run processes events until ctx is done or Shutdown is called, then
// releases every resource still held.
func (c *Controller) Run(ctx context.Context) error {
	c.runMu.Lock()
	if c.done != nil {
		c.runMu.Unlock()
		return errors.New("controller already running")
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	done := c.done
	c.runMu.Unlock()
	defer close(done)

	c.logger.Info("Lifecycle controller started")
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case <-c.signal:
		}
		for {
			ev, ok := c.next()
			if !ok {
				break
			}
			c.handle(ev)
		}
	}
}

// Shutdown stops Run and waits until resources are released.
func (c *Controller) Shutdown() {
	c.runMu.Lock()
	cancel, done := c.cancel, c.done
	c.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.snapMu.RLock()
	snap := c.snap
	c.snapMu.RUnlock()

	if snap.Device != nil {
		dev := *snap.Device
		snap.Device = &dev
	}
	if stream := c.currentStream(); stream != nil {
		st := stream.Status()
		snap.Stream = &st
	}
	return snap
}

func (c *Controller) currentStream() Stream {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snapStream
}

func (c *Controller) enqueue(ev event) {
	c.queueMu.Lock()
	c.queue = append(c.queue, ev)
	c.queueMu.Unlock()

	select {
	case c.signal <- struct{}{}:
	default:
	}
}

func (c *Controller) next() (event, bool) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if len(c.queue) == 0 {
		return nil, false
	}
	ev := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	return ev, true
}

// OnAttach and the other On methods implement capture.StateCallback.
func (c *Controller) OnAttach(dev capture.Device) { c.enqueue(attached{dev}) }

func (c *Controller) OnDeviceOpen(dev capture.Device, isFirstOpen bool) {
	c.enqueue(deviceOpened{dev: dev, first: isFirstOpen})
}

func (c *Controller) OnCameraOpen(dev capture.Device) { c.enqueue(cameraOpened{dev}) }
func (c *Controller) OnCameraClose(dev capture.Device) { c.enqueue(cameraClosed{dev}) }
func (c *Controller) OnDeviceClose(dev capture.Device) { c.enqueue(deviceClosed{dev}) }
func (c *Controller) OnDetach(dev capture.Device) { c.enqueue(detached{dev}) }
func (c *Controller) OnCancel(dev capture.Device) { c.enqueue(cancelled{dev}) }

func (c *Controller) OnError(dev capture.Device, err error) {
	c.enqueue(failed{dev: dev, err: err})
}

func (c *Controller) handle(ev event) {
	switch e := ev.(type) {
	case attached:
		c.publish(events.DeviceAttachedEvent{
			DeviceName: e.dev.Name,
			DevicePath: e.dev.Path,
			Label:      e.dev.Label,
			VendorID:   e.dev.VendorID,
			ProductID:  e.dev.ProductID,
			Timestamp:  timestamp(),
		})
		c.onAttached(e.dev)
		return
	case detached:
		c.publish(events.DeviceDetachedEvent{DeviceName: e.dev.Name, DevicePath: e.dev.Path, Timestamp: timestamp()})
	}

	if c.device == nil || ev.device().Name != c.device.Name {
		c.logger.Debug("Ignoring event for another device", "event", fmt.Sprintf("%T", ev), "device", ev.device().Name)
		return
	}
	if h, ok := c.handlers[c.state]; ok {
		h(ev)
		return
	}
	c.logger.Debug("Ignoring event", "event", fmt.Sprintf("%T", ev), "state", c.state)
}

func (c *Controller) onAttached(dev capture.Device) {
	if !c.state.idle() {
		if c.device != nil && c.device.Name == dev.Name {
			c.logger.Debug("Device already attached", "device", dev.Name, "state", c.state)
			return
		}
		err := NewError(CodeDeviceBusy, fmt.Sprintf("%s rejected while %s is %s", dev.Name, c.device.Name, c.state), nil)
		c.logger.Warn("Rejected device attach", "device", dev.Name, "active", c.device.Name, "error", err)
		metrics.RecordFailure(string(CodeDeviceBusy))
		c.publish(events.SessionStateChangedEvent{
			DeviceName: dev.Name,
			From:       StateDetached.String(),
			To:         StateDetached.String(),
			Code:       string(CodeDeviceBusy),
			Error:      err.Error(),
			Timestamp:  timestamp(),
		})
		return
	}

	c.device = &dev
	c.transition(StateAttached, nil)
	c.requestPermission(dev)
}

func (c *Controller) requestPermission(dev capture.Device) {
	c.req++
	req := c.req
	c.transition(StatePermissionRequested, nil)

	if c.opts.PermissionTimeout > 0 {
		c.permTimer = time.AfterFunc(c.opts.PermissionTimeout, func() {
			c.enqueue(permissionTimeout{dev: dev, req: req})
		})
	}
	c.opts.Broker.Request(dev, func(r permission.Result) {
		c.enqueue(permissionResult{dev: dev, result: r, req: req})
	})
}

func (c *Controller) whilePermissionRequested(ev event) {
	switch e := ev.(type) {
	case permissionResult:
		if e.req != c.req {
			return
		}
		c.publish(events.PermissionResultEvent{DeviceName: e.dev.Name, Outcome: e.result.Outcome.String(), Timestamp: timestamp()})
		switch e.result.Outcome {
		case permission.Pending:
			c.logger.Info("Waiting for device permission", "device", e.dev.Name, "path", e.dev.Path)
		case permission.Granted:
			c.stopPermissionTimer()
			c.transition(StatePermissionGranted, nil)
			c.open(e.dev)
		default:
			c.fail(NewError(CodePermissionDenied, "access to "+e.dev.Path+" refused", e.result.Err))
		}
	case permissionTimeout:
		if e.req != c.req {
			return
		}
		c.fail(NewError(CodePermissionDenied, fmt.Sprintf("no permission answer within %s", c.opts.PermissionTimeout), nil))
	default:
		c.common(ev)
	}
}

func (c *Controller) open(dev capture.Device) {
	session, err := c.capture.Open(dev)
	if err != nil {
		c.fail(err)
		return
	}
	c.session = session
	c.transition(StateOpening, nil)
}

func (c *Controller) whileOpening(ev event) {
	switch e := ev.(type) {
	case deviceOpened:
		c.logger.Debug("Device opened", "device", e.dev.Name, "first_open", e.first)
		if err := c.capture.OpenCamera(); err != nil {
			c.fail(err)
		}
	case cameraOpened:
		c.transition(StateOpen, nil)
		if err := c.capture.StartPreview(nil); err != nil {
			c.fail(err)
			return
		}
		c.enqueue(previewStarted{dev: e.dev})
	default:
		c.common(ev)
	}
}

func (c *Controller) whileOpen(ev event) {
	switch ev.(type) {
	case previewStarted:
		c.startStream(*c.device)
	case deviceOpened, cameraOpened, streamEvent:
	default:
		c.common(ev)
	}
}

func (c *Controller) whileStreaming(ev event) {
	switch e := ev.(type) {
	case streamEvent:
		if e.ev.Type != streaming.EventEncoderExited || e.ev.Port != c.session.Port {
			return
		}
		c.stopStream()
		c.transition(StateOpen, fmt.Errorf("encoder exited with code %d", e.ev.ExitCode))
	case deviceOpened, cameraOpened, previewStarted:
	default:
		c.common(ev)
	}
}

func (c *Controller) whileClosed(ev event) {
	if _, ok := ev.(detached); ok {
		c.forget()
	}
}

// common handles the events every active state reacts to the same way.
func (c *Controller) common(ev event) {
	switch e := ev.(type) {
	case detached:
		c.close()
		c.forget()
	case cameraClosed, deviceClosed:
		c.close()
	case cancelled:
		c.fail(NewError(CodePermissionDenied, "device open cancelled", nil))
	case failed:
		c.fail(NewError(CodeHardwareError, "capture failed", e.err))
	default:
		c.logger.Debug("Ignoring event", "event", fmt.Sprintf("%T", ev), "state", c.state)
	}
}

func (c *Controller) startStream(dev capture.Device) {
	port, err := DerivePortFrom(c.opts.BasePort, dev.Name)
	if err != nil {
		c.fail(err)
		return
	}

	cfg := c.opts.Config
	c.session.Port = port
	c.session.Config = cfg

	stream, err := c.opts.NewStream(port, dev, func(ev streaming.StreamEvent) {
		c.enqueue(streamEvent{dev: dev, ev: ev})
	})
	if err != nil {
		c.fail(NewError(CodeHardwareError, fmt.Sprintf("open RTSP endpoint on port %d", port), err))
		return
	}

	target := c.opts.Target
	target.InputFormat = c.capture.Format()
	stream.Configure(NewFrameBridge(c.capture), c.opts.NewAudio(dev), target)

	v, a := cfg.Video, cfg.Audio
	if !stream.PrepareVideo(v.Width, v.Height, v.Bitrate, v.FPS, v.KeyframeInterval, v.Rotation) ||
		!stream.PrepareAudio(a.SampleRate, a.Stereo, a.Bitrate) {
		c.abortStream(stream, NewError(CodePrepareFailed, "encoder rejected the stream parameters", nil))
		return
	}
	if err := stream.StartStream(); err != nil {
		c.abortStream(stream, NewError(CodePrepareFailed, "start encoder", err))
		return
	}

	c.session.Stream = stream
	c.setStream(stream)
	metrics.SetStreamPort(port)
	c.transition(StateStreaming, nil)
	c.logger.Info("Streaming", "device", dev.Name, "url", stream.URL(c.opts.Host))
}

// abortStream closes a stream that never started. The device stays open.
func (c *Controller) abortStream(stream Stream, err *Error) {
	if cerr := stream.Close(); cerr != nil {
		c.logger.Warn("Failed to close stream", "error", cerr)
	}
	c.logger.Error("Stream not started", "device", c.device.Name, "error", err)
	metrics.RecordFailure(string(err.Code))
	c.transition(StateOpen, err)
}

func (c *Controller) stopStream() {
	if c.session == nil || c.session.Stream == nil {
		return
	}
	if err := c.session.Stream.Close(); err != nil {
		c.logger.Warn("Failed to close stream", "port", c.session.Port, "error", err)
	}
	c.session.Stream = nil
	c.setStream(nil)
	metrics.SetStreamPort(0)
}

// release frees everything acquired for the current device.
func (c *Controller) release() {
	if c.state == StatePermissionRequested && c.device != nil {
		c.opts.Broker.Cancel(*c.device)
	}
	c.stopPermissionTimer()
	c.req++
	c.stopStream()
	c.capture.Close()
	c.session = nil
}

func (c *Controller) close() {
	c.release()
	c.transition(StateClosed, nil)
}

func (c *Controller) forget() {
	c.transition(StateDetached, nil)
	c.device = nil
	c.setDevice(nil)
}

// fail aborts the sequence for the current device. There is no retry.
func (c *Controller) fail(err error) {
	c.logger.Error("Device lifecycle failed", "device", c.deviceName(), "state", c.state, "error", err)
	metrics.RecordFailure(string(CodeOf(err)))
	c.release()
	c.transition(StateError, err)
	c.forget()
}

func (c *Controller) shutdown() {
	if c.state.idle() {
		return
	}
	c.logger.Info("Releasing device on shutdown", "device", c.deviceName())
	c.close()
}

func (c *Controller) stopPermissionTimer() {
	if c.permTimer != nil {
		c.permTimer.Stop()
		c.permTimer = nil
	}
}

func (c *Controller) transition(to State, err error) {
	from := c.state
	c.state = to
	now := time.Now()

	port := 0
	sessionID := ""
	if c.session != nil {
		port = c.session.Port
		sessionID = c.session.ID
	}

	c.snapMu.Lock()
	c.snap.State = to
	c.snap.Since = now
	c.snap.Port = port
	c.snap.SessionID = sessionID
	c.snap.URL = ""
	if c.snapStream != nil {
		c.snap.URL = c.snapStream.URL(c.opts.Host)
	}
	if c.device != nil {
		dev := *c.device
		c.snap.Device = &dev
	}
	if to == StateAttached {
		c.snap.LastError = ""
	}
	if err != nil {
		c.snap.LastError = err.Error()
	}
	c.snapMu.Unlock()

	metrics.RecordTransition(from.String(), to.String())
	metrics.SetSessionState(to.String())

	ev := events.SessionStateChangedEvent{
		DeviceName: c.deviceName(),
		From:       from.String(),
		To:         to.String(),
		Port:       port,
		Timestamp:  now.UTC().Format(time.RFC3339),
	}
	if err != nil {
		ev.Code = string(CodeOf(err))
		ev.Error = err.Error()
	}
	c.logger.Info("State changed", "device", ev.DeviceName, "from", ev.From, "to", ev.To)
	c.publish(ev)
}

func (c *Controller) setStream(s Stream) {
	c.snapMu.Lock()
	c.snapStream = s
	c.snapMu.Unlock()
}

func (c *Controller) setDevice(dev *capture.Device) {
	c.snapMu.Lock()
	c.snap.Device = dev
	c.snapMu.Unlock()
}

func (c *Controller) deviceName() string {
	if c.device == nil {
		return ""
	}
	return c.device.Name
}

func (c *Controller) publish(ev events.Event) {
	if c.opts.Bus != nil {
		c.opts.Bus.Publish(ev)
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
