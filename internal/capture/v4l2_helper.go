//go:build linux

package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/blackjack/webcam"
	"github.com/smazurov/uvcrtsp/internal/logging"
)

// Camera is the subset of *webcam.Webcam the helper drives.
type Camera interface {
	GetSupportedFormats() map[webcam.PixelFormat]string
	SetImageFormat(f webcam.PixelFormat, width, height uint32) (webcam.PixelFormat, uint32, uint32, error)
	SetFramerate(fps float32) error
	StartStreaming() error
	WaitForFrame(timeout uint32) error
	ReadFrame() ([]byte, error)
	StopStreaming() error
	Close() error
}

// Opener opens the V4L2 node at path.
type Opener func(path string) (Camera, error)

// OpenWebcam opens a V4L2 node with blackjack/webcam.
func OpenWebcam(path string) (Camera, error) {
	cam, err := webcam.Open(path)
	if err != nil {
		return nil, err
	}
	return cam, nil
}

// Options configures a V4L2Helper.
type Options struct {
	SysRoot string
	DevRoot string
	Width   int
	Height  int
	FPS     int
	Open    Opener
	Logger  *slog.Logger
}

// V4L2Helper implements Helper on top of V4L2 and reports hotplug changes
// from the kernel uevent socket.
type V4L2Helper struct {
	opts     Options
	logger   *slog.Logger
	dispatch *dispatcher
	cmds     chan func()
	quit     chan struct{}
	wg       sync.WaitGroup

	mu         sync.Mutex
	cb         StateCallback
	attached   map[string]Device
	opened     map[string]bool
	selected   *Device
	generation uint64
	cam        Camera
	cameraOpen bool
	format     Format
	surfaces   []RenderTarget
	pumpStop   chan struct{}
	pumpDone   chan struct{}
	closed     bool
}

// NewV4L2Helper starts the helper's worker and dispatcher goroutines.
// Call Close to stop them.
func NewV4L2Helper(opts Options) *V4L2Helper {
	if opts.SysRoot == "" {
		opts.SysRoot = DefaultSysRoot
	}
	if opts.DevRoot == "" {
		opts.DevRoot = DefaultDevRoot
	}
	if opts.Open == nil {
		opts.Open = OpenWebcam
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 1280, 720
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("capture")
	}

	h := &V4L2Helper{
		opts:     opts,
		logger:   logger,
		dispatch: newDispatcher(),
		cmds:     make(chan func(), 8),
		quit:     make(chan struct{}),
		attached: make(map[string]Device),
		opened:   make(map[string]bool),
	}
	h.wg.Add(1)
	go h.work()
	return h
}

// SetStateCallback sets the receiver of state changes.
func (h *V4L2Helper) SetStateCallback(cb StateCallback) {
	h.mu.Lock()
	h.cb = cb
	h.mu.Unlock()
}

// Devices returns the currently attached devices.
func (h *V4L2Helper) Devices() []Device {
	h.mu.Lock()
	defer h.mu.Unlock()
	devices := make([]Device, 0, len(h.attached))
	for _, dev := range h.attached {
		devices = append(devices, dev)
	}
	slices.SortFunc(devices, func(a, b Device) int {
		switch {
		case a.Path < b.Path:
			return -1
		case a.Path > b.Path:
			return 1
		}
		return 0
	})
	return devices
}

// SelectDevice opens dev on the worker goroutine. Success is reported
// through OnDeviceOpen; a permission failure through OnCancel; any other
// failure through OnError.
func (h *V4L2Helper) SelectDevice(dev Device) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrReleased
	}
	if h.selected != nil && h.selected.Name != dev.Name {
		h.mu.Unlock()
		return ErrDeviceBusy
	}
	if h.selected != nil {
		opened := h.cam != nil
		h.mu.Unlock()
		if opened {
			h.notify(func(cb StateCallback) { cb.OnDeviceOpen(dev, false) })
		}
		return nil
	}
	h.selected = &dev
	h.generation++
	gen := h.generation
	h.mu.Unlock()

	return h.submit(func() { h.openDevice(dev, gen) })
}

func (h *V4L2Helper) openDevice(dev Device, gen uint64) {
	cam, err := h.opts.Open(dev.Path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			h.logger.Warn("Access to capture node refused", "path", dev.Path, "error", err)
			h.notify(func(cb StateCallback) { cb.OnCancel(dev) })
			return
		}
		h.notify(func(cb StateCallback) { cb.OnError(dev, fmt.Errorf("open %s: %w", dev.Path, err)) })
		return
	}

	h.mu.Lock()
	if h.generation != gen {
		h.mu.Unlock()
		_ = cam.Close()
		return
	}
	h.cam = cam
	first := !h.opened[dev.Name]
	h.opened[dev.Name] = true
	h.mu.Unlock()

	h.logger.Debug("Device opened", "device", dev.Name, "path", dev.Path, "first_open", first)
	h.notify(func(cb StateCallback) { cb.OnDeviceOpen(dev, first) })
}

// OpenCamera negotiates the capture format on the worker goroutine and
// reports OnCameraOpen.
func (h *V4L2Helper) OpenCamera() error {
	h.mu.Lock()
	if h.selected == nil || h.cam == nil {
		h.mu.Unlock()
		return ErrNoDevice
	}
	dev, cam, gen := *h.selected, h.cam, h.generation
	h.mu.Unlock()

	return h.submit(func() { h.openCamera(dev, cam, gen) })
}

func (h *V4L2Helper) openCamera(dev Device, cam Camera, gen uint64) {
	format, err := negotiateFormat(cam, h.opts.Width, h.opts.Height)
	if err != nil {
		h.notify(func(cb StateCallback) { cb.OnError(dev, err) })
		return
	}
	if h.opts.FPS > 0 {
		if err := cam.SetFramerate(float32(h.opts.FPS)); err != nil {
			h.logger.Debug("Device kept its default frame rate", "path", dev.Path, "error", err)
		}
	}

	h.mu.Lock()
	if h.generation != gen {
		h.mu.Unlock()
		return
	}
	h.format = format
	h.cameraOpen = true
	h.mu.Unlock()

	h.logger.Info("Camera opened", "device", dev.Name, "format", format.FourCC,
		"width", format.Width, "height", format.Height)
	h.notify(func(cb StateCallback) { cb.OnCameraOpen(dev) })
}

// StartPreview starts streaming frames into target and any surfaces added
// later. target may be nil.
func (h *V4L2Helper) StartPreview(target RenderTarget) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.cameraOpen {
		return ErrCameraNotOpen
	}
	if target != nil && !slices.Contains(h.surfaces, target) {
		h.surfaces = append(h.surfaces, target)
	}
	if h.pumpStop != nil {
		return nil
	}

	if err := h.cam.StartStreaming(); err != nil {
		return fmt.Errorf("start streaming %s: %w", h.selected.Path, err)
	}

	h.pumpStop = make(chan struct{})
	h.pumpDone = make(chan struct{})
	go h.pump(*h.selected, h.cam, h.format, h.pumpStop, h.pumpDone)
	return nil
}

// AddSurface adds a frame receiver.
func (h *V4L2Helper) AddSurface(target RenderTarget) {
	if target == nil {
		return
	}
	h.mu.Lock()
	if !slices.Contains(h.surfaces, target) {
		h.surfaces = append(h.surfaces, target)
	}
	h.mu.Unlock()
}

// RemoveSurface removes a frame receiver.
func (h *V4L2Helper) RemoveSurface(target RenderTarget) {
	h.mu.Lock()
	h.surfaces = slices.DeleteFunc(h.surfaces, func(t RenderTarget) bool { return t == target })
	h.mu.Unlock()
}

// Format returns the negotiated capture format.
func (h *V4L2Helper) Format() Format {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.format
}

// CloseCamera stops the preview. The device stays open. Closes requested
// by the caller are not reported back through the callback.
func (h *V4L2Helper) CloseCamera() {
	h.closeCamera(false)
}

// Release closes the camera and the device and forgets the selection.
func (h *V4L2Helper) Release() {
	h.release(false)
}

func (h *V4L2Helper) closeCamera(report bool) {
	h.mu.Lock()
	wasOpen := h.cameraOpen
	stop, done, cam := h.pumpStop, h.pumpDone, h.cam
	h.pumpStop, h.pumpDone = nil, nil
	h.cameraOpen = false
	h.surfaces = nil
	var dev Device
	if h.selected != nil {
		dev = *h.selected
	}
	h.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
		if err := cam.StopStreaming(); err != nil {
			h.logger.Debug("Stop streaming failed", "path", dev.Path, "error", err)
		}
	}
	if wasOpen && report {
		h.notify(func(cb StateCallback) { cb.OnCameraClose(dev) })
	}
}

func (h *V4L2Helper) release(report bool) {
	h.closeCamera(report)

	h.mu.Lock()
	cam, selected := h.cam, h.selected
	h.cam, h.selected = nil, nil
	h.format = Format{}
	h.generation++
	h.mu.Unlock()

	if cam == nil {
		return
	}
	if err := cam.Close(); err != nil {
		h.logger.Debug("Close device failed", "path", selected.Path, "error", err)
	}
	h.logger.Debug("Device released", "device", selected.Name)
	if report {
		dev := *selected
		h.notify(func(cb StateCallback) { cb.OnDeviceClose(dev) })
	}
}

func (h *V4L2Helper) pump(dev Device, cam Camera, format Format, stop, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		err := cam.WaitForFrame(1)
		var timeout *webcam.Timeout
		switch {
		case errors.As(err, &timeout):
			continue
		case err != nil:
			h.pumpFailed(dev, stop, err)
			return
		}

		data, err := cam.ReadFrame()
		if err != nil {
			h.pumpFailed(dev, stop, err)
			return
		}
		if len(data) == 0 {
			continue
		}

		h.draw(Frame{Data: bytes.Clone(data), Format: format, Timestamp: time.Now()})
	}
}

func (h *V4L2Helper) pumpFailed(dev Device, stop chan struct{}, err error) {
	select {
	case <-stop:
		return
	default:
	}
	h.logger.Error("Frame capture failed", "path", dev.Path, "error", err)
	h.notify(func(cb StateCallback) { cb.OnError(dev, fmt.Errorf("capture %s: %w", dev.Path, err)) })
}

func (h *V4L2Helper) draw(frame Frame) {
	h.mu.Lock()
	targets := slices.Clone(h.surfaces)
	h.mu.Unlock()

	for _, target := range targets {
		if err := target.DrawFrame(frame); err != nil {
			h.logger.Warn("Surface rejected frame, detaching it", "error", err)
			h.RemoveSurface(target)
		}
	}
}

// Run reports the devices already present, then follows kernel hotplug
// events until ctx is done.
func (h *V4L2Helper) Run(ctx context.Context) error {
	devices, err := ScanDevices(h.opts.SysRoot, h.opts.DevRoot)
	if err != nil {
		h.logger.Warn("Initial device scan failed", "error", err)
	}
	for _, dev := range devices {
		h.attach(dev)
	}
	h.logger.Info("Initialized with capture devices", "count", len(devices))

	mon, err := newUEventMonitor()
	if err != nil {
		h.logger.Warn("Hotplug monitoring unavailable", "error", err)
		<-ctx.Done()
		return nil
	}
	defer mon.Close()

	events := make(chan UEvent, 16)
	errCh := make(chan error, 1)
	go func() { errCh <- mon.run(ctx, events) }()

	h.logger.Info("Hotplug monitoring started")
	for ev := range events {
		h.handleUEvent(ev)
	}

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("hotplug monitor: %w", err)
	}
	return nil
}

func (h *V4L2Helper) handleUEvent(ev UEvent) {
	node := ev.Node()
	switch ev.Action {
	case ActionAdd:
		if dev, ok := ResolveDevice(h.opts.SysRoot, h.opts.DevRoot, node); ok {
			h.attach(dev)
		}
	case ActionRemove:
		path := filepath.Join(h.opts.DevRoot, node)
		h.mu.Lock()
		dev, ok := h.attached[path]
		h.mu.Unlock()
		if ok {
			h.detach(dev)
		}
	}
}

func (h *V4L2Helper) attach(dev Device) {
	h.mu.Lock()
	if _, known := h.attached[dev.Path]; known {
		h.mu.Unlock()
		return
	}
	h.attached[dev.Path] = dev
	delete(h.opened, dev.Name)
	h.mu.Unlock()

	h.logger.Info("Capture device attached", "device", dev.Name, "path", dev.Path, "label", dev.Label)
	h.notify(func(cb StateCallback) { cb.OnAttach(dev) })
}

func (h *V4L2Helper) detach(dev Device) {
	h.mu.Lock()
	delete(h.attached, dev.Path)
	selected := h.selected != nil && h.selected.Name == dev.Name
	h.mu.Unlock()

	if selected {
		h.release(true)
	}
	h.logger.Info("Capture device detached", "device", dev.Name, "path", dev.Path)
	h.notify(func(cb StateCallback) { cb.OnDetach(dev) })
}

// Close releases the device and stops the helper's goroutines.
func (h *V4L2Helper) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	h.release(false)
	close(h.quit)
	h.wg.Wait()
	h.dispatch.stop()
}

func (h *V4L2Helper) work() {
	defer h.wg.Done()
	for {
		select {
		case fn := <-h.cmds:
			fn()
		case <-h.quit:
			return
		}
	}
}

func (h *V4L2Helper) submit(fn func()) error {
	select {
	case h.cmds <- fn:
		return nil
	case <-h.quit:
		return ErrReleased
	}
}

func (h *V4L2Helper) notify(fn func(cb StateCallback)) {
	h.dispatch.post(func() {
		h.mu.Lock()
		cb := h.cb
		h.mu.Unlock()
		if cb != nil {
			fn(cb)
		}
	})
}

func negotiateFormat(cam Camera, width, height int) (Format, error) {
	supported := cam.GetSupportedFormats()
	for _, fourcc := range []string{FourCCMJPEG, FourCCYUYV} {
		code := pixelFormat(fourcc)
		if _, ok := supported[code]; !ok {
			continue
		}
		got, w, h, err := cam.SetImageFormat(code, uint32(width), uint32(height))
		if err != nil {
			return Format{}, fmt.Errorf("set format %s %dx%d: %w", fourcc, width, height, err)
		}
		return Format{FourCC: fourccString(got), Width: int(w), Height: int(h)}, nil
	}
	return Format{}, ErrNoFormat
}

func pixelFormat(fourcc string) webcam.PixelFormat {
	return webcam.PixelFormat(uint32(fourcc[0]) | uint32(fourcc[1])<<8 | uint32(fourcc[2])<<16 | uint32(fourcc[3])<<24)
}

func fourccString(f webcam.PixelFormat) string {
	return string([]byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)})
}
