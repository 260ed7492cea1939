package lifecycle

import (
	"errors"
	"sync"

	"github.com/smazurov/uvcrtsp/internal/capture"
)

// CaptureSession owns the open capture device through the registry.
type CaptureSession struct {
	helper   capture.Helper
	registry *Registry

	mu      sync.Mutex
	session *Session
}

// NewCaptureSession returns a capture session driving helper.
func NewCaptureSession(helper capture.Helper, registry *Registry) *CaptureSession {
	return &CaptureSession{helper: helper, registry: registry}
}

// Open takes the registry slot and selects dev. Completion is reported
// through the helper's OnDeviceOpen callback.
func (c *CaptureSession) Open(dev capture.Device) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		if c.session.Device.Name == dev.Name {
			return c.session, nil
		}
		return nil, NewError(CodeDeviceBusy, c.session.Device.Name+" is already open", nil)
	}

	s, err := c.registry.Acquire(dev)
	if err != nil {
		return nil, err
	}
	if err := c.helper.SelectDevice(dev); err != nil {
		c.registry.Release(s)
		if errors.Is(err, capture.ErrDeviceBusy) {
			return nil, NewError(CodeDeviceBusy, "select "+dev.Name, err)
		}
		return nil, NewError(CodeHardwareError, "select "+dev.Name, err)
	}
	c.session = s
	return s, nil
}

// OpenCamera negotiates the capture format. Completion is reported through
// OnCameraOpen.
func (c *CaptureSession) OpenCamera() error {
	if c.Session() == nil {
		return NewError(CodeHardwareError, "open camera", capture.ErrNoDevice)
	}
	if err := c.helper.OpenCamera(); err != nil {
		return NewError(CodeHardwareError, "open camera", err)
	}
	return nil
}

// StartPreview starts the frame pump. A nil target drops frames until a
// surface is added.
func (c *CaptureSession) StartPreview(target capture.RenderTarget) error {
	if c.Session() == nil {
		return NewError(CodeHardwareError, "start preview", capture.ErrNoDevice)
	}
	if err := c.helper.StartPreview(target); err != nil {
		return NewError(CodeHardwareError, "start preview", err)
	}
	return nil
}

// AddSurface adds a frame receiver.
func (c *CaptureSession) AddSurface(target capture.RenderTarget) {
	c.helper.AddSurface(target)
}

// RemoveSurface removes a frame receiver.
func (c *CaptureSession) RemoveSurface(target capture.RenderTarget) {
	c.helper.RemoveSurface(target)
}

// Format returns the negotiated capture format.
func (c *CaptureSession) Format() capture.Format {
	return c.helper.Format()
}

// Session returns the open session or nil.
func (c *CaptureSession) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Close releases the device and the registry slot. It is safe to call
// when nothing is open.
func (c *CaptureSession) Close() {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()

	if s == nil {
		return
	}
	c.helper.Release()
	c.registry.Release(s)
}
