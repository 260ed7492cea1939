package lifecycle

import (
	"errors"
	"testing"

	"github.com/smazurov/uvcrtsp/internal/capture"
)

func TestRegistryHoldsOneSession(t *testing.T) {
	r := NewRegistry()

	s, err := r.Acquire(camera)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if s.ID == "" || s.Device.Name != camera.Name || s.CreatedAt.IsZero() {
		t.Errorf("session = %+v", s)
	}

	if _, err := r.Acquire(otherCamera); !HasCode(err, CodeDeviceBusy) {
		t.Fatalf("second Acquire() error = %v, want DEVICE_BUSY", err)
	}
	if r.Active() != s {
		t.Error("Active() changed after a rejected acquire")
	}

	if r.Release(&Session{}) {
		t.Error("Release() of a foreign session = true")
	}
	if !r.Release(s) {
		t.Error("Release() = false")
	}
	if r.Release(s) {
		t.Error("second Release() = true")
	}

	s2, err := r.Acquire(otherCamera)
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	if s2.ID == s.ID {
		t.Error("session id reused")
	}
}

func TestCaptureSessionOpenClose(t *testing.T) {
	helper := &fakeHelper{}
	helper.SetStateCallback(nopCallback{})
	registry := NewRegistry()
	c := NewCaptureSession(helper, registry)

	if err := c.StartPreview(nil); !HasCode(err, CodeHardwareError) {
		t.Errorf("StartPreview() before Open error = %v", err)
	}

	s, err := c.Open(camera)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if again, err := c.Open(camera); err != nil || again != s {
		t.Errorf("reopening the same device = %v, %v", again, err)
	}
	if _, err := c.Open(otherCamera); !HasCode(err, CodeDeviceBusy) {
		t.Errorf("Open() of a second device error = %v, want DEVICE_BUSY", err)
	}
	if err := c.OpenCamera(); err != nil {
		t.Errorf("OpenCamera() error = %v", err)
	}
	if err := c.StartPreview(nil); err != nil {
		t.Errorf("StartPreview() error = %v", err)
	}

	c.Close()
	c.Close()
	if helper.releaseCount() != 1 {
		t.Errorf("helper releases = %d, want 1", helper.releaseCount())
	}
	if registry.Active() != nil {
		t.Error("registry slot held after Close")
	}
}

func TestCaptureSessionSelectFailureReleasesSlot(t *testing.T) {
	helper := &fakeHelper{selectErr: errors.New("open /dev/video0: no such device")}
	registry := NewRegistry()
	c := NewCaptureSession(helper, registry)

	if _, err := c.Open(camera); !HasCode(err, CodeHardwareError) {
		t.Fatalf("Open() error = %v, want HARDWARE_ERROR", err)
	}
	if registry.Active() != nil {
		t.Error("registry slot leaked")
	}
	if c.Session() != nil {
		t.Error("session kept after failed open")
	}
}

type nopCallback struct{}

func (nopCallback) OnAttach(capture.Device) {}
func (nopCallback) OnDeviceOpen(capture.Device, bool) {}
func (nopCallback) OnCameraOpen(capture.Device) {}
func (nopCallback) OnCameraClose(capture.Device) {}
func (nopCallback) OnDeviceClose(capture.Device) {}
func (nopCallback) OnDetach(capture.Device) {}
func (nopCallback) OnCancel(capture.Device) {}
func (nopCallback) OnError(capture.Device, error) {}
