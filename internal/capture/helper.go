// Package capture is the UVC capture subsystem: hotplug discovery of USB
// video devices, V4L2 frame capture and a serialized callback dispatcher
// that reports device state changes.
package capture

import (
	"errors"
	"time"
)

// Errors returned by Helper implementations.
var (
	ErrNoDevice      = errors.New("no device selected")
	ErrDeviceBusy    = errors.New("another device is selected")
	ErrCameraNotOpen = errors.New("camera not open")
	ErrReleased      = errors.New("helper released")
	ErrNoFormat      = errors.New("no supported capture format")
)

// Format is a negotiated capture format.
type Format struct {
	FourCC string `json:"fourcc" example:"MJPG"`
	Width  int    `json:"width" example:"1280"`
	Height int    `json:"height" example:"720"`
}

// Compressed reports whether frames are encoded images rather than raw
// pixels.
func (f Format) Compressed() bool {
	return f.FourCC == FourCCMJPEG
}

// Pixel formats in order of preference.
const (
	FourCCMJPEG = "MJPG"
	FourCCYUYV  = "YUYV"
)

// Frame is one captured picture.
type Frame struct {
	Data      []byte
	Format    Format
	Timestamp time.Time
}

// RenderTarget receives captured frames.
type RenderTarget interface {
	DrawFrame(frame Frame) error
}

// StateCallback receives device state changes. Implementations are called
// from a single dispatcher goroutine, one call at a time.
type StateCallback interface {
	OnAttach(dev Device)
	OnDeviceOpen(dev Device, isFirstOpen bool)
	OnCameraOpen(dev Device)
	OnCameraClose(dev Device)
	OnDeviceClose(dev Device)
	OnDetach(dev Device)
	OnCancel(dev Device)
	OnError(dev Device, err error)
}

// Helper drives one capture device at a time. SelectDevice and OpenCamera
// complete asynchronously through OnDeviceOpen and OnCameraOpen.
type Helper interface {
	SetStateCallback(cb StateCallback)
	SelectDevice(dev Device) error
	OpenCamera() error
	StartPreview(target RenderTarget) error
	AddSurface(target RenderTarget)
	RemoveSurface(target RenderTarget)
	Format() Format
	CloseCamera()
	Release()
}
