package streaming

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func makeASound(t *testing.T, pcm string, usbbus map[string]string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "pcm"), []byte(pcm), 0o644); err != nil {
		t.Fatal(err)
	}
	for card, bus := range usbbus {
		dir := filepath.Join(root, card)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "usbbus"), []byte(bus+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

const pcmFixture = `00-00: HDA Analog : HDA Analog : playback 1 : capture 1
00-03: HDMI 0 : HDMI 0 : playback 1
02-00: USB Audio : USB Audio : capture 1
`

func TestFindCaptureDevice(t *testing.T) {
	root := makeASound(t, pcmFixture, map[string]string{"card2": "001/004"})

	tests := []struct {
		name      string
		usbBusDev string
		want      string
	}{
		{"matches camera card", "001/004", "plughw:2,0"},
		{"falls back to first capture", "003/009", "plughw:0,0"},
		{"no camera", "", "plughw:0,0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindCaptureDevice(root, tt.usbBusDev)
			if !ok || got != tt.want {
				t.Errorf("FindCaptureDevice() = %q, %v, want %q", got, ok, tt.want)
			}
		})
	}
}

func TestFindCaptureDeviceNone(t *testing.T) {
	root := makeASound(t, "00-03: HDMI 0 : HDMI 0 : playback 1\n", nil)
	if got, ok := FindCaptureDevice(root, ""); ok {
		t.Errorf("FindCaptureDevice() = %q, want none", got)
	}
	if _, ok := FindCaptureDevice(t.TempDir(), ""); ok {
		t.Error("FindCaptureDevice() found a device without a pcm file")
	}
}

func TestMicrophoneLifecycle(t *testing.T) {
	root := makeASound(t, pcmFixture, map[string]string{"card2": "001/004"})
	m := NewMicrophone("", USBBusDev("/dev/bus/usb/001/004"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.asoundRoot = root

	if !m.Create(48000, true) {
		t.Fatal("Create() = false")
	}
	if got := m.InputDevice(); got != "plughw:2,0" {
		t.Errorf("InputDevice() = %q, want plughw:2,0", got)
	}
	m.Start()
	if !m.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
	m.Stop()
	if m.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	m.Release()
	if m.InputDevice() != "" {
		t.Error("Release kept the device")
	}
}

func TestMicrophoneExplicitDevice(t *testing.T) {
	m := NewMicrophone("hw:3,0", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.asoundRoot = t.TempDir()
	if !m.Create(44100, false) {
		t.Fatal("Create() = false")
	}
	if got := m.InputDevice(); got != "hw:3,0" {
		t.Errorf("InputDevice() = %q, want hw:3,0", got)
	}
}

func TestUSBBusDev(t *testing.T) {
	if got := USBBusDev("/dev/bus/usb/001/004"); got != "001/004" {
		t.Errorf("USBBusDev() = %q", got)
	}
	if got := USBBusDev("cam"); got != "" {
		t.Errorf("USBBusDev(cam) = %q, want empty", got)
	}
}
