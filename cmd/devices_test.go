package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/smazurov/uvcrtsp/internal/capture"
)

func TestWriteDevices(t *testing.T) {
	devices := []capture.Device{
		{Name: "/dev/bus/usb/001/004", Path: "/dev/video0", Label: "HD USB Camera", VendorID: "046d", ProductID: "0825"},
		{Name: "/dev/bus/usb/001/cam", Path: "/dev/video2"},
	}

	var out bytes.Buffer
	if err := writeDevices(&out, devices, 10554, "camera.local"); err != nil {
		t.Fatalf("writeDevices() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[1], "rtsp://camera.local:10558/") || !strings.Contains(lines[1], "046d:0825") {
		t.Errorf("first device line = %q", lines[1])
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[2]), "-") {
		t.Errorf("invalid device name should have no URL: %q", lines[2])
	}
}

func TestWriteNoDevices(t *testing.T) {
	var out bytes.Buffer
	if err := writeDevices(&out, nil, 10554, "localhost"); err != nil {
		t.Fatal(err)
	}
	if out.String() != "No capture devices found\n" {
		t.Errorf("output = %q", out.String())
	}
}
