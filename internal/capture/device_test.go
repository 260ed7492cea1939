package capture

import (
	"os"
	"path/filepath"
	"testing"
)

// makeSysfs builds a minimal /sys tree with one UVC device exposing a
// capture node and a metadata node.
func makeSysfs(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	usbDir := filepath.Join(root, "devices", "pci0000:00", "usb1", "1-1")
	iface := filepath.Join(usbDir, "1-1:1.0")
	mustMkdir(t, iface)
	mustWrite(t, filepath.Join(usbDir, "busnum"), "1\n")
	mustWrite(t, filepath.Join(usbDir, "devnum"), "4\n")
	mustWrite(t, filepath.Join(usbDir, "idVendor"), "046d\n")
	mustWrite(t, filepath.Join(usbDir, "idProduct"), "0825\n")

	for node, index := range map[string]string{"video0": "0", "video1": "1"} {
		dir := filepath.Join(root, "class", "video4linux", node)
		mustMkdir(t, dir)
		mustWrite(t, filepath.Join(dir, "index"), index+"\n")
		mustWrite(t, filepath.Join(dir, "name"), "HD USB Camera\n")
		if err := os.Symlink(iface, filepath.Join(dir, "device")); err != nil {
			t.Fatal(err)
		}
	}

	// A platform video device without a USB parent.
	platform := filepath.Join(root, "devices", "platform", "fdc00000.vpu")
	mustMkdir(t, platform)
	dir := filepath.Join(root, "class", "video4linux", "video2")
	mustMkdir(t, dir)
	mustWrite(t, filepath.Join(dir, "index"), "0\n")
	if err := os.Symlink(platform, filepath.Join(dir, "device")); err != nil {
		t.Fatal(err)
	}

	return root
}

func mustMkdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanDevices(t *testing.T) {
	root := makeSysfs(t)

	devices, err := ScanDevices(root, "/dev")
	if err != nil {
		t.Fatalf("ScanDevices: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("got %d devices, want 1: %+v", len(devices), devices)
	}

	want := Device{
		Name:      "/dev/bus/usb/001/004",
		Path:      "/dev/video0",
		Label:     "HD USB Camera",
		VendorID:  "046d",
		ProductID: "0825",
	}
	if devices[0] != want {
		t.Errorf("got %+v, want %+v", devices[0], want)
	}
	if id := devices[0].ID(); id != "046d:0825" {
		t.Errorf("ID() = %q", id)
	}
}

func TestScanDevicesMissingClass(t *testing.T) {
	devices, err := ScanDevices(t.TempDir(), "/dev")
	if err != nil {
		t.Fatalf("ScanDevices: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("got %d devices, want none", len(devices))
	}
}

func TestResolveDeviceSkipsSecondaryNodes(t *testing.T) {
	root := makeSysfs(t)

	if _, ok := ResolveDevice(root, "/dev", "video1"); ok {
		t.Error("metadata node video1 should be skipped")
	}
	if _, ok := ResolveDevice(root, "/dev", "video2"); ok {
		t.Error("platform node video2 should be skipped")
	}
	if _, ok := ResolveDevice(root, "/dev", "video9"); ok {
		t.Error("unknown node should not resolve")
	}
}
