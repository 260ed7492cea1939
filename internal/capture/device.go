package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Default filesystem roots.
const (
	DefaultSysRoot = "/sys"
	DefaultDevRoot = "/dev"
)

// Device identifies one attached USB capture device.
type Device struct {
	Name      string `json:"name" example:"/dev/bus/usb/001/004" doc:"USB device node"`
	Path      string `json:"path" example:"/dev/video0" doc:"V4L2 capture node"`
	Label     string `json:"label" example:"HD USB Camera" doc:"Card name reported by the driver"`
	VendorID  string `json:"vendor_id" example:"046d" doc:"USB vendor id"`
	ProductID string `json:"product_id" example:"0825" doc:"USB product id"`
}

// ID returns the vendor:product pair.
func (d Device) ID() string {
	return d.VendorID + ":" + d.ProductID
}

func (d Device) String() string {
	if d.Label == "" {
		return d.Name
	}
	return fmt.Sprintf("%s (%s)", d.Label, d.Name)
}

// ScanDevices lists the UVC capture nodes currently known to sysfs.
// Only the first node of each device (index 0) is returned; metadata
// nodes and non-USB video devices are skipped.
func ScanDevices(sysRoot, devRoot string) ([]Device, error) {
	classDir := filepath.Join(sysRoot, "class", "video4linux")
	entries, err := os.ReadDir(classDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", classDir, err)
	}

	var devices []Device
	for _, entry := range entries {
		dev, ok := ResolveDevice(sysRoot, devRoot, entry.Name())
		if ok {
			devices = append(devices, dev)
		}
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices, nil
}

// ResolveDevice builds a Device for a video4linux node such as "video0".
func ResolveDevice(sysRoot, devRoot, node string) (Device, bool) {
	nodeDir := filepath.Join(sysRoot, "class", "video4linux", node)

	if index, err := readAttr(nodeDir, "index"); err == nil && index != "0" {
		return Device{}, false
	}

	// device points at the USB interface; the usb_device is its parent.
	iface, err := filepath.EvalSymlinks(filepath.Join(nodeDir, "device"))
	if err != nil {
		return Device{}, false
	}
	usbDir := filepath.Dir(iface)

	bus, err := readIntAttr(usbDir, "busnum")
	if err != nil {
		return Device{}, false
	}
	num, err := readIntAttr(usbDir, "devnum")
	if err != nil {
		return Device{}, false
	}

	label, _ := readAttr(nodeDir, "name")
	vendor, _ := readAttr(usbDir, "idVendor")
	product, _ := readAttr(usbDir, "idProduct")

	return Device{
		Name:      fmt.Sprintf("%s/bus/usb/%03d/%03d", devRoot, bus, num),
		Path:      filepath.Join(devRoot, node),
		Label:     label,
		VendorID:  vendor,
		ProductID: product,
	}, true
}

func readAttr(dir, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func readIntAttr(dir, name string) (int, error) {
	s, err := readAttr(dir, name)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}
