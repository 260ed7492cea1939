package streaming

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// DefaultASoundRoot is where the kernel exposes ALSA state.
const DefaultASoundRoot = "/proc/asound"

// AutoDevice selects a capture device from /proc/asound.
const AutoDevice = "auto"

// Microphone is an ALSA capture source read directly by the encoder.
type Microphone struct {
	device     string
	usbBusDev  string
	asoundRoot string
	logger     *slog.Logger

	mu         sync.Mutex
	resolved   string
	sampleRate int
	channels   int
	running    bool
}

// NewMicrophone returns a source for device. With AutoDevice the capture
// device on the same USB device as the camera (usbBusDev, "001/004") is
// preferred, then the first capture device found.
func NewMicrophone(device, usbBusDev string, logger *slog.Logger) *Microphone {
	if device == "" {
		device = AutoDevice
	}
	return &Microphone{
		device:     device,
		usbBusDev:  usbBusDev,
		asoundRoot: DefaultASoundRoot,
		logger:     logger,
	}
}

// Create resolves the capture device.
func (m *Microphone) Create(sampleRate int, stereo bool) bool {
	device := m.device
	if device == AutoDevice {
		found, ok := FindCaptureDevice(m.asoundRoot, m.usbBusDev)
		if !ok {
			m.logger.Warn("No ALSA capture device found", "root", m.asoundRoot)
			return false
		}
		device = found
	}

	m.mu.Lock()
	m.resolved = device
	m.sampleRate = sampleRate
	m.channels = 1
	if stereo {
		m.channels = 2
	}
	m.mu.Unlock()

	m.logger.Info("Microphone prepared", "device", device, "sample_rate", sampleRate, "stereo", stereo)
	return true
}

// InputDevice returns the resolved ALSA device name.
func (m *Microphone) InputDevice() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolved
}

// Start marks the source running. The encoder opens the device itself.
func (m *Microphone) Start() {
	m.mu.Lock()
	m.running = true
	m.mu.Unlock()
}

// Stop marks the source stopped.
func (m *Microphone) Stop() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

// Release forgets the resolved device.
func (m *Microphone) Release() {
	m.mu.Lock()
	m.running = false
	m.resolved = ""
	m.mu.Unlock()
}

// IsRunning reports whether Start was called.
func (m *Microphone) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// FindCaptureDevice scans <root>/pcm for capture-capable PCMs and returns
// a plughw name. A card whose usbbus matches usbBusDev wins.
func FindCaptureDevice(root, usbBusDev string) (string, bool) {
	f, err := os.Open(filepath.Join(root, "pcm"))
	if err != nil {
		return "", false
	}
	defer f.Close()

	first := ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		// 01-00: USB Audio : USB Audio : capture 1
		line := scanner.Text()
		if !strings.Contains(line, "capture") {
			continue
		}
		id, _, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		cardStr, devStr, ok := strings.Cut(strings.TrimSpace(id), "-")
		if !ok {
			continue
		}
		card, err1 := strconv.Atoi(cardStr)
		dev, err2 := strconv.Atoi(devStr)
		if err1 != nil || err2 != nil {
			continue
		}

		name := fmt.Sprintf("plughw:%d,%d", card, dev)
		if usbBusDev != "" && cardUSBBus(root, card) == usbBusDev {
			return name, true
		}
		if first == "" {
			first = name
		}
	}
	return first, first != ""
}

func cardUSBBus(root string, card int) string {
	data, err := os.ReadFile(filepath.Join(root, fmt.Sprintf("card%d", card), "usbbus"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// USBBusDev extracts "BBB/DDD" from a USB device node name.
func USBBusDev(name string) string {
	parts := strings.Split(name, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2] + "/" + parts[len(parts)-1]
}
