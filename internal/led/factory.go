package led

import (
	"log/slog"
	"os"
	"strings"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// boardLEDs maps a device tree model to its status LED.
var boardLEDs = []struct {
	model string
	led   string
}{
	{"NanoPC-T6", "sys_led"},
	{"Orange Pi", "green_led"},
	{"Raspberry Pi", "ACT"},
}

// New returns the status LED. An empty name picks the LED of a known
// board. Without a usable LED the indicator does nothing.
func New(root, name string, logger *slog.Logger) Indicator {
	if root == "" {
		root = DefaultSysfsRoot
	}
	if name == "" {
		model := detectBoard(deviceTreeModelPath)
		name = boardLED(model)
		logger.Info("Detected board for LED control", "board_model", model, "led", name)
	}
	if name == "" {
		return newNoop(logger)
	}

	led := newSysfs(root, name)
	if !led.exists() {
		logger.Warn("Status LED not found, LED control disabled", "led", name, "root", root)
		return newNoop(logger)
	}
	return led
}

func boardLED(model string) string {
	for _, b := range boardLEDs {
		if strings.Contains(model, b.model) {
			return b.led
		}
	}
	return ""
}

// detectBoard reads the device tree model.
func detectBoard(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00")
}
