package lifecycle

import (
	"strconv"
	"strings"
)

// DefaultBasePort is added to the device number to form the RTSP port.
const DefaultBasePort = 10554

const maxPort = 65535

// DerivePort maps a device name such as /dev/bus/usb/001/004 to its RTSP
// port, DefaultBasePort plus the number after the last slash.
func DerivePort(deviceName string) (int, error) {
	return DerivePortFrom(DefaultBasePort, deviceName)
}

// DerivePortFrom is DerivePort with a configurable base.
func DerivePortFrom(base int, deviceName string) (int, error) {
	suffix := deviceName[strings.LastIndex(deviceName, "/")+1:]
	if suffix == "" || strings.TrimLeft(suffix, "0123456789") != "" {
		return 0, NewError(CodeInvalidDeviceIdentifier, "device name "+strconv.Quote(deviceName)+" has no numeric suffix", nil)
	}

	n, err := strconv.Atoi(suffix)
	if err != nil || n > maxPort-base {
		return 0, NewError(CodeInvalidDeviceIdentifier, "device number "+suffix+" is out of the port range", err)
	}
	return base + n, nil
}
