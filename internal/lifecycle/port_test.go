package lifecycle

import "testing"

func TestDerivePort(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"/dev/bus/usb/001/004", 10558},
		{"/dev/bus/usb/001/000", 10554},
		{"/dev/bus/usb/002/127", 10681},
		{"7", 10561},
		{"/dev/bus/usb/001/054981", 65535},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DerivePort(tt.name)
			if err != nil {
				t.Fatalf("DerivePort() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DerivePort() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDerivePortInvalid(t *testing.T) {
	for _, name := range []string{
		"/dev/bus/usb/001/cam",
		"/dev/bus/usb/001/",
		"",
		"/dev/bus/usb/001/-4",
		"/dev/bus/usb/001/4a",
		"/dev/bus/usb/001/54982",
		"/dev/bus/usb/001/99999999999999999999",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DerivePort(name)
			if !HasCode(err, CodeInvalidDeviceIdentifier) {
				t.Errorf("DerivePort(%q) error = %v, want %s", name, err, CodeInvalidDeviceIdentifier)
			}
		})
	}
}

func TestDerivePortFrom(t *testing.T) {
	got, err := DerivePortFrom(20000, "/dev/bus/usb/003/012")
	if err != nil || got != 20012 {
		t.Errorf("DerivePortFrom() = %d, %v, want 20012", got, err)
	}
}
