package led

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultSysfsRoot is the kernel LED class directory.
const DefaultSysfsRoot = "/sys/class/leds"

// sysfs drives one LED through its trigger and brightness files.
type sysfs struct {
	dir  string
	name string
}

func newSysfs(root, name string) *sysfs {
	return &sysfs{dir: filepath.Join(root, name), name: name}
}

func (s *sysfs) Name() string {
	return s.name
}

func (s *sysfs) exists() bool {
	_, err := os.Stat(s.dir)
	return err == nil
}

// Show sets the trigger, then the brightness. Blinking uses the heartbeat
// trigger; solid and off are manual.
func (s *sysfs) Show(p Pattern) error {
	trigger, brightness := "none", "0"
	switch p {
	case PatternSolid:
		brightness = "1"
	case PatternBlink:
		trigger, brightness = "heartbeat", "1"
	case PatternOff:
	default:
		return fmt.Errorf("unknown LED pattern %q", p)
	}

	if err := os.WriteFile(filepath.Join(s.dir, "trigger"), []byte(trigger), 0o644); err != nil {
		return fmt.Errorf("set LED %s trigger: %w", s.name, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, "brightness"), []byte(brightness), 0o644); err != nil {
		return fmt.Errorf("set LED %s brightness: %w", s.name, err)
	}
	return nil
}
