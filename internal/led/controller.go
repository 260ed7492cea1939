// Package led drives a board status LED from the device lifecycle.
package led

// Pattern is what the status LED shows.
type Pattern string

// Patterns.
const (
	PatternOff   Pattern = "off"
	PatternBlink Pattern = "blink"
	PatternSolid Pattern = "solid"
)

// Indicator is a status LED.
type Indicator interface {
	Show(p Pattern) error
	Name() string
}
