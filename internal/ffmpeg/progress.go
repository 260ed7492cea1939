package ffmpeg

import "strings"

// Progress accumulates one -progress block.
type Progress struct {
	Frame   string
	FPS     string
	Bitrate string
	Speed   string
	Dropped string
	Dup     string
}

// ProgressParser turns -progress key=value lines into Progress snapshots.
type ProgressParser struct {
	current Progress
}

// Feed consumes one line. It returns the completed block when the line
// ends one.
func (p *ProgressParser) Feed(line string) (Progress, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return Progress{}, false
	}
	value = strings.TrimSpace(value)

	switch key {
	case "frame":
		p.current.Frame = value
	case "fps":
		p.current.FPS = value
	case "bitrate":
		p.current.Bitrate = value
	case "speed":
		p.current.Speed = value
	case "drop_frames":
		p.current.Dropped = value
	case "dup_frames":
		p.current.Dup = value
	case "progress":
		done := p.current
		p.current = Progress{}
		return done, true
	}
	return Progress{}, false
}
