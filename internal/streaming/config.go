package streaming

import "github.com/smazurov/uvcrtsp/internal/capture"

// VideoConfig holds the video encoding parameters.
type VideoConfig struct {
	Width            int `json:"width" example:"1000"`
	Height           int `json:"height" example:"1000"`
	Bitrate          int `json:"bitrate" example:"6144000" doc:"Bits per second"`
	FPS              int `json:"fps" example:"25"`
	KeyframeInterval int `json:"keyframe_interval" example:"2" doc:"Seconds between keyframes"`
	Rotation         int `json:"rotation" example:"90" doc:"Clockwise degrees"`
}

// AudioConfig holds the audio encoding parameters.
type AudioConfig struct {
	SampleRate int  `json:"sample_rate" example:"48000"`
	Stereo     bool `json:"stereo" example:"true"`
	Bitrate    int  `json:"bitrate" example:"128000" doc:"Bits per second"`
}

// Config is the stream configuration. It is not modified once the stream
// has started.
type Config struct {
	Video VideoConfig `json:"video"`
	Audio AudioConfig `json:"audio"`
}

// DefaultConfig returns the deployment defaults.
func DefaultConfig() Config {
	return Config{
		Video: VideoConfig{
			Width:            1000,
			Height:           1000,
			Bitrate:          6000 * 1024,
			FPS:              25,
			KeyframeInterval: 2,
			Rotation:         90,
		},
		Audio: AudioConfig{
			SampleRate: 48000,
			Stereo:     true,
			Bitrate:    128000,
		},
	}
}

// AspectMode controls how the picture is fitted to the output size.
type AspectMode int

// Aspect modes.
const (
	// AspectAdjust scales to fit and pads the remainder.
	AspectAdjust AspectMode = iota
	// AspectFill stretches to the output size.
	AspectFill
)

// Orientation forces the output orientation.
type Orientation int

// Orientations.
const (
	OrientationAuto Orientation = iota
	OrientationLandscape
	OrientationPortrait
)

// TargetSettings describe what the encoder receives and how it lays the
// picture out.
type TargetSettings struct {
	InputFormat capture.Format
	AspectMode  AspectMode
	Orientation Orientation
}

// outputSize applies the forced orientation to the configured size.
func (t TargetSettings) outputSize(width, height int) (int, int) {
	switch t.Orientation {
	case OrientationLandscape:
		if height > width {
			return height, width
		}
	case OrientationPortrait:
		if width > height {
			return height, width
		}
	}
	return width, height
}
