package ffmpeg

// Params describes one encoder run: raw or MJPEG frames on stdin, optional
// ALSA audio, H.264/AAC published over RTSP.
type Params struct {
	// Input: frames written to stdin by the capture pump.
	InputFormat string // mjpeg or rawvideo
	PixelFormat string // rawvideo only: yuyv422
	InputWidth  int
	InputHeight int
	FPS         int

	// Video output
	Width     int
	Height    int
	Rotation  int  // 0, 90, 180 or 270 degrees clockwise
	FitAdjust bool // scale to fit and pad instead of stretching
	Encoder   string
	Preset    string
	Bitrate   int // bits per second
	GOP       int // frames between keyframes (0 = encoder default)

	// Audio (omitted when AudioDevice is empty)
	AudioDevice     string // hw:1,0
	AudioSampleRate int
	AudioChannels   int
	AudioBitrate    int

	// Output
	OutputURL string
	Progress  bool // emit -progress key=value blocks on stdout

	Options []OptionType
}
