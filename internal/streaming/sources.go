package streaming

import "github.com/smazurov/uvcrtsp/internal/capture"

// VideoSource feeds pictures to the encoder's render target.
type VideoSource interface {
	// Create prepares the source. It returns false when the source cannot
	// produce the requested stream.
	Create(width, height, fps, rotation int) bool
	// Start begins delivering frames into target.
	Start(target capture.RenderTarget)
	Stop()
	Release()
	// IsRunning reports whether frames are already flowing. The session
	// only calls Start when it returns false.
	IsRunning() bool
}

// AudioSource provides the encoder's audio input.
type AudioSource interface {
	Create(sampleRate int, stereo bool) bool
	// InputDevice names the ALSA device the encoder reads.
	InputDevice() string
	Start()
	Stop()
	Release()
	IsRunning() bool
}
