package lifecycle

import (
	"github.com/smazurov/uvcrtsp/internal/capture"
	"github.com/smazurov/uvcrtsp/internal/streaming"
)

// Stream is the encode and publish pipeline for one session.
type Stream interface {
	Configure(video streaming.VideoSource, audio streaming.AudioSource, target streaming.TargetSettings)
	PrepareVideo(width, height, bitrate, fps, keyframeInterval, rotation int) bool
	PrepareAudio(sampleRate int, stereo bool, bitrate int) bool
	StartStream() error
	StopStream()
	Close() error
	Port() int
	URL(host string) string
	Status() streaming.Status
}

// StreamFactory opens the RTSP endpoint for dev on port. Stream events
// are passed to onEvent.
type StreamFactory func(port int, dev capture.Device, onEvent func(streaming.StreamEvent)) (Stream, error)

// AudioFactory returns the audio source paired with dev.
type AudioFactory func(dev capture.Device) streaming.AudioSource

var _ Stream = (*streaming.Session)(nil)
