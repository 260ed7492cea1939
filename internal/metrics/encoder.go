package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	encoderFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "fps",
		Help:      "Current encoding FPS",
	}, []string{"port"})

	encoderDroppedFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "dropped_frames_total",
		Help:      "Total dropped frames",
	}, []string{"port"})

	encoderDuplicateFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "duplicate_frames_total",
		Help:      "Total duplicate frames",
	}, []string{"port"})

	encoderSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "processing_speed",
		Help:      "Encoding speed multiplier",
	}, []string{"port"})

	encoderCache   = make(map[int]*EncoderMetrics)
	encoderCacheMu sync.RWMutex
)

// EncoderMetrics holds the latest encoder values for a stream.
type EncoderMetrics struct {
	FPS             float64 `json:"fps"`
	DroppedFrames   float64 `json:"dropped_frames"`
	DuplicateFrames float64 `json:"duplicate_frames"`
	Speed           float64 `json:"speed"`
}

// SetEncoderFPS sets the current FPS for the stream on port.
func SetEncoderFPS(port int, fps float64) {
	encoderFPS.WithLabelValues(portLabel(port)).Set(fps)
	updateCache(port, func(m *EncoderMetrics) { m.FPS = fps })
}

// SetEncoderDroppedFrames sets the dropped frame count.
func SetEncoderDroppedFrames(port int, count float64) {
	encoderDroppedFrames.WithLabelValues(portLabel(port)).Set(count)
	updateCache(port, func(m *EncoderMetrics) { m.DroppedFrames = count })
}

// SetEncoderDuplicateFrames sets the duplicate frame count.
func SetEncoderDuplicateFrames(port int, count float64) {
	encoderDuplicateFrames.WithLabelValues(portLabel(port)).Set(count)
	updateCache(port, func(m *EncoderMetrics) { m.DuplicateFrames = count })
}

// SetEncoderSpeed sets the processing speed.
func SetEncoderSpeed(port int, speed float64) {
	encoderSpeed.WithLabelValues(portLabel(port)).Set(speed)
	updateCache(port, func(m *EncoderMetrics) { m.Speed = speed })
}

// DeleteEncoderMetrics removes all encoder metrics for port.
func DeleteEncoderMetrics(port int) {
	label := portLabel(port)
	encoderFPS.DeleteLabelValues(label)
	encoderDroppedFrames.DeleteLabelValues(label)
	encoderDuplicateFrames.DeleteLabelValues(label)
	encoderSpeed.DeleteLabelValues(label)

	encoderCacheMu.Lock()
	delete(encoderCache, port)
	encoderCacheMu.Unlock()
}

// GetEncoderMetrics returns a copy of the latest values for port, or nil.
func GetEncoderMetrics(port int) *EncoderMetrics {
	encoderCacheMu.RLock()
	defer encoderCacheMu.RUnlock()
	if m, ok := encoderCache[port]; ok {
		dup := *m
		return &dup
	}
	return nil
}

func updateCache(port int, update func(*EncoderMetrics)) {
	encoderCacheMu.Lock()
	defer encoderCacheMu.Unlock()
	m, ok := encoderCache[port]
	if !ok {
		m = &EncoderMetrics{}
		encoderCache[port] = m
	}
	update(m)
}
