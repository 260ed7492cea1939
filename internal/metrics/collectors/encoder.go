// Package collectors feeds metrics from stream events and relay counters.
package collectors

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/smazurov/uvcrtsp/internal/events"
	"github.com/smazurov/uvcrtsp/internal/metrics"
	"github.com/smazurov/uvcrtsp/internal/streaming"
)

// EncoderCollector turns encoder progress events into metrics.
type EncoderCollector struct {
	bus    *events.Bus
	logger *slog.Logger

	mu    sync.Mutex
	unsub []func()
}

// NewEncoderCollector creates a collector on bus.
func NewEncoderCollector(bus *events.Bus, logger *slog.Logger) *EncoderCollector {
	return &EncoderCollector{bus: bus, logger: logger}
}

// Start subscribes to encoder and stream events.
func (c *EncoderCollector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsub != nil {
		return
	}
	c.unsub = []func(){
		c.bus.Subscribe(c.handleProgress),
		c.bus.Subscribe(c.handleStatus),
	}
}

// Stop unsubscribes.
func (c *EncoderCollector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, unsub := range c.unsub {
		unsub()
	}
	c.unsub = nil
}

func (c *EncoderCollector) handleProgress(ev events.EncoderMetricsEvent) {
	if fps, err := strconv.ParseFloat(ev.FPS, 64); err == nil {
		metrics.SetEncoderFPS(ev.Port, fps)
	}
	if dropped, err := strconv.ParseFloat(ev.DroppedFrames, 64); err == nil {
		metrics.SetEncoderDroppedFrames(ev.Port, dropped)
	}
	if dup, err := strconv.ParseFloat(ev.DuplicateFrames, 64); err == nil {
		metrics.SetEncoderDuplicateFrames(ev.Port, dup)
	}
	speed := strings.TrimSpace(strings.TrimSuffix(ev.Speed, "x"))
	if v, err := strconv.ParseFloat(speed, 64); err == nil {
		metrics.SetEncoderSpeed(ev.Port, v)
	}
}

func (c *EncoderCollector) handleStatus(ev events.StreamStatusEvent) {
	switch streaming.EventType(ev.Status) {
	case streaming.EventStopped, streaming.EventEncoderExited:
		c.logger.Debug("Clearing encoder metrics", "port", ev.Port)
		metrics.DeleteEncoderMetrics(ev.Port)
	}
}
