package streaming

import (
	"log/slog"
	"sync"

	"github.com/AlexxIT/go2rtc/pkg/core"
	"github.com/AlexxIT/go2rtc/pkg/rtsp"
	"github.com/pion/rtp"
)

// TrackInfo describes one published track.
type TrackInfo struct {
	Kind    string `json:"kind" example:"video"`
	Codec   string `json:"codec" example:"H264"`
	Packets uint64 `json:"packets"`
	Bytes   uint64 `json:"bytes"`
}

// Relay forwards the single producer's tracks to RTSP consumers.
type Relay struct {
	logger *slog.Logger

	mu        sync.RWMutex
	producer  *rtsp.Conn
	consumers map[core.Consumer]struct{}
	taps      []*tap
}

// tap counts packets on one producer track.
type tap struct {
	kind    string
	codec   string
	sender  *core.Sender
	mu      sync.Mutex
	packets uint64
	bytes   uint64
}

// NewRelay creates an empty relay.
func NewRelay(logger *slog.Logger) *Relay {
	return &Relay{
		logger:    logger,
		consumers: make(map[core.Consumer]struct{}),
	}
}

// SetProducer installs conn as the producer, replacing any previous one.
func (r *Relay) SetProducer(conn *rtsp.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.producer != nil && r.producer != conn {
		r.logger.Info("Replacing existing producer")
		_ = r.producer.Stop()
	}
	r.closeTapsLocked()
	r.producer = conn
}

// StartTaps attaches packet counters to the producer's tracks. Tracks are
// known once the producer has finished RECORD setup.
func (r *Relay) StartTaps(conn *rtsp.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.producer != conn || len(r.taps) > 0 {
		return
	}
	for _, receiver := range conn.Receivers {
		t := &tap{
			kind:  core.GetKind(receiver.Codec.Name),
			codec: receiver.Codec.Name,
		}
		media := &core.Media{
			Kind:      t.kind,
			Direction: core.DirectionSendonly,
			Codecs:    []*core.Codec{receiver.Codec},
		}
		t.sender = core.NewSender(media, receiver.Codec)
		t.sender.Handler = func(packet *rtp.Packet) {
			t.mu.Lock()
			t.packets++
			t.bytes += uint64(len(packet.Payload))
			t.mu.Unlock()
		}
		t.sender.HandleRTP(receiver)
		r.taps = append(r.taps, t)
	}
}

// RemoveProducer clears conn if it is the current producer.
func (r *Relay) RemoveProducer(conn *rtsp.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.producer != conn {
		return false
	}
	r.closeTapsLocked()
	_ = conn.Stop()
	r.producer = nil
	return true
}

// HasProducer reports whether an encoder is publishing.
func (r *Relay) HasProducer() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.producer != nil
}

// WireConsumer adds every producer track to cons.
func (r *Relay) WireConsumer(cons core.Consumer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.producer == nil {
		return ErrNoProducer
	}
	for _, receiver := range r.producer.Receivers {
		media := &core.Media{
			Kind:      core.GetKind(receiver.Codec.Name),
			Direction: core.DirectionRecvonly,
			Codecs:    []*core.Codec{receiver.Codec},
		}
		if err := cons.AddTrack(media, receiver.Codec, receiver); err != nil {
			r.logger.Warn("Failed to add track", "codec", receiver.Codec.Name, "error", err)
		}
	}
	r.consumers[cons] = struct{}{}
	return nil
}

// RemoveConsumer forgets cons.
func (r *Relay) RemoveConsumer(cons core.Consumer) {
	r.mu.Lock()
	delete(r.consumers, cons)
	r.mu.Unlock()
}

// Consumers returns the number of connected readers.
func (r *Relay) Consumers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.consumers)
}

// Tracks returns per-track counters.
func (r *Relay) Tracks() []TrackInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tracks := make([]TrackInfo, 0, len(r.taps))
	for _, t := range r.taps {
		t.mu.Lock()
		tracks = append(tracks, TrackInfo{Kind: t.kind, Codec: t.codec, Packets: t.packets, Bytes: t.bytes})
		t.mu.Unlock()
	}
	return tracks
}

// Stop disconnects the producer and every consumer.
func (r *Relay) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closeTapsLocked()
	if r.producer != nil {
		_ = r.producer.Stop()
		r.producer = nil
	}
	for cons := range r.consumers {
		_ = cons.Stop()
		delete(r.consumers, cons)
	}
}

func (r *Relay) closeTapsLocked() {
	for _, t := range r.taps {
		t.sender.Close()
	}
	r.taps = nil
}
