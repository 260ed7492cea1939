package collectors

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smazurov/uvcrtsp/internal/streaming"
)

// StatusSource returns the active stream's status, or nil.
type StatusSource func() *streaming.Status

// RelayCollector exports RTSP relay counters of the active stream.
type RelayCollector struct {
	source  StatusSource
	packets *prometheus.Desc
	bytes   *prometheus.Desc
	clients *prometheus.Desc
	frames  *prometheus.Desc
	dropped *prometheus.Desc
}

// NewRelayCollector creates a collector reading from source.
func NewRelayCollector(source StatusSource) *RelayCollector {
	return &RelayCollector{
		source: source,
		packets: prometheus.NewDesc("uvcrtsp_rtsp_packets_total",
			"RTP packets published by the encoder", []string{"port", "kind", "codec"}, nil),
		bytes: prometheus.NewDesc("uvcrtsp_rtsp_payload_bytes_total",
			"RTP payload bytes published by the encoder", []string{"port", "kind", "codec"}, nil),
		clients: prometheus.NewDesc("uvcrtsp_rtsp_clients",
			"Connected RTSP readers", []string{"port"}, nil),
		frames: prometheus.NewDesc("uvcrtsp_capture_frames_total",
			"Captured frames written to the encoder", []string{"port"}, nil),
		dropped: prometheus.NewDesc("uvcrtsp_capture_dropped_frames_total",
			"Captured frames dropped before the encoder", []string{"port"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *RelayCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.packets
	ch <- c.bytes
	ch <- c.clients
	ch <- c.frames
	ch <- c.dropped
}

// Collect implements prometheus.Collector.
func (c *RelayCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.source()
	if st == nil {
		return
	}
	port := strconv.Itoa(st.Port)
	for _, t := range st.Tracks {
		ch <- prometheus.MustNewConstMetric(c.packets, prometheus.CounterValue, float64(t.Packets), port, t.Kind, t.Codec)
		ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(t.Bytes), port, t.Kind, t.Codec)
	}
	ch <- prometheus.MustNewConstMetric(c.clients, prometheus.GaugeValue, float64(st.Clients), port)
	ch <- prometheus.MustNewConstMetric(c.frames, prometheus.CounterValue, float64(st.Frames), port)
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(st.Dropped), port)
}
