// Package models holds the request and response bodies of the HTTP API.
package models

// HealthData is the health check body.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Health status"`
	Message string `json:"message" example:"API is healthy" doc:"Health message"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Body HealthData
}

// VersionData describes the running build.
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"a1b2c3d" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

// VersionResponse is the version response.
type VersionResponse struct {
	Body VersionData
}

// DeviceInfo is a USB capture device.
type DeviceInfo struct {
	Name      string `json:"name" example:"/dev/bus/usb/001/004" doc:"USB device node"`
	Path      string `json:"path" example:"/dev/video0" doc:"V4L2 capture node"`
	Label     string `json:"label" example:"HD USB Camera" doc:"Card name reported by the driver"`
	VendorID  string `json:"vendor_id" example:"046d" doc:"USB vendor id"`
	ProductID string `json:"product_id" example:"0825" doc:"USB product id"`
	Port      int    `json:"port,omitempty" example:"10558" doc:"RTSP port the device streams on"`
	URL       string `json:"url,omitempty" example:"rtsp://camera.local:10558/" doc:"RTSP URL the device streams on"`
}

// DevicesData lists attached capture devices.
type DevicesData struct {
	Devices []DeviceInfo `json:"devices" doc:"Attached capture devices"`
	Count   int          `json:"count" example:"1" doc:"Number of devices"`
}

// DevicesResponse is the device list response.
type DevicesResponse struct {
	Body DevicesData
}

// TrackData is one relayed RTSP track.
type TrackData struct {
	Kind    string `json:"kind" example:"video" doc:"Media kind"`
	Codec   string `json:"codec" example:"H264" doc:"Codec name"`
	Packets uint64 `json:"packets" example:"1200" doc:"RTP packets received from the encoder"`
	Bytes   uint64 `json:"bytes" example:"1048576" doc:"RTP payload bytes received from the encoder"`
}

// StreamData is the RTSP endpoint of the active session.
type StreamData struct {
	Prepared  bool        `json:"prepared" doc:"Both tracks were prepared"`
	Encoding  bool        `json:"encoding" doc:"The encoder process is running"`
	Publisher bool        `json:"publisher" doc:"The encoder is publishing to the endpoint"`
	Clients   int         `json:"clients" example:"1" doc:"Connected RTSP readers"`
	Frames    uint64      `json:"frames" example:"750" doc:"Frames handed to the encoder"`
	Dropped   uint64      `json:"dropped" example:"0" doc:"Frames dropped before the encoder"`
	Tracks    []TrackData `json:"tracks,omitempty" doc:"Relayed tracks"`
}

// SessionData is the lifecycle snapshot.
type SessionData struct {
	State     string      `json:"state" example:"streaming" doc:"Lifecycle state" enum:"detached,attached,permission_requested,permission_granted,opening,open,streaming,closed,error"`
	Device    *DeviceInfo `json:"device,omitempty" doc:"Device owned by the session"`
	SessionID string      `json:"session_id,omitempty" example:"9b2f3c9e-7d0a-4a51-9a0e-2d1c5c7b8e11" doc:"Capture session id"`
	Port      int         `json:"port,omitempty" example:"10558" doc:"RTSP port"`
	URL       string      `json:"url,omitempty" example:"rtsp://camera.local:10558/" doc:"RTSP URL"`
	Since     string      `json:"since" example:"2026-01-27T10:30:00Z" doc:"Time of the last transition"`
	LastError string      `json:"last_error,omitempty" example:"PREPARE_FAILED: video track rejected" doc:"Last failure"`
	Stream    *StreamData `json:"stream,omitempty" doc:"RTSP endpoint status"`
}

// SessionResponse is the session response.
type SessionResponse struct {
	Body SessionData
}

// LogsInput selects how many log entries to return.
type LogsInput struct {
	Limit  int    `query:"limit" default:"100" minimum:"1" maximum:"1000" doc:"Number of most recent entries"`
	Module string `query:"module" example:"lifecycle" doc:"Only entries from this module"`
}

// LogEntry is one buffered log record.
type LogEntry struct {
	Timestamp  string         `json:"timestamp" example:"2026-01-27T10:30:00.123Z" doc:"Record time"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"lifecycle" doc:"Logger module"`
	Message    string         `json:"message" example:"State changed" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

// LogsData is a page of buffered log records, oldest first.
type LogsData struct {
	Entries []LogEntry `json:"entries" doc:"Log entries"`
	Count   int        `json:"count" example:"100" doc:"Number of entries"`
}

// LogsResponse is the logs response.
type LogsResponse struct {
	Body LogsData
}
