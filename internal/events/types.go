package events

// Event type constants for kelindar/event.
const (
	TypeDeviceAttached uint32 = iota + 1
	TypeDeviceDetached
	TypePermissionResult
	TypeSessionStateChanged
	TypeStreamStatus
	TypeEncoderMetrics
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// DeviceAttachedEvent is published when a capture device appears.
type DeviceAttachedEvent struct {
	DeviceName string `json:"device_name" example:"/dev/bus/usb/001/004" doc:"USB device node"`
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"V4L2 capture node"`
	Label      string `json:"label" example:"HD USB Camera" doc:"Card name reported by the driver"`
	VendorID   string `json:"vendor_id" example:"046d" doc:"USB vendor id"`
	ProductID  string `json:"product_id" example:"0825" doc:"USB product id"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceAttachedEvent.
func (e DeviceAttachedEvent) Type() uint32 { return TypeDeviceAttached }

// DeviceDetachedEvent is published when a capture device goes away.
type DeviceDetachedEvent struct {
	DeviceName string `json:"device_name" example:"/dev/bus/usb/001/004" doc:"USB device node"`
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"V4L2 capture node"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceDetachedEvent.
func (e DeviceDetachedEvent) Type() uint32 { return TypeDeviceDetached }

// PermissionResultEvent reports the outcome of an access request.
type PermissionResultEvent struct {
	DeviceName string `json:"device_name" example:"/dev/bus/usb/001/004" doc:"USB device node"`
	Outcome    string `json:"outcome" example:"granted" doc:"granted, denied or pending"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PermissionResultEvent.
func (e PermissionResultEvent) Type() uint32 { return TypePermissionResult }

// SessionStateChangedEvent is published on every lifecycle transition.
// Used for LED control, metrics and the SSE feed.
type SessionStateChangedEvent struct {
	DeviceName string `json:"device_name" example:"/dev/bus/usb/001/004" doc:"USB device node"`
	From       string `json:"from" example:"open" doc:"Previous lifecycle state"`
	To         string `json:"to" example:"streaming" doc:"New lifecycle state"`
	Port       int    `json:"port,omitempty" example:"10558" doc:"RTSP port once derived"`
	Code       string `json:"code,omitempty" example:"DEVICE_BUSY" doc:"Error code for failed transitions"`
	Error      string `json:"error,omitempty" doc:"Error message for failed transitions"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStateChangedEvent.
func (e SessionStateChangedEvent) Type() uint32 { return TypeSessionStateChanged }

// IsStreaming reports whether the session reached the streaming state.
func (e SessionStateChangedEvent) IsStreaming() bool {
	return e.To == "streaming"
}

// StreamStatusEvent reports RTSP endpoint activity.
type StreamStatusEvent struct {
	Port      int    `json:"port" example:"10558" doc:"RTSP port"`
	Status    string `json:"status" example:"producer_connected" doc:"listening, started, stopped, producer_connected, producer_disconnected, consumer_connected, consumer_disconnected, encoder_exited"`
	Clients   int    `json:"clients" example:"1" doc:"Connected RTSP readers"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStatusEvent.
func (e StreamStatusEvent) Type() uint32 { return TypeStreamStatus }

// EncoderMetricsEvent carries encoder progress parsed from FFmpeg output.
type EncoderMetricsEvent struct {
	Port            int    `json:"port"`
	FPS             string `json:"fps"`
	Bitrate         string `json:"bitrate"`
	Speed           string `json:"speed"`
	DroppedFrames   string `json:"dropped_frames"`
	DuplicateFrames string `json:"duplicate_frames"`
}

// Type returns the event type identifier for EncoderMetricsEvent.
func (e EncoderMetricsEvent) Type() uint32 { return TypeEncoderMetrics }
