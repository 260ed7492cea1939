package streaming

// EventType names a stream event.
type EventType string

// Stream event types.
const (
	EventListening            EventType = "listening"
	EventStarted              EventType = "started"
	EventStopped              EventType = "stopped"
	EventProducerConnected    EventType = "producer_connected"
	EventProducerDisconnected EventType = "producer_disconnected"
	EventConsumerConnected    EventType = "consumer_connected"
	EventConsumerDisconnected EventType = "consumer_disconnected"
	EventEncoderExited        EventType = "encoder_exited"
)

// StreamEvent reports a change on one stream.
type StreamEvent struct {
	Type     EventType
	Port     int
	Remote   string
	ExitCode int
}
