package streaming

import "errors"

// Errors returned by Session and Relay.
var (
	ErrNotPrepared  = errors.New("video and audio must both be prepared")
	ErrStreamClosed = errors.New("stream closed")
	ErrNoProducer   = errors.New("no producer connected")
)
