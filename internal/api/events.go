package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/uvcrtsp/internal/events"
)

// registerSSERoutes registers the event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time device, lifecycle, stream and encoder events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"device-attached":       events.DeviceAttachedEvent{},
		"device-detached":       events.DeviceDetachedEvent{},
		"permission-result":     events.PermissionResultEvent{},
		"session-state-changed": events.SessionStateChangedEvent{},
		"stream-status":         events.StreamStatusEvent{},
		"encoder-metrics":       events.EncoderMetricsEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.DeviceAttachedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DeviceDetachedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PermissionResultEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SessionStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamStatusEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.EncoderMetricsEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// The first message tells the client where the lifecycle currently is.
		if s.options.Session != nil {
			snap := s.options.Session.Snapshot()
			state := snap.State.String()
			current := events.SessionStateChangedEvent{
				From:      state,
				To:        state,
				Port:      snap.Port,
				Error:     snap.LastError,
				Timestamp: snap.Since.Format(time.RFC3339),
			}
			if snap.Device != nil {
				current.DeviceName = snap.Device.Name
			}
			if err := send.Data(current); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
