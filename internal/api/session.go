package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/uvcrtsp/internal/api/models"
	"github.com/smazurov/uvcrtsp/internal/capture"
	"github.com/smazurov/uvcrtsp/internal/lifecycle"
	"github.com/smazurov/uvcrtsp/internal/streaming"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/api/session",
		Summary:     "Session",
		Description: "Current lifecycle state, owned device and RTSP endpoint",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(_ context.Context, _ *struct{}) (*models.SessionResponse, error) {
		if s.options.Session == nil {
			return nil, huma.Error503ServiceUnavailable("lifecycle controller not running")
		}
		return &models.SessionResponse{Body: toSessionData(s.options.Session.Snapshot())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "Devices",
		Description: "Attached USB capture devices with the RTSP port each would stream on",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.DevicesResponse, error) {
		var list []capture.Device
		if s.options.Devices != nil {
			list = s.options.Devices()
		}

		data := models.DevicesData{Devices: make([]models.DeviceInfo, 0, len(list))}
		for _, dev := range list {
			info := toDeviceInfo(dev)
			if port, err := lifecycle.DerivePortFrom(s.options.BasePort, dev.Name); err == nil {
				info.Port = port
				info.URL = streaming.StreamURL(s.options.Host, port)
			}
			data.Devices = append(data.Devices, info)
		}
		data.Count = len(data.Devices)
		return &models.DevicesResponse{Body: data}, nil
	})
}

func toDeviceInfo(dev capture.Device) models.DeviceInfo {
	return models.DeviceInfo{
		Name:      dev.Name,
		Path:      dev.Path,
		Label:     dev.Label,
		VendorID:  dev.VendorID,
		ProductID: dev.ProductID,
	}
}

func toSessionData(snap lifecycle.Snapshot) models.SessionData {
	data := models.SessionData{
		State:     snap.State.String(),
		SessionID: snap.SessionID,
		Port:      snap.Port,
		URL:       snap.URL,
		LastError: snap.LastError,
	}
	if !snap.Since.IsZero() {
		data.Since = snap.Since.Format(time.RFC3339)
	}
	if snap.Device != nil {
		info := toDeviceInfo(*snap.Device)
		data.Device = &info
	}
	if st := snap.Stream; st != nil {
		stream := &models.StreamData{
			Prepared:  st.Prepared,
			Encoding:  st.Encoding,
			Publisher: st.Publisher,
			Clients:   st.Clients,
			Frames:    st.Frames,
			Dropped:   st.Dropped,
		}
		for _, tr := range st.Tracks {
			stream.Tracks = append(stream.Tracks, models.TrackData{
				Kind:    tr.Kind,
				Codec:   tr.Codec,
				Packets: tr.Packets,
				Bytes:   tr.Bytes,
			})
		}
		data.Stream = stream
	}
	return data
}
