package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smazurov/uvcrtsp/internal/api/models"
	"github.com/smazurov/uvcrtsp/internal/capture"
	"github.com/smazurov/uvcrtsp/internal/lifecycle"
	"github.com/smazurov/uvcrtsp/internal/logging"
	"github.com/smazurov/uvcrtsp/internal/streaming"
)

type staticSession struct {
	snap lifecycle.Snapshot
}

func (s staticSession) Snapshot() lifecycle.Snapshot { return s.snap }

var camera = capture.Device{
	Name:      "/dev/bus/usb/001/004",
	Path:      "/dev/video0",
	Label:     "HD USB Camera",
	VendorID:  "046d",
	ProductID: "0825",
}

func get(t *testing.T, s *Server, path string, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(auth)))
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	s := NewServer(Options{})
	rec := get(t, s, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[models.HealthData](t, rec); got.Status != "ok" {
		t.Errorf("health status = %q", got.Status)
	}
}

func TestSessionSnapshot(t *testing.T) {
	since := time.Date(2026, 1, 27, 10, 30, 0, 0, time.UTC)
	dev := camera
	s := NewServer(Options{Session: staticSession{lifecycle.Snapshot{
		State:     lifecycle.StateStreaming,
		Device:    &dev,
		SessionID: "abc",
		Port:      10558,
		URL:       "rtsp://localhost:10558/",
		Since:     since,
		Stream: &streaming.Status{
			Port:     10558,
			Prepared: true,
			Encoding: true,
			Clients:  2,
			Tracks:   []streaming.TrackInfo{{Kind: "video", Codec: "H264", Packets: 10, Bytes: 1000}},
		},
	}}})

	rec := get(t, s, "/api/session", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	got := decode[models.SessionData](t, rec)
	if got.State != "streaming" || got.Port != 10558 || got.URL != "rtsp://localhost:10558/" {
		t.Errorf("session = %+v", got)
	}
	if got.Device == nil || got.Device.Name != camera.Name {
		t.Errorf("device = %+v", got.Device)
	}
	if got.Since != "2026-01-27T10:30:00Z" {
		t.Errorf("since = %q", got.Since)
	}
	if got.Stream == nil || got.Stream.Clients != 2 || len(got.Stream.Tracks) != 1 || got.Stream.Tracks[0].Packets != 10 {
		t.Errorf("stream = %+v", got.Stream)
	}
}

func TestSessionWithoutController(t *testing.T) {
	s := NewServer(Options{})
	if rec := get(t, s, "/api/session", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestDevicesCarryDerivedPort(t *testing.T) {
	odd := capture.Device{Name: "/dev/bus/usb/001/cam", Path: "/dev/video2"}
	s := NewServer(Options{
		Host:    "camera.local",
		Devices: func() []capture.Device { return []capture.Device{camera, odd} },
	})

	rec := get(t, s, "/api/devices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[models.DevicesData](t, rec)
	if got.Count != 2 {
		t.Fatalf("count = %d, want 2", got.Count)
	}
	if got.Devices[0].Port != 10558 || got.Devices[0].URL != "rtsp://camera.local:10558/" {
		t.Errorf("device[0] = %+v", got.Devices[0])
	}
	if got.Devices[1].Port != 0 || got.Devices[1].URL != "" {
		t.Errorf("device with an invalid name got %+v", got.Devices[1])
	}
}

func TestLogsFilterByModule(t *testing.T) {
	buffer := logging.GetBuffer()
	for _, msg := range []string{"one", "two", "three"} {
		buffer.Write(logging.LogEntry{Timestamp: time.Now(), Level: "info", Module: "apitest", Message: msg})
	}
	buffer.Write(logging.LogEntry{Timestamp: time.Now(), Level: "info", Module: "other", Message: "skip"})

	s := NewServer(Options{})
	rec := get(t, s, "/api/logs?module=apitest&limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	got := decode[models.LogsData](t, rec)
	if got.Count != 2 || got.Entries[0].Message != "two" || got.Entries[1].Message != "three" {
		t.Errorf("entries = %+v", got.Entries)
	}
}

func TestBasicAuth(t *testing.T) {
	s := NewServer(Options{
		AuthUsername: "admin",
		AuthPassword: "secret",
		Session:      staticSession{lifecycle.Snapshot{State: lifecycle.StateDetached}},
	})

	tests := []struct {
		name string
		path string
		auth string
		want int
	}{
		{"health is open", "/api/health", "", http.StatusOK},
		{"missing credentials", "/api/session", "", http.StatusUnauthorized},
		{"wrong password", "/api/session", "admin:nope", http.StatusUnauthorized},
		{"valid credentials", "/api/session", "admin:secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := get(t, s, tt.path, tt.auth); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	rec := get(t, s, "/api/session?auth="+base64.StdEncoding.EncodeToString([]byte("admin:secret")), "")
	if rec.Code != http.StatusOK {
		t.Errorf("query credentials status = %d", rec.Code)
	}
}

func TestMetricsHandlerMounted(t *testing.T) {
	s := NewServer(Options{Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("uvcrtsp_up 1\n"))
	})})
	rec := get(t, s, "/metrics", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "uvcrtsp_up 1\n" {
		t.Errorf("metrics = %d %q", rec.Code, rec.Body.String())
	}
}
