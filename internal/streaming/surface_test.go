package streaming

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/smazurov/uvcrtsp/internal/capture"
	"github.com/smazurov/uvcrtsp/internal/process"
)

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

func TestSurfaceRawFrameSize(t *testing.T) {
	var buf bytes.Buffer
	s := newSurface(&buf, capture.Format{FourCC: capture.FourCCYUYV, Width: 4, Height: 2})

	if err := s.DrawFrame(capture.Frame{Data: make([]byte, 10)}); err != nil {
		t.Fatalf("DrawFrame() short frame error = %v", err)
	}
	if err := s.DrawFrame(capture.Frame{Data: make([]byte, 16)}); err != nil {
		t.Fatalf("DrawFrame() error = %v", err)
	}
	if s.Frames() != 1 || s.Dropped() != 1 {
		t.Errorf("frames=%d dropped=%d, want 1 and 1", s.Frames(), s.Dropped())
	}
	if buf.Len() != 16 {
		t.Errorf("wrote %d bytes, want 16", buf.Len())
	}
}

func TestSurfaceWriteErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		closed bool
	}{
		{"closed pipe", io.ErrClosedPipe, true},
		{"process gone", process.ErrNotRunning, true},
		{"other", errors.New("disk on fire"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSurface(failingWriter{tt.err}, capture.Format{FourCC: capture.FourCCMJPEG})
			err := s.DrawFrame(capture.Frame{Data: []byte{1}})
			if err == nil {
				t.Fatal("DrawFrame() error = nil")
			}
			if got := errors.Is(err, ErrStreamClosed); got != tt.closed {
				t.Errorf("errors.Is(ErrStreamClosed) = %v, want %v", got, tt.closed)
			}
		})
	}
}

func TestSurfaceClosed(t *testing.T) {
	var buf bytes.Buffer
	s := newSurface(&buf, capture.Format{FourCC: capture.FourCCMJPEG})
	s.close()
	if err := s.DrawFrame(capture.Frame{Data: []byte{1}}); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("DrawFrame() error = %v, want ErrStreamClosed", err)
	}
	if buf.Len() != 0 {
		t.Error("closed surface wrote data")
	}
}
