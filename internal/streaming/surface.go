package streaming

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"syscall"

	"github.com/smazurov/uvcrtsp/internal/capture"
	"github.com/smazurov/uvcrtsp/internal/process"
)

// Surface is the encoder's render target: frames drawn into it are written
// to the encoder's stdin. It expects a single drawing goroutine.
type Surface struct {
	w      io.Writer
	format capture.Format

	closed  atomic.Bool
	frames  atomic.Uint64
	dropped atomic.Uint64
}

func newSurface(w io.Writer, format capture.Format) *Surface {
	return &Surface{w: w, format: format}
}

// DrawFrame writes one frame. Raw frames whose size does not match the
// negotiated format are dropped.
func (s *Surface) DrawFrame(frame capture.Frame) error {
	if s.closed.Load() {
		return ErrStreamClosed
	}
	if !s.format.Compressed() {
		if want := s.format.Width * s.format.Height * 2; len(frame.Data) != want {
			s.dropped.Add(1)
			return nil
		}
	}
	if _, err := s.w.Write(frame.Data); err != nil {
		if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, syscall.EPIPE) || errors.Is(err, process.ErrNotRunning) {
			return ErrStreamClosed
		}
		return fmt.Errorf("write frame: %w", err)
	}
	s.frames.Add(1)
	return nil
}

// Frames returns the number of frames written.
func (s *Surface) Frames() uint64 {
	return s.frames.Load()
}

// Dropped returns the number of frames rejected.
func (s *Surface) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Surface) close() {
	s.closed.Store(true)
}
