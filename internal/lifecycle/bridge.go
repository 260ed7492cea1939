package lifecycle

import (
	"sync"

	"github.com/smazurov/uvcrtsp/internal/capture"
)

// SurfaceHost accepts render targets for captured frames.
type SurfaceHost interface {
	AddSurface(target capture.RenderTarget)
	RemoveSurface(target capture.RenderTarget)
}

// FrameBridge is the encoder's video source. It allocates nothing: Start
// hands the encoder's render target to the capture session so the frame
// pump draws into it.
type FrameBridge struct {
	host SurfaceHost

	mu     sync.Mutex
	target capture.RenderTarget
}

// NewFrameBridge returns a bridge feeding host's frames to the encoder.
func NewFrameBridge(host SurfaceHost) *FrameBridge {
	return &FrameBridge{host: host}
}

// Create always succeeds.
func (b *FrameBridge) Create(_, _, _, _ int) bool {
	return true
}

// Start attaches target to the capture session.
func (b *FrameBridge) Start(target capture.RenderTarget) {
	b.mu.Lock()
	prev := b.target
	b.target = target
	b.mu.Unlock()

	if prev != nil && prev != target {
		b.host.RemoveSurface(prev)
	}
	b.host.AddSurface(target)
}

// Stop detaches the target. The target itself belongs to the encoder and
// is never closed here.
func (b *FrameBridge) Stop() {
	b.mu.Lock()
	target := b.target
	b.mu.Unlock()

	if target != nil {
		b.host.RemoveSurface(target)
	}
}

// Release forgets the target.
func (b *FrameBridge) Release() {
	b.Stop()
	b.mu.Lock()
	b.target = nil
	b.mu.Unlock()
}

// IsRunning always reports false. The encoder attaches its surface only
// when the source says it is not running, so a true here would leave the
// stream without picture.
func (b *FrameBridge) IsRunning() bool {
	return false
}
