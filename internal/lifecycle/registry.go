package lifecycle

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smazurov/uvcrtsp/internal/capture"
	"github.com/smazurov/uvcrtsp/internal/streaming"
)

// Session is one open capture device and its stream.
type Session struct {
	ID        string
	Device    capture.Device
	Port      int
	Config    streaming.Config
	Stream    Stream
	CreatedAt time.Time
}

// Registry holds at most one active Session.
type Registry struct {
	mu     sync.Mutex
	active *Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Acquire creates the session for dev. It fails with CodeDeviceBusy while
// another session is active.
func (r *Registry) Acquire(dev capture.Device) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil, NewError(CodeDeviceBusy, r.active.Device.Name+" is already open", nil)
	}
	r.active = &Session{
		ID:        uuid.NewString(),
		Device:    dev,
		CreatedAt: time.Now(),
	}
	return r.active, nil
}

// Release frees the slot if s holds it.
func (r *Registry) Release(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s == nil || r.active != s {
		return false
	}
	r.active = nil
	return true
}

// Active returns the active session or nil.
func (r *Registry) Active() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}
