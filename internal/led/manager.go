package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/uvcrtsp/internal/events"
)

// Manager shows the lifecycle state on the status LED: solid while
// streaming, blinking while a device is being brought up, off when no
// device is attached.
type Manager struct {
	indicator   Indicator
	eventBus    *events.Bus
	unsubscribe func()
	logger      *slog.Logger

	mu      sync.Mutex
	current Pattern
}

// NewManager creates a manager for indicator.
func NewManager(indicator Indicator, eventBus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		indicator: indicator,
		eventBus:  eventBus,
		logger:    logger,
	}
}

// Start turns the LED off and follows state changes.
func (m *Manager) Start() {
	m.show(PatternOff)
	m.unsubscribe = m.eventBus.Subscribe(m.handleEvent)
	m.logger.Info("LED manager started", "led", m.indicator.Name())
}

// Stop unsubscribes and turns the LED off.
func (m *Manager) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.show(PatternOff)
	m.logger.Info("LED manager stopped")
}

func (m *Manager) handleEvent(ev events.SessionStateChangedEvent) {
	if ev.From == ev.To {
		return
	}
	m.show(PatternFor(ev.To))
}

// PatternFor returns the pattern shown for a lifecycle state.
func PatternFor(state string) Pattern {
	switch state {
	case "streaming":
		return PatternSolid
	case "detached", "closed":
		return PatternOff
	default:
		return PatternBlink
	}
}

func (m *Manager) show(p Pattern) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == p {
		return
	}
	if err := m.indicator.Show(p); err != nil {
		m.logger.Warn("Failed to set status LED", "pattern", p, "error", err)
		return
	}
	m.current = p
}
