package events

import (
	"time"

	"github.com/rs/zerolog"
)

// Manager stamps, publishes and logs events
type Manager struct {
	bus *Bus
	log zerolog.Logger
	now func() time.Time
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("service", "events").Logger(),
		now: time.Now,
	}
}

// Bus returns the underlying bus for subscribers
func (m *Manager) Bus() *Bus {
	return m.bus
}

// Emit publishes typed event data from module
func (m *Manager) Emit(module string, data EventData) {
	if m == nil || data == nil {
		return
	}

	event := Event{
		Timestamp: m.now().UTC(),
		Data:      data,
		Type:      data.EventType(),
		Module:    module,
	}
	delivered := m.bus.Publish(event)

	m.log.Debug().
		Str("event_type", string(event.Type)).
		Str("module", module).
		Int("delivered", delivered).
		Msg("Event emitted")
}

// EmitError publishes an ErrorOccurred event and logs the error
func (m *Manager) EmitError(module string, err error, context string) {
	if m == nil || err == nil {
		return
	}
	m.log.Error().Err(err).Str("module", module).Str("context", context).Msg("Error event")
	m.Emit(module, &ErrorEventData{Error: err.Error(), Context: context})
}
