package events

import (
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	AccountCreated       EventType = "ACCOUNT_CREATED"
	OrderExecuted        EventType = "ORDER_EXECUTED"
	OrderRejected        EventType = "ORDER_REJECTED"
	QuoteRefreshStart    EventType = "QUOTE_REFRESH_START"
	QuoteRefreshComplete EventType = "QUOTE_REFRESH_COMPLETE"
	WatchlistUpdated     EventType = "WATCHLIST_UPDATED"
	ErrorOccurred        EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Manager handles event emission and logging
type Manager struct {
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		log: log.With().Str("service", "events").Logger(),
	}
}

// Emit logs a structured event
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	m.log.Info().
		Str("event", string(event.Type)).
		Str("module", event.Module).
		Fields(event.Data).
		Msg("Event emitted")
}

// EmitError logs an error event
func (m *Manager) EmitError(module string, err error, data map[string]interface{}) {
	if data == nil {
		data = make(map[string]interface{})
	}
	data["error"] = err.Error()

	m.log.Error().
		Str("event", string(ErrorOccurred)).
		Str("module", module).
		Fields(data).
		Msg("Error event emitted")
}
