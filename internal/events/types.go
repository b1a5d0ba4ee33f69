// Package events provides in-process event publication for ledger and market activity.
package events

import "time"

// EventType identifies an event
type EventType string

const (
	HoldingOpened      EventType = "HOLDING_OPENED"
	HoldingClosed      EventType = "HOLDING_CLOSED"
	HoldingDeleted     EventType = "HOLDING_DELETED"
	TradeDeleted       EventType = "TRADE_DELETED"
	AllocationComputed EventType = "ALLOCATION_COMPUTED"
	PricesSynced       EventType = "PRICES_SYNCED"
	BackupCompleted    EventType = "BACKUP_COMPLETED"
	ErrorOccurred      EventType = "ERROR_OCCURRED"
)

// Event is a published event with its typed payload
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data"`
	Type      EventType `json:"type"`
	Module    string    `json:"module"`
}
