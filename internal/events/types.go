// Package events provides in-process event publication for ledger changes.
package events

// EventType represents different event types
type EventType string

const (
	TransactionApplied  EventType = "TRANSACTION_APPLIED"
	TransactionReversed EventType = "TRANSACTION_REVERSED"
	UserRegistered      EventType = "USER_REGISTERED"
	WatchlistChanged    EventType = "WATCHLIST_CHANGED"
	BackupCompleted     EventType = "BACKUP_COMPLETED"
	ErrorOccurred       EventType = "ERROR_OCCURRED"
)
