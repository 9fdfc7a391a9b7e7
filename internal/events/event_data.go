package events

// EventData is implemented by every typed event payload
type EventData interface {
	EventType() EventType
}

// TransactionAppliedData describes a committed ledger Apply
type TransactionAppliedData struct {
	UserID        int64  `json:"user_id"`
	TransactionID int64  `json:"transaction_id"`
	Kind          string `json:"kind"`
	Symbol        string `json:"symbol,omitempty"`
	CashBalance   string `json:"cash_balance"`
}

// EventType returns the event type for TransactionAppliedData
func (d *TransactionAppliedData) EventType() EventType {
	return TransactionApplied
}

// TransactionReversedData describes a committed ledger Reverse
type TransactionReversedData struct {
	UserID        int64  `json:"user_id"`
	TransactionID int64  `json:"transaction_id"`
	Kind          string `json:"kind"`
	Symbol        string `json:"symbol,omitempty"`
	CashBalance   string `json:"cash_balance"`
}

// EventType returns the event type for TransactionReversedData
func (d *TransactionReversedData) EventType() EventType {
	return TransactionReversed
}

// UserRegisteredData contains data for UserRegistered events
type UserRegisteredData struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// EventType returns the event type for UserRegisteredData
func (d *UserRegisteredData) EventType() EventType {
	return UserRegistered
}

// WatchlistChangedData contains data for WatchlistChanged events
type WatchlistChangedData struct {
	UserID int64  `json:"user_id"`
	Symbol string `json:"symbol"`
	Action string `json:"action"` // "added" or "removed"
}

// EventType returns the event type for WatchlistChangedData
func (d *WatchlistChangedData) EventType() EventType {
	return WatchlistChanged
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Key       string `json:"key"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
