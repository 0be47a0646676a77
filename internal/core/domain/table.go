package domain

type SessionStatus string

// SessionClosingRequested is the only status ever persisted for a table
// session. A table with no session record is simply open; a record that
// disappears after CLOSING_REQUESTED means staff confirmed payment.
const SessionClosingRequested SessionStatus = "CLOSING_REQUESTED"

type TableSession struct {
	TableID       int           `json:"table_id"`
	Status        SessionStatus `json:"status"`
	PaymentMethod string        `json:"payment_method"`
}
