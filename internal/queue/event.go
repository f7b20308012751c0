// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns them into the sales trail.
package queue

// SaleRecordedEvent is published when a sale is recorded against a session.
// It carries enough for downstream consumers (receipt printing, analytics,
// the nightly export) to act without querying the primary database.
type SaleRecordedEvent struct {
    SaleID       uint64 `json:"sale_id"`
    RegisterID   string `json:"register_id"`
    SessionID    uint64 `json:"session_id"`
    ShiftID      uint64 `json:"shift_id"`
    EmployeeID   string `json:"employee_id"`
    EmployeeName string `json:"employee_name"`
    PaymentType  string `json:"payment_type"`
    TotalCents   int64  `json:"total_cents"`
    IntentID     string `json:"intent_id,omitempty"`
    RecordedAt   string `json:"recorded_at"`
}
