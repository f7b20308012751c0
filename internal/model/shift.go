package model

import "time"

// Shift statuses. A shift is the venue's business-day operating window;
// sessions and sales are always scoped to exactly one shift.
const (
    ShiftOpen   = "OPEN"
    ShiftClosed = "CLOSED"
)

// Shift is one business-day operating window. Several register sessions can
// share a shift, including several sessions on the same register (a cashier
// handover closes one session and opens another under the same shift).
type Shift struct {
    ID           uint64     // shifts.id
    BusinessDate string     // shifts.business_date (YYYY-MM-DD)
    Status       string     // shifts.status
    OpenedBy     string     // shifts.opened_by
    OpenedAt     time.Time  // shifts.opened_at
    ClosedAt     *time.Time // shifts.closed_at (nullable)
}

// IsOpen reports whether sessions may be opened and sales recorded under
// this shift.
func (s Shift) IsOpen() bool { return s.Status == ShiftOpen }
