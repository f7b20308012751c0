package model

import "time"

// SessionStatus is the closed set of register session states.
type SessionStatus string

// Session lifecycle: OPEN -> PENDING_CLOSE -> CLOSED, with a fast path
// OPEN -> CLOSED when the cashier skips the explicit "start close" step.
const (
    SessionOpen         SessionStatus = "OPEN"
    SessionPendingClose SessionStatus = "PENDING_CLOSE"
    SessionClosed       SessionStatus = "CLOSED"
)

// sessionTransitions encodes transition legality as a table rather than
// string comparisons scattered across call sites.
var sessionTransitions = map[SessionStatus][]SessionStatus{
    SessionOpen:         {SessionPendingClose, SessionClosed},
    SessionPendingClose: {SessionClosed},
    SessionClosed:       {},
}

// CanTransition reports whether a session may move from s to next.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
    for _, allowed := range sessionTransitions[s] {
        if allowed == next {
            return true
        }
    }
    return false
}

// Valid reports whether the value is a known session status.
func (s SessionStatus) Valid() bool {
    switch s {
    case SessionOpen, SessionPendingClose, SessionClosed:
        return true
    }
    return false
}

// MethodTotals carries per-payment-method amounts in cents. It is used for
// declared counts, computed expected totals and the variance between them.
type MethodTotals struct {
    CashCents   int64 `json:"cash_cents"`
    DebitCents  int64 `json:"debit_cents"`
    CreditCents int64 `json:"credit_cents"`
}

// Sum returns the aggregate across all methods.
func (t MethodTotals) Sum() int64 { return t.CashCents + t.DebitCents + t.CreditCents }

// Sub returns t - o per method.
func (t MethodTotals) Sub(o MethodTotals) MethodTotals {
    return MethodTotals{
        CashCents:   t.CashCents - o.CashCents,
        DebitCents:  t.DebitCents - o.DebitCents,
        CreditCents: t.CreditCents - o.CreditCents,
    }
}

// RegisterSession is one cashier's occupancy of a register within a shift.
// It is owned by the cashier who opened it until closed; reconciliation data
// is written exactly once, at close time.
//
// The nullable reconciliation fields stay nil while the session is open:
// expected totals are computed only during close so they can never leak to
// the cashier beforehand (blind close).
type RegisterSession struct {
    ID               uint64        // register_sessions.id
    RegisterID       string        // register_sessions.register_id
    ShiftID          uint64        // register_sessions.shift_id
    OpenedByID       string        // register_sessions.opened_by_id
    OpenedByName     string        // register_sessions.opened_by_name
    Status           SessionStatus // register_sessions.status
    OpenedAt         time.Time     // register_sessions.opened_at
    ClosedAt         *time.Time    // register_sessions.closed_at
    ClosedBy         *string       // register_sessions.closed_by
    OpeningCashCents *int64        // register_sessions.opening_cash_cents
    Declared         *MethodTotals // declared_* columns
    Expected         *MethodTotals // expected_* columns
    Variance         *MethodTotals // variance_* columns
    VarianceTotal    *int64        // register_sessions.variance_total_cents
    TicketCount      *int          // register_sessions.ticket_count
    NeedsReview      bool          // register_sessions.needs_review
    CloseNotes       *string       // register_sessions.close_notes
    IncidentsJSON    *string       // register_sessions.incidents_json
    IdempotencyKey   string        // register_sessions.idempotency_key_open
    ResolvedBy       *string       // register_sessions.resolved_by
    ResolvedAt       *time.Time    // register_sessions.resolved_at
    ResolutionNotes  *string       // register_sessions.resolution_notes
}

// CanSell reports whether sales may be attached to this session. Only an
// OPEN session sells; PENDING_CLOSE already freezes the till.
func (s RegisterSession) CanSell() bool { return s.Status == SessionOpen }
