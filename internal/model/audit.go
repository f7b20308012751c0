package model

import "time"

// Audit severities.
const (
    SeverityInfo    = "info"
    SeverityWarning = "warning"
    SeverityError   = "error"
)

// Audit event types emitted by the core. Kept as constants so dashboards and
// tests do not depend on free-form strings.
const (
    EventRegisterLocked       = "REGISTER_LOCKED"
    EventRegisterReleased     = "REGISTER_RELEASED"
    EventRegisterForceRelease = "REGISTER_FORCE_RELEASED"
    EventSessionOpened        = "REGISTER_SESSION_OPENED"
    EventSessionPendingClose  = "REGISTER_SESSION_PENDING_CLOSE"
    EventSessionClosed        = "REGISTER_SESSION_CLOSED"
    EventSessionResolved      = "REGISTER_SESSION_RESOLVED"
    EventIntentCreated        = "PAYMENT_INTENT_CREATED"
    EventIntentClaimed        = "PAYMENT_INTENT_CLAIMED"
    EventIntentResolved       = "PAYMENT_INTENT_RESOLVED"
    EventIntentCancelled      = "PAYMENT_INTENT_CANCELLED"
    EventSaleCreated          = "SALE_CREATED"
    EventShiftOpened          = "SHIFT_OPENED"
    EventShiftClosed          = "SHIFT_CLOSED"
)

// AuditRefs loosely references the entities an audit entry concerns. All
// fields are optional; entries reference by id, never by ownership, so an
// entry outlives the row it describes.
type AuditRefs struct {
    RegisterID string
    SessionID  uint64
    IntentID   string
    ShiftID    uint64
}

// AuditEntry is one append-only record of a state change. Entries are never
// mutated or deleted.
type AuditEntry struct {
    ID          uint64    // audit_log.id
    EventType   string    // audit_log.event_type
    Severity    string    // audit_log.severity
    ActorID     string    // audit_log.actor_id
    ActorName   string    // audit_log.actor_name
    RegisterID  *string   // audit_log.register_id
    SessionID   *uint64   // audit_log.session_id
    IntentID    *string   // audit_log.intent_id
    ShiftID     *uint64   // audit_log.shift_id
    PayloadJSON *string   // audit_log.payload_json
    IPAddress   *string   // audit_log.ip_address
    CreatedAt   time.Time // audit_log.created_at
}
