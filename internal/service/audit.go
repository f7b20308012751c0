// Package service implements the business rules on top of the repositories:
// register locking, session lifecycle and reconciliation, payment intent
// orchestration and audit recording. Services depend on small store
// interfaces rather than concrete repositories so tests can substitute
// in-memory fakes.
package service

import (
    "context"
    "encoding/json"
    "log"

    "github.com/dmarquez/venue-pos/internal/model"
)

type auditStore interface {
    Insert(ctx context.Context, e *model.AuditEntry) error
}

// AuditRecorder appends entries to the audit log. Recording is strictly
// best-effort: a failed insert is logged and swallowed, because an audit
// outage must never fail the money-moving operation it describes.
type AuditRecorder struct {
    store auditStore
}

// NewAuditRecorder returns an AuditRecorder over the given store.
func NewAuditRecorder(store auditStore) *AuditRecorder {
    return &AuditRecorder{store: store}
}

// Record appends one audit entry. payload, when non-nil, is JSON-encoded into
// the entry; refs fields that are zero are stored as NULL.
func (a *AuditRecorder) Record(ctx context.Context, eventType, severity string, actor model.Actor, refs model.AuditRefs, payload any) {
    e := model.AuditEntry{
        EventType: eventType,
        Severity:  severity,
        ActorID:   actor.ID,
        ActorName: actor.Name,
    }
    if refs.RegisterID != "" {
        e.RegisterID = &refs.RegisterID
    }
    if refs.SessionID != 0 {
        e.SessionID = &refs.SessionID
    }
    if refs.IntentID != "" {
        e.IntentID = &refs.IntentID
    }
    if refs.ShiftID != 0 {
        e.ShiftID = &refs.ShiftID
    }
    if actor.IP != "" {
        e.IPAddress = &actor.IP
    }
    if payload != nil {
        if b, err := json.Marshal(payload); err == nil {
            s := string(b)
            e.PayloadJSON = &s
        } else {
            log.Printf("audit: encode payload for %s: %v", eventType, err)
        }
    }
    if err := a.store.Insert(ctx, &e); err != nil {
        log.Printf("audit: insert %s: %v", eventType, err)
    }
}

// Info records an entry at info severity.
func (a *AuditRecorder) Info(ctx context.Context, eventType string, actor model.Actor, refs model.AuditRefs, payload any) {
    a.Record(ctx, eventType, model.SeverityInfo, actor, refs, payload)
}

// Warn records an entry at warning severity.
func (a *AuditRecorder) Warn(ctx context.Context, eventType string, actor model.Actor, refs model.AuditRefs, payload any) {
    a.Record(ctx, eventType, model.SeverityWarning, actor, refs, payload)
}
