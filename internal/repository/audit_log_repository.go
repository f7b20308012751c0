package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/dmarquez/venue-pos/internal/model"
)

// AuditLogRepo appends to the audit_log table. The table is append-only; no
// update or delete statement exists anywhere in this package.
type AuditLogRepo struct {
    db *sql.DB
}

// NewAuditLogRepo returns a new AuditLogRepo bound to the provided database.
func NewAuditLogRepo(db *sql.DB) *AuditLogRepo { return &AuditLogRepo{db: db} }

// Insert appends one entry.
func (r *AuditLogRepo) Insert(ctx context.Context, e *model.AuditEntry) error {
    _, err := r.db.ExecContext(ctx,
        `INSERT INTO audit_log
            (event_type, severity, actor_id, actor_name, register_id, session_id,
             intent_id, shift_id, payload_json, ip_address, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
        e.EventType, e.Severity, e.ActorID, e.ActorName, e.RegisterID, e.SessionID,
        e.IntentID, e.ShiftID, e.PayloadJSON, e.IPAddress, time.Now().UTC())
    return err
}

// ListRecent returns the newest entries, optionally filtered by event type.
func (r *AuditLogRepo) ListRecent(ctx context.Context, eventType string, limit int) ([]model.AuditEntry, error) {
    if limit <= 0 || limit > 500 {
        limit = 100
    }
    query := `SELECT id, event_type, severity, actor_id, actor_name, register_id,
                     session_id, intent_id, shift_id, payload_json, ip_address, created_at
                FROM audit_log`
    args := []any{}
    if eventType != "" {
        query += ` WHERE event_type = ?`
        args = append(args, eventType)
    }
    query += ` ORDER BY id DESC LIMIT ?`
    args = append(args, limit)

    rows, err := r.db.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.AuditEntry
    for rows.Next() {
        var e model.AuditEntry
        if err := rows.Scan(&e.ID, &e.EventType, &e.Severity, &e.ActorID, &e.ActorName,
            &e.RegisterID, &e.SessionID, &e.IntentID, &e.ShiftID, &e.PayloadJSON,
            &e.IPAddress, &e.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, e)
    }
    return out, rows.Err()
}
