package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/dmarquez/venue-pos/internal/model"
)

// ShiftRepo provides data access to the shifts table.
type ShiftRepo struct {
    db *sql.DB
}

// NewShiftRepo returns a new ShiftRepo bound to the provided database.
func NewShiftRepo(db *sql.DB) *ShiftRepo { return &ShiftRepo{db: db} }

// Open creates a new OPEN shift for the business date. Only one shift may be
// open at a time; an existing open shift is a conflict.
func (r *ShiftRepo) Open(ctx context.Context, businessDate, openedBy string) (*model.Shift, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    var existing uint64
    err = tx.QueryRowContext(ctx,
        `SELECT id FROM shifts WHERE status = ? LIMIT 1 FOR UPDATE`, model.ShiftOpen).Scan(&existing)
    if err == nil {
        return nil, withReason(ErrConflict, "shift %d is already open", existing)
    }
    if !errors.Is(err, sql.ErrNoRows) {
        return nil, err
    }

    now := time.Now().UTC()
    res, err := tx.ExecContext(ctx,
        `INSERT INTO shifts (business_date, status, opened_by, opened_at) VALUES (?, ?, ?, ?)`,
        businessDate, model.ShiftOpen, openedBy, now)
    if err != nil {
        return nil, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    return &model.Shift{
        ID:           uint64(id),
        BusinessDate: businessDate,
        Status:       model.ShiftOpen,
        OpenedBy:     openedBy,
        OpenedAt:     now,
    }, nil
}

// GetByID returns a shift or ErrNotFound.
func (r *ShiftRepo) GetByID(ctx context.Context, id uint64) (*model.Shift, error) {
    var s model.Shift
    err := r.db.QueryRowContext(ctx,
        `SELECT id, business_date, status, opened_by, opened_at, closed_at
           FROM shifts WHERE id = ?`, id).
        Scan(&s.ID, &s.BusinessDate, &s.Status, &s.OpenedBy, &s.OpenedAt, &s.ClosedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, withReason(ErrNotFound, "shift %d not found", id)
    }
    if err != nil {
        return nil, err
    }
    return &s, nil
}

// GetOpen returns the currently open shift, or nil when none is open.
func (r *ShiftRepo) GetOpen(ctx context.Context) (*model.Shift, error) {
    var s model.Shift
    err := r.db.QueryRowContext(ctx,
        `SELECT id, business_date, status, opened_by, opened_at, closed_at
           FROM shifts WHERE status = ? ORDER BY opened_at DESC LIMIT 1`, model.ShiftOpen).
        Scan(&s.ID, &s.BusinessDate, &s.Status, &s.OpenedBy, &s.OpenedAt, &s.ClosedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return &s, nil
}

// Close marks a shift CLOSED. New session opens and sales are blocked from
// that point; sessions still open stay open and must be reconciled
// individually.
func (r *ShiftRepo) Close(ctx context.Context, id uint64) (*model.Shift, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE shifts SET status = ?, closed_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?`,
        model.ShiftClosed, id, model.ShiftOpen)
    if err != nil {
        return nil, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return nil, err
    }
    if n == 0 {
        s, getErr := r.GetByID(ctx, id)
        if getErr != nil {
            return nil, getErr
        }
        return nil, withReason(ErrPrecondition, "shift %d is not open (status %s)", id, s.Status)
    }
    return r.GetByID(ctx, id)
}
