package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/dmarquez/venue-pos/internal/model"
)

// RegisterSessionRepo provides data access to the register_sessions table.
// OPEN uniqueness per (register, shift) is backed by the uq_sessions_open
// unique key on the nullable open_slot column, so two concurrent opens can
// never both commit even if they both pass the FOR UPDATE check.
type RegisterSessionRepo struct {
    db *sql.DB
}

// NewRegisterSessionRepo returns a new RegisterSessionRepo bound to the
// provided database.
func NewRegisterSessionRepo(db *sql.DB) *RegisterSessionRepo {
    return &RegisterSessionRepo{db: db}
}

// Open creates a new OPEN session for the register under the shift. When a
// session with the same open-idempotency key already exists (a retried open
// request inside the same minute bucket) that session is returned with
// reused=true and nothing is written.
func (r *RegisterSessionRepo) Open(ctx context.Context, registerID string, shiftID uint64, employeeID, employeeName string, openingCashCents *int64, idemKey string) (*model.RegisterSession, bool, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, false, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    // Retried open: same content-derived key means same logical request.
    if existing, err := r.getTx(ctx, tx, `idempotency_key_open = ?`, idemKey); err == nil {
        if err := tx.Commit(); err != nil {
            return nil, false, err
        }
        committed = true
        return existing, true, nil
    } else if !errors.Is(err, sql.ErrNoRows) {
        return nil, false, err
    }

    if open, err := r.getTx(ctx, tx,
        `register_id = ? AND shift_id = ? AND status = ? FOR UPDATE`,
        registerID, shiftID, model.SessionOpen); err == nil {
        return nil, false, withReason(ErrConflict,
            "register %s already has an open session (opened by %s)", registerID, open.OpenedByName)
    } else if !errors.Is(err, sql.ErrNoRows) {
        return nil, false, err
    }

    now := time.Now().UTC()
    res, err := tx.ExecContext(ctx,
        `INSERT INTO register_sessions
            (register_id, shift_id, opened_by_id, opened_by_name, status, open_slot, opened_at, opening_cash_cents, idempotency_key_open)
         VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?)`,
        registerID, shiftID, employeeID, employeeName, model.SessionOpen, now, openingCashCents, idemKey)
    if isDuplicateKey(err) {
        // Lost the insert race: either a concurrent open of the same register
        // (open_slot key) or the same retried request (idempotency key).
        return nil, false, withReason(ErrConflict, "register %s already has an open session", registerID)
    }
    if err != nil {
        return nil, false, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return nil, false, err
    }
    if err := tx.Commit(); err != nil {
        return nil, false, err
    }
    committed = true
    return &model.RegisterSession{
        ID:               uint64(id),
        RegisterID:       registerID,
        ShiftID:          shiftID,
        OpenedByID:       employeeID,
        OpenedByName:     employeeName,
        Status:           model.SessionOpen,
        OpenedAt:         now,
        OpeningCashCents: openingCashCents,
        IdempotencyKey:   idemKey,
    }, false, nil
}

// GetByID returns a session or ErrNotFound.
func (r *RegisterSessionRepo) GetByID(ctx context.Context, id uint64) (*model.RegisterSession, error) {
    s, err := r.get(ctx, `id = ?`, id)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, withReason(ErrNotFound, "session %d not found", id)
    }
    return s, err
}

// GetOpenByRegister returns the OPEN session for a register under the given
// shift, or nil when the register has none.
func (r *RegisterSessionRepo) GetOpenByRegister(ctx context.Context, registerID string, shiftID uint64) (*model.RegisterSession, error) {
    s, err := r.get(ctx, `register_id = ? AND shift_id = ? AND status = ?`, registerID, shiftID, model.SessionOpen)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    return s, err
}

// StartClose moves a session from OPEN to PENDING_CLOSE. The conditional
// UPDATE makes a duplicate or late request a precondition failure instead of
// a lost update.
func (r *RegisterSessionRepo) StartClose(ctx context.Context, id uint64) error {
    res, err := r.db.ExecContext(ctx,
        `UPDATE register_sessions SET status = ? WHERE id = ? AND status = ?`,
        model.SessionPendingClose, id, model.SessionOpen)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        s, getErr := r.GetByID(ctx, id)
        if getErr != nil {
            return getErr
        }
        return withReason(ErrPrecondition, "session %d is not open (status %s)", id, s.Status)
    }
    return nil
}

// Close finalizes a session: inside one transaction it locks the row,
// aggregates the session's non-voided sales per payment method (windowed by
// the session's opening timestamp, not by calendar day, because one shift can
// hold several sessions on the same register), computes the variance against
// the declared counts and transitions to CLOSED.
//
// The expected totals exist only from this moment on; nothing computes them
// earlier, which is what keeps the close blind for the cashier.
func (r *RegisterSessionRepo) Close(ctx context.Context, id uint64, declared model.MethodTotals, closedBy string, notes, incidentsJSON *string, reviewToleranceCents int64) (*model.RegisterSession, error) {
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

    s, err := r.getTx(ctx, tx, `id = ? FOR UPDATE`, id)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, withReason(ErrNotFound, "session %d not found", id)
    }
    if err != nil {
        return nil, err
    }
    if !s.Status.CanTransition(model.SessionClosed) {
        return nil, withReason(ErrPrecondition, "session %d cannot close (status %s)", id, s.Status)
    }

    var expected model.MethodTotals
    var ticketCount int
    err = tx.QueryRowContext(ctx,
        `SELECT COALESCE(SUM(cash_cents), 0), COALESCE(SUM(debit_cents), 0),
                COALESCE(SUM(credit_cents), 0), COUNT(*)
           FROM sales
          WHERE register_id = ? AND shift_id = ? AND is_voided = 0 AND created_at >= ?`,
        s.RegisterID, s.ShiftID, s.OpenedAt).
        Scan(&expected.CashCents, &expected.DebitCents, &expected.CreditCents, &ticketCount)
    if err != nil {
        return nil, err
    }
    // The float starts in the drawer, so the expected cash includes it.
    if s.OpeningCashCents != nil {
        expected.CashCents += *s.OpeningCashCents
    }

    variance := declared.Sub(expected)
    varianceTotal := variance.Sum()
    needsReview := varianceTotal > reviewToleranceCents || varianceTotal < -reviewToleranceCents

    now := time.Now().UTC()
    _, err = tx.ExecContext(ctx,
        `UPDATE register_sessions
            SET status = ?, open_slot = NULL, closed_at = ?, closed_by = ?,
                declared_cash_cents = ?, declared_debit_cents = ?, declared_credit_cents = ?,
                expected_cash_cents = ?, expected_debit_cents = ?, expected_credit_cents = ?,
                variance_cash_cents = ?, variance_debit_cents = ?, variance_credit_cents = ?,
                variance_total_cents = ?, ticket_count = ?, needs_review = ?,
                close_notes = ?, incidents_json = ?
          WHERE id = ?`,
        model.SessionClosed, now, closedBy,
        declared.CashCents, declared.DebitCents, declared.CreditCents,
        expected.CashCents, expected.DebitCents, expected.CreditCents,
        variance.CashCents, variance.DebitCents, variance.CreditCents,
        varianceTotal, ticketCount, needsReview, notes, incidentsJSON, id)
    if err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true

    s.Status = model.SessionClosed
    s.ClosedAt = &now
    s.ClosedBy = &closedBy
    s.Declared = &declared
    s.Expected = &expected
    s.Variance = &variance
    s.VarianceTotal = &varianceTotal
    s.TicketCount = &ticketCount
    s.NeedsReview = needsReview
    s.CloseNotes = notes
    s.IncidentsJSON = incidentsJSON
    return s, nil
}

// ListClosed returns closed sessions, optionally only those flagged for
// review, newest first.
func (r *RegisterSessionRepo) ListClosed(ctx context.Context, onlyNeedsReview bool, limit int) ([]model.RegisterSession, error) {
    if limit <= 0 || limit > 200 {
        limit = 50
    }
    query := `SELECT ` + sessionColumns + ` FROM register_sessions WHERE status = ?`
    args := []any{model.SessionClosed}
    if onlyNeedsReview {
        query += ` AND needs_review = 1`
    }
    query += ` ORDER BY closed_at DESC LIMIT ?`
    args = append(args, limit)

    rows, err := r.db.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.RegisterSession
    for rows.Next() {
        s, err := scanSession(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *s)
    }
    return out, rows.Err()
}

// Resolve records an admin's review decision on a flagged close.
func (r *RegisterSessionRepo) Resolve(ctx context.Context, id uint64, resolvedBy string, notes *string) error {
    res, err := r.db.ExecContext(ctx,
        `UPDATE register_sessions
            SET resolved_by = ?, resolved_at = UTC_TIMESTAMP(), resolution_notes = ?
          WHERE id = ? AND status = ? AND resolved_at IS NULL`,
        resolvedBy, notes, id, model.SessionClosed)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return withReason(ErrPrecondition, "session %d is not a closed, unresolved session", id)
    }
    return nil
}

const sessionColumns = `id, register_id, shift_id, opened_by_id, opened_by_name, status,
    opened_at, closed_at, closed_by, opening_cash_cents,
    declared_cash_cents, declared_debit_cents, declared_credit_cents,
    expected_cash_cents, expected_debit_cents, expected_credit_cents,
    variance_cash_cents, variance_debit_cents, variance_credit_cents,
    variance_total_cents, ticket_count, needs_review, close_notes, incidents_json,
    idempotency_key_open, resolved_by, resolved_at, resolution_notes`

func (r *RegisterSessionRepo) get(ctx context.Context, where string, args ...any) (*model.RegisterSession, error) {
    return scanSession(r.db.QueryRowContext(ctx,
        `SELECT `+sessionColumns+` FROM register_sessions WHERE `+where, args...))
}

func (r *RegisterSessionRepo) getTx(ctx context.Context, tx *sql.Tx, where string, args ...any) (*model.RegisterSession, error) {
    return scanSession(tx.QueryRowContext(ctx,
        `SELECT `+sessionColumns+` FROM register_sessions WHERE `+where, args...))
}

// scanSession reads one session row, folding the nullable per-method columns
// into MethodTotals pointers that stay nil until close time.
func scanSession(row rowScanner) (*model.RegisterSession, error) {
    var s model.RegisterSession
    var declaredCash, declaredDebit, declaredCredit sql.NullInt64
    var expectedCash, expectedDebit, expectedCredit sql.NullInt64
    var varCash, varDebit, varCredit, varTotal sql.NullInt64
    var ticketCount sql.NullInt64
    var status string

    err := row.Scan(&s.ID, &s.RegisterID, &s.ShiftID, &s.OpenedByID, &s.OpenedByName, &status,
        &s.OpenedAt, &s.ClosedAt, &s.ClosedBy, &s.OpeningCashCents,
        &declaredCash, &declaredDebit, &declaredCredit,
        &expectedCash, &expectedDebit, &expectedCredit,
        &varCash, &varDebit, &varCredit,
        &varTotal, &ticketCount, &s.NeedsReview, &s.CloseNotes, &s.IncidentsJSON,
        &s.IdempotencyKey, &s.ResolvedBy, &s.ResolvedAt, &s.ResolutionNotes)
    if err != nil {
        return nil, err
    }
    s.Status = model.SessionStatus(status)
    if declaredCash.Valid {
        s.Declared = &model.MethodTotals{CashCents: declaredCash.Int64, DebitCents: declaredDebit.Int64, CreditCents: declaredCredit.Int64}
    }
    if expectedCash.Valid {
        s.Expected = &model.MethodTotals{CashCents: expectedCash.Int64, DebitCents: expectedDebit.Int64, CreditCents: expectedCredit.Int64}
    }
    if varCash.Valid {
        s.Variance = &model.MethodTotals{CashCents: varCash.Int64, DebitCents: varDebit.Int64, CreditCents: varCredit.Int64}
    }
    if varTotal.Valid {
        v := varTotal.Int64
        s.VarianceTotal = &v
    }
    if ticketCount.Valid {
        n := int(ticketCount.Int64)
        s.TicketCount = &n
    }
    return &s, nil
}
