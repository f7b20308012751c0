package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/dmarquez/venue-pos/internal/model"
)

// PaymentIntentRepo provides data access to the payment_intents table. Claims
// and result reports are single conditional writes keyed on the current
// status, so a racing cancel and agent result can never both win.
type PaymentIntentRepo struct {
    db *sql.DB
}

// NewPaymentIntentRepo returns a new PaymentIntentRepo bound to the provided
// database.
func NewPaymentIntentRepo(db *sql.DB) *PaymentIntentRepo {
    return &PaymentIntentRepo{db: db}
}

// Create inserts a new intent. The caller supplies the id, cart snapshot and
// hash; the row is born READY and immediately visible to agent claims.
func (r *PaymentIntentRepo) Create(ctx context.Context, p *model.PaymentIntent) error {
    now := time.Now().UTC()
    p.CreatedAt = now
    p.UpdatedAt = now
    _, err := r.db.ExecContext(ctx,
        `INSERT INTO payment_intents
            (id, register_id, session_id, employee_id, employee_name, amount_cents,
             currency, cart_json, cart_hash, provider, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
        p.ID, p.RegisterID, p.SessionID, p.EmployeeID, p.EmployeeName, p.AmountCents,
        p.Currency, p.CartJSON, p.CartHash, p.Provider, p.Status, p.CreatedAt, p.UpdatedAt)
    return err
}

// FindReusable returns the newest non-settled intent on the register with the
// same cart hash and amount, or nil. A cashier double-tapping "charge" gets
// the in-flight intent back instead of queueing a second charge for the same
// cart.
func (r *PaymentIntentRepo) FindReusable(ctx context.Context, registerID, cartHash string, amountCents int64) (*model.PaymentIntent, error) {
    p, err := r.get(ctx,
        `register_id = ? AND cart_hash = ? AND amount_cents = ? AND status IN (?, ?, ?)
         ORDER BY created_at DESC LIMIT 1`,
        registerID, cartHash, amountCents,
        model.IntentCreated, model.IntentReady, model.IntentInProgress)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    return p, err
}

// GetByID returns an intent or ErrNotFound.
func (r *PaymentIntentRepo) GetByID(ctx context.Context, id string) (*model.PaymentIntent, error) {
    p, err := r.get(ctx, `id = ?`, id)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, withReason(ErrNotFound, "intent %s not found", id)
    }
    return p, err
}

// ClaimOldestReady hands the oldest READY intent on a register to an agent,
// moving it to IN_PROGRESS, or returns nil when nothing is waiting. SKIP
// LOCKED keeps concurrent agent polls from blocking on each other: each poll
// either claims a distinct row or sees an empty queue.
func (r *PaymentIntentRepo) ClaimOldestReady(ctx context.Context, registerID, agentID string) (*model.PaymentIntent, error) {
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

    p, err := scanIntent(tx.QueryRowContext(ctx,
        `SELECT `+intentColumns+` FROM payment_intents
          WHERE register_id = ? AND status = ?
          ORDER BY created_at ASC LIMIT 1
          FOR UPDATE SKIP LOCKED`,
        registerID, model.IntentReady))
    if errors.Is(err, sql.ErrNoRows) {
        if err := tx.Commit(); err != nil {
            return nil, err
        }
        committed = true
        return nil, nil
    }
    if err != nil {
        return nil, err
    }

    now := time.Now().UTC()
    if _, err := tx.ExecContext(ctx,
        `UPDATE payment_intents
            SET status = ?, claimed_by_agent = ?, claimed_at = ?, updated_at = ?
          WHERE id = ?`,
        model.IntentInProgress, agentID, now, now, p.ID); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true

    p.Status = model.IntentInProgress
    p.ClaimedByAgent = &agentID
    p.ClaimedAt = &now
    p.UpdatedAt = now
    return p, nil
}

// ResultFields carries the provider outcome attached to a terminal result.
type ResultFields struct {
    ProviderRef  *string
    AuthCode     *string
    ErrorCode    *string
    ErrorMessage *string
}

// ReportResult records the agent's terminal outcome for an IN_PROGRESS
// intent. The WHERE clause asserts the prior status, so a result arriving
// after a cancel (or a duplicate report) affects zero rows and surfaces as
// ErrPrecondition carrying the status that won.
func (r *PaymentIntentRepo) ReportResult(ctx context.Context, id, agentID string, result model.IntentStatus, fields ResultFields) (*model.PaymentIntent, error) {
    if !result.ResultStatus() {
        return nil, withReason(ErrValidation, "%s is not a reportable result status", result)
    }
    now := time.Now().UTC()
    var approvedAt *time.Time
    if result == model.IntentApproved {
        approvedAt = &now
    }
    res, err := r.db.ExecContext(ctx,
        `UPDATE payment_intents
            SET status = ?, provider_ref = ?, auth_code = ?, error_code = ?,
                error_message = ?, approved_at = ?, updated_at = ?
          WHERE id = ? AND status = ? AND claimed_by_agent = ?`,
        result, fields.ProviderRef, fields.AuthCode, fields.ErrorCode,
        fields.ErrorMessage, approvedAt, now, id, model.IntentInProgress, agentID)
    if err != nil {
        return nil, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return nil, err
    }
    if n == 0 {
        p, getErr := r.GetByID(ctx, id)
        if getErr != nil {
            return nil, getErr
        }
        return nil, withReason(ErrPrecondition,
            "intent %s is not in progress for this agent (status %s)", id, p.Status)
    }
    return r.GetByID(ctx, id)
}

// Cancel moves an intent to CANCELLED from any non-terminal state. An intent
// already settled by the agent stays settled; the caller gets the terminal
// status back in the error reason.
func (r *PaymentIntentRepo) Cancel(ctx context.Context, id string) (*model.PaymentIntent, error) {
    now := time.Now().UTC()
    res, err := r.db.ExecContext(ctx,
        `UPDATE payment_intents SET status = ?, updated_at = ?
          WHERE id = ? AND status IN (?, ?, ?)`,
        model.IntentCancelled, now, id,
        model.IntentCreated, model.IntentReady, model.IntentInProgress)
    if err != nil {
        return nil, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return nil, err
    }
    if n == 0 {
        p, getErr := r.GetByID(ctx, id)
        if getErr != nil {
            return nil, getErr
        }
        return nil, withReason(ErrPrecondition, "intent %s already settled (status %s)", id, p.Status)
    }
    return r.GetByID(ctx, id)
}

// ListBySession returns a session's intents, newest first, for the admin
// view of what a register was doing before a flagged close.
func (r *PaymentIntentRepo) ListBySession(ctx context.Context, sessionID uint64) ([]model.PaymentIntent, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+intentColumns+` FROM payment_intents
          WHERE session_id = ? ORDER BY created_at DESC`, sessionID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.PaymentIntent
    for rows.Next() {
        p, err := scanIntent(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *p)
    }
    return out, rows.Err()
}

const intentColumns = `id, register_id, session_id, employee_id, employee_name, amount_cents,
    currency, cart_json, cart_hash, provider, status, provider_ref, auth_code,
    error_code, error_message, claimed_by_agent, claimed_at, sale_id,
    created_at, updated_at, approved_at`

func (r *PaymentIntentRepo) get(ctx context.Context, where string, args ...any) (*model.PaymentIntent, error) {
    return scanIntent(r.db.QueryRowContext(ctx,
        `SELECT `+intentColumns+` FROM payment_intents WHERE `+where, args...))
}

func scanIntent(row rowScanner) (*model.PaymentIntent, error) {
    var p model.PaymentIntent
    var status string
    err := row.Scan(&p.ID, &p.RegisterID, &p.SessionID, &p.EmployeeID, &p.EmployeeName,
        &p.AmountCents, &p.Currency, &p.CartJSON, &p.CartHash, &p.Provider, &status,
        &p.ProviderRef, &p.AuthCode, &p.ErrorCode, &p.ErrorMessage,
        &p.ClaimedByAgent, &p.ClaimedAt, &p.SaleID, &p.CreatedAt, &p.UpdatedAt, &p.ApprovedAt)
    if err != nil {
        return nil, err
    }
    p.Status = model.IntentStatus(status)
    return &p, nil
}
