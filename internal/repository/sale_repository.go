package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/dmarquez/venue-pos/internal/model"
)

// SaleRepo provides data access to the sales and sale_items tables. Sales are
// written exactly once: card sales via the intent linkage transaction, cash
// sales via the idempotency-key unique index.
type SaleRepo struct {
    db *sql.DB
}

// NewSaleRepo returns a new SaleRepo bound to the provided database.
func NewSaleRepo(db *sql.DB) *SaleRepo { return &SaleRepo{db: db} }

// CreateForIntent records the sale for an approved payment intent and stamps
// the intent with the sale id, all in one transaction. Retrying after the
// first success returns the already-linked sale with reused=true; an intent
// that is not APPROVED is a precondition failure.
//
// The intent row is read FOR UPDATE, so two concurrent confirmations
// serialize on it and the loser sees sale_id already set.
func (r *SaleRepo) CreateForIntent(ctx context.Context, intentID string, sale *model.Sale, items []model.SaleItem) (*model.Sale, bool, error) {
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

    var status string
    var linkedSaleID sql.NullInt64
    err = tx.QueryRowContext(ctx,
        `SELECT status, sale_id FROM payment_intents WHERE id = ? FOR UPDATE`, intentID).
        Scan(&status, &linkedSaleID)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, false, withReason(ErrNotFound, "intent %s not found", intentID)
    }
    if err != nil {
        return nil, false, err
    }
    if linkedSaleID.Valid {
        existing, err := r.getTx(ctx, tx, `id = ?`, linkedSaleID.Int64)
        if err != nil {
            return nil, false, err
        }
        if err := tx.Commit(); err != nil {
            return nil, false, err
        }
        committed = true
        return existing, true, nil
    }
    if model.IntentStatus(status) != model.IntentApproved {
        return nil, false, withReason(ErrPrecondition,
            "intent %s is not approved (status %s)", intentID, status)
    }

    sale.IntentID = &intentID
    sale.CreatedAt = time.Now().UTC()
    saleID, err := insertSale(ctx, tx, sale, items)
    if err != nil {
        return nil, false, err
    }
    sale.ID = saleID

    if _, err := tx.ExecContext(ctx,
        `UPDATE payment_intents SET sale_id = ?, updated_at = ? WHERE id = ?`,
        saleID, sale.CreatedAt, intentID); err != nil {
        return nil, false, err
    }
    if err := tx.Commit(); err != nil {
        return nil, false, err
    }
    committed = true
    return sale, false, nil
}

// CreateIdempotent records a cash sale. A retry carrying the same
// idempotency key loses the insert on uq_sales_idem and gets the original
// sale back with reused=true.
func (r *SaleRepo) CreateIdempotent(ctx context.Context, sale *model.Sale, items []model.SaleItem) (*model.Sale, bool, error) {
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

    sale.CreatedAt = time.Now().UTC()
    saleID, err := insertSale(ctx, tx, sale, items)
    if isDuplicateKey(err) {
        existing, getErr := r.GetByIdempotencyKey(ctx, sale.IdempotencyKey)
        if getErr != nil {
            return nil, false, getErr
        }
        return existing, true, nil
    }
    if err != nil {
        return nil, false, err
    }
    sale.ID = saleID
    if err := tx.Commit(); err != nil {
        return nil, false, err
    }
    committed = true
    return sale, false, nil
}

// GetByID returns a sale or ErrNotFound.
func (r *SaleRepo) GetByID(ctx context.Context, id uint64) (*model.Sale, error) {
    s, err := r.get(ctx, `id = ?`, id)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, withReason(ErrNotFound, "sale %d not found", id)
    }
    return s, err
}

// GetByIdempotencyKey returns the sale recorded under the key, or
// ErrNotFound.
func (r *SaleRepo) GetByIdempotencyKey(ctx context.Context, key string) (*model.Sale, error) {
    s, err := r.get(ctx, `idempotency_key = ?`, key)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, withReason(ErrNotFound, "no sale recorded under key %s", key)
    }
    return s, err
}

// ListItems returns the line items of a sale.
func (r *SaleRepo) ListItems(ctx context.Context, saleID uint64) ([]model.SaleItem, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT id, sale_id, product_id, product_name, quantity, unit_price_cents, subtotal_cents
           FROM sale_items WHERE sale_id = ? ORDER BY id`, saleID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var items []model.SaleItem
    for rows.Next() {
        var it model.SaleItem
        if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductName,
            &it.Quantity, &it.UnitPriceCents, &it.SubtotalCents); err != nil {
            return nil, err
        }
        items = append(items, it)
    }
    return items, rows.Err()
}

// TotalsSince aggregates the non-voided sales on a register+shift from a
// point in time, per payment method. Mirrors the aggregation the session
// close runs in-transaction; exposed for the admin reconciliation view.
func (r *SaleRepo) TotalsSince(ctx context.Context, registerID string, shiftID uint64, since time.Time) (model.MethodTotals, int, error) {
    var t model.MethodTotals
    var count int
    err := r.db.QueryRowContext(ctx,
        `SELECT COALESCE(SUM(cash_cents), 0), COALESCE(SUM(debit_cents), 0),
                COALESCE(SUM(credit_cents), 0), COUNT(*)
           FROM sales
          WHERE register_id = ? AND shift_id = ? AND is_voided = 0 AND created_at >= ?`,
        registerID, shiftID, since).
        Scan(&t.CashCents, &t.DebitCents, &t.CreditCents, &count)
    return t, count, err
}

// insertSale writes the sale row and its items inside the caller's
// transaction and returns the new sale id.
func insertSale(ctx context.Context, tx *sql.Tx, sale *model.Sale, items []model.SaleItem) (uint64, error) {
    res, err := tx.ExecContext(ctx,
        `INSERT INTO sales
            (register_id, session_id, shift_id, employee_id, employee_name,
             total_cents, payment_type, cash_cents, debit_cents, credit_cents,
             provider, intent_id, idempotency_key, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
        sale.RegisterID, sale.SessionID, sale.ShiftID, sale.EmployeeID, sale.EmployeeName,
        sale.TotalCents, sale.PaymentType, sale.CashCents, sale.DebitCents, sale.CreditCents,
        sale.Provider, sale.IntentID, sale.IdempotencyKey, sale.CreatedAt)
    if err != nil {
        return 0, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return 0, err
    }
    for _, it := range items {
        if _, err := tx.ExecContext(ctx,
            `INSERT INTO sale_items (sale_id, product_id, product_name, quantity, unit_price_cents, subtotal_cents)
             VALUES (?, ?, ?, ?, ?, ?)`,
            id, it.ProductID, it.ProductName, it.Quantity, it.UnitPriceCents, it.SubtotalCents); err != nil {
            return 0, err
        }
    }
    return uint64(id), nil
}

func (r *SaleRepo) get(ctx context.Context, where string, args ...any) (*model.Sale, error) {
    return r.scanFrom(r.db.QueryRowContext(ctx,
        `SELECT id, register_id, session_id, shift_id, employee_id, employee_name,
                total_cents, payment_type, cash_cents, debit_cents, credit_cents,
                provider, intent_id, idempotency_key, is_voided, created_at
           FROM sales WHERE `+where, args...))
}

func (r *SaleRepo) getTx(ctx context.Context, tx *sql.Tx, where string, args ...any) (*model.Sale, error) {
    return r.scanFrom(tx.QueryRowContext(ctx,
        `SELECT id, register_id, session_id, shift_id, employee_id, employee_name,
                total_cents, payment_type, cash_cents, debit_cents, credit_cents,
                provider, intent_id, idempotency_key, is_voided, created_at
           FROM sales WHERE `+where, args...))
}

func (r *SaleRepo) scanFrom(row rowScanner) (*model.Sale, error) {
    var s model.Sale
    err := row.Scan(&s.ID, &s.RegisterID, &s.SessionID, &s.ShiftID, &s.EmployeeID,
        &s.EmployeeName, &s.TotalCents, &s.PaymentType, &s.CashCents, &s.DebitCents,
        &s.CreditCents, &s.Provider, &s.IntentID, &s.IdempotencyKey, &s.IsVoided, &s.CreatedAt)
    if err != nil {
        return nil, err
    }
    return &s, nil
}
