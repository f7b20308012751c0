package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/dmarquez/venue-pos/internal/model"
)

// RegisterLockRepo provides data access to the register_locks table. A lock
// row past its expires_at is treated as absent on every read (lazy expiry);
// SweepExpired exists only as optional hygiene. All timestamps are UTC.
type RegisterLockRepo struct {
    db *sql.DB
}

// NewRegisterLockRepo returns a new RegisterLockRepo bound to the provided
// database.
func NewRegisterLockRepo(db *sql.DB) *RegisterLockRepo { return &RegisterLockRepo{db: db} }

// Acquire attempts to take the lock on a register for an employee, extending
// the expiry to now+ttl. It returns (true, lock) when the register was free,
// expired, or already held by the same employee (idempotent re-entry), and
// (false, holder) when a live lock belongs to someone else.
//
// Two acquires racing on a free register are serialized by the primary key:
// the row is read FOR UPDATE inside a transaction, and if both transactions
// pass the no-row check the second INSERT fails with a duplicate-key error
// and the call reports the register as taken.
func (r *RegisterLockRepo) Acquire(ctx context.Context, registerID, employeeID, employeeName string, ttl time.Duration) (bool, *model.RegisterLock, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return false, nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    now := time.Now().UTC()
    cur, err := scanLock(tx.QueryRowContext(ctx,
        `SELECT register_id, employee_id, employee_name, locked_at, expires_at
           FROM register_locks WHERE register_id = ? FOR UPDATE`, registerID))
    switch {
    case err == nil && !cur.Expired(now) && cur.EmployeeID != employeeID:
        // Live lock held by another cashier: the acquire loses.
        holder := cur
        if err := tx.Commit(); err != nil {
            return false, nil, err
        }
        committed = true
        return false, &holder, nil
    case err != nil && !errors.Is(err, sql.ErrNoRows):
        return false, nil, err
    }

    lock := model.RegisterLock{
        RegisterID:   registerID,
        EmployeeID:   employeeID,
        EmployeeName: employeeName,
        LockedAt:     now,
        ExpiresAt:    now.Add(ttl),
    }
    if errors.Is(err, sql.ErrNoRows) {
        _, err = tx.ExecContext(ctx,
            `INSERT INTO register_locks (register_id, employee_id, employee_name, locked_at, expires_at)
             VALUES (?, ?, ?, ?, ?)`,
            lock.RegisterID, lock.EmployeeID, lock.EmployeeName, lock.LockedAt, lock.ExpiresAt)
        if isDuplicateKey(err) {
            // Lost the insert race to a concurrent acquire.
            return false, nil, nil
        }
    } else {
        // Row exists but is expired or our own: refresh it in place.
        _, err = tx.ExecContext(ctx,
            `UPDATE register_locks
                SET employee_id = ?, employee_name = ?, locked_at = ?, expires_at = ?
              WHERE register_id = ?`,
            lock.EmployeeID, lock.EmployeeName, lock.LockedAt, lock.ExpiresAt, lock.RegisterID)
    }
    if err != nil {
        return false, nil, err
    }
    if err := tx.Commit(); err != nil {
        return false, nil, err
    }
    committed = true
    return true, &lock, nil
}

// Get returns the live lock for a register, or nil when the register is free.
// An expired row is deleted on the way out.
func (r *RegisterLockRepo) Get(ctx context.Context, registerID string) (*model.RegisterLock, error) {
    lock, err := scanLock(r.db.QueryRowContext(ctx,
        `SELECT register_id, employee_id, employee_name, locked_at, expires_at
           FROM register_locks WHERE register_id = ?`, registerID))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    if lock.Expired(time.Now().UTC()) {
        _, _ = r.db.ExecContext(ctx,
            `DELETE FROM register_locks WHERE register_id = ? AND expires_at <= UTC_TIMESTAMP()`, registerID)
        return nil, nil
    }
    return &lock, nil
}

// Release deletes the lock on a register. Returns true when a row was
// removed.
func (r *RegisterLockRepo) Release(ctx context.Context, registerID string) (bool, error) {
    res, err := r.db.ExecContext(ctx, `DELETE FROM register_locks WHERE register_id = ?`, registerID)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    return n > 0, err
}

// ReleaseOthersForEmployee removes every lock the employee holds on registers
// other than keep, returning the affected register ids. Supports the
// one-register-per-cashier rule applied before each acquire.
func (r *RegisterLockRepo) ReleaseOthersForEmployee(ctx context.Context, employeeID, keep string) ([]string, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT register_id FROM register_locks WHERE employee_id = ? AND register_id <> ?`,
        employeeID, keep)
    if err != nil {
        return nil, err
    }
    var ids []string
    for rows.Next() {
        var id string
        if err := rows.Scan(&id); err != nil {
            rows.Close()
            return nil, err
        }
        ids = append(ids, id)
    }
    if err := rows.Close(); err != nil {
        return nil, err
    }
    if len(ids) == 0 {
        return nil, nil
    }
    if _, err := r.db.ExecContext(ctx,
        `DELETE FROM register_locks WHERE employee_id = ? AND register_id <> ?`,
        employeeID, keep); err != nil {
        return nil, err
    }
    return ids, nil
}

// ListForEmployee returns the employee's live locks.
func (r *RegisterLockRepo) ListForEmployee(ctx context.Context, employeeID string) ([]model.RegisterLock, error) {
    return r.list(ctx,
        `SELECT register_id, employee_id, employee_name, locked_at, expires_at
           FROM register_locks WHERE employee_id = ? AND expires_at > UTC_TIMESTAMP()`, employeeID)
}

// ListAll returns every live lock, for the admin dashboard.
func (r *RegisterLockRepo) ListAll(ctx context.Context) ([]model.RegisterLock, error) {
    return r.list(ctx,
        `SELECT register_id, employee_id, employee_name, locked_at, expires_at
           FROM register_locks WHERE expires_at > UTC_TIMESTAMP() ORDER BY register_id`)
}

// SweepExpired deletes expired rows and returns how many were removed.
// Correctness never depends on it running; reads already ignore expired rows.
func (r *RegisterLockRepo) SweepExpired(ctx context.Context) (int64, error) {
    res, err := r.db.ExecContext(ctx,
        `DELETE FROM register_locks WHERE expires_at <= UTC_TIMESTAMP()`)
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// ReleaseAll deletes every lock and returns the count, for the admin
// end-of-night reset.
func (r *RegisterLockRepo) ReleaseAll(ctx context.Context) (int64, error) {
    res, err := r.db.ExecContext(ctx, `DELETE FROM register_locks`)
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

func (r *RegisterLockRepo) list(ctx context.Context, query string, args ...any) ([]model.RegisterLock, error) {
    rows, err := r.db.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var locks []model.RegisterLock
    for rows.Next() {
        var l model.RegisterLock
        if err := rows.Scan(&l.RegisterID, &l.EmployeeID, &l.EmployeeName, &l.LockedAt, &l.ExpiresAt); err != nil {
            return nil, err
        }
        locks = append(locks, l)
    }
    return locks, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanLock(row rowScanner) (model.RegisterLock, error) {
    var l model.RegisterLock
    err := row.Scan(&l.RegisterID, &l.EmployeeID, &l.EmployeeName, &l.LockedAt, &l.ExpiresAt)
    return l, err
}
