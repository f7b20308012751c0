package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/dmarquez/venue-pos/internal/model"
)

// EmployeeRepo provides data access to the employees table.
type EmployeeRepo struct {
    db *sql.DB
}

// NewEmployeeRepo returns a new EmployeeRepo bound to the provided database.
func NewEmployeeRepo(db *sql.DB) *EmployeeRepo { return &EmployeeRepo{db: db} }

// GetByID returns an active employee or ErrNotFound.
func (r *EmployeeRepo) GetByID(ctx context.Context, id string) (*model.Employee, error) {
    var e model.Employee
    err := r.db.QueryRowContext(ctx,
        `SELECT id, name, pin_hash, role, is_active, created_at
           FROM employees WHERE id = ? AND is_active = 1`, id).
        Scan(&e.ID, &e.Name, &e.PINHash, &e.Role, &e.IsActive, &e.CreatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, withReason(ErrNotFound, "employee %s not found", id)
    }
    if err != nil {
        return nil, err
    }
    return &e, nil
}
