package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/dmarquez/venue-pos/internal/model"
)

// RegisterRepo provides data access to the registers table.
type RegisterRepo struct {
    db *sql.DB
}

// NewRegisterRepo returns a new RegisterRepo bound to the provided database.
func NewRegisterRepo(db *sql.DB) *RegisterRepo { return &RegisterRepo{db: db} }

// GetByID returns an active register or ErrNotFound.
func (r *RegisterRepo) GetByID(ctx context.Context, id string) (*model.Register, error) {
    var reg model.Register
    err := r.db.QueryRowContext(ctx,
        `SELECT id, name, is_active, created_at
           FROM registers WHERE id = ? AND is_active = 1`, id).
        Scan(&reg.ID, &reg.Name, &reg.IsActive, &reg.CreatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, withReason(ErrNotFound, "register %s not found", id)
    }
    if err != nil {
        return nil, err
    }
    return &reg, nil
}

// ListActive returns every active register ordered by id.
func (r *RegisterRepo) ListActive(ctx context.Context) ([]model.Register, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT id, name, is_active, created_at FROM registers WHERE is_active = 1 ORDER BY id`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Register
    for rows.Next() {
        var reg model.Register
        if err := rows.Scan(&reg.ID, &reg.Name, &reg.IsActive, &reg.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, reg)
    }
    return out, rows.Err()
}
