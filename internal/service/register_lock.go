package service

import (
    "context"
    "fmt"
    "time"

    "github.com/dmarquez/venue-pos/internal/model"
    "github.com/dmarquez/venue-pos/internal/repository"
)

type lockStore interface {
    Acquire(ctx context.Context, registerID, employeeID, employeeName string, ttl time.Duration) (bool, *model.RegisterLock, error)
    Get(ctx context.Context, registerID string) (*model.RegisterLock, error)
    Release(ctx context.Context, registerID string) (bool, error)
    ReleaseOthersForEmployee(ctx context.Context, employeeID, keep string) ([]string, error)
    ListForEmployee(ctx context.Context, employeeID string) ([]model.RegisterLock, error)
    ListAll(ctx context.Context) ([]model.RegisterLock, error)
    ReleaseAll(ctx context.Context) (int64, error)
}

type registerStore interface {
    GetByID(ctx context.Context, id string) (*model.Register, error)
}

// LockManager enforces exclusive register occupancy: one cashier per register
// and one register per cashier. Locks expire after a TTL so a tablet that
// dies mid-shift does not strand its register; any activity that re-claims
// refreshes the expiry.
type LockManager struct {
    locks     lockStore
    registers registerStore
    audit     *AuditRecorder
    ttl       time.Duration
}

// NewLockManager returns a LockManager with the given lock TTL.
func NewLockManager(locks lockStore, registers registerStore, audit *AuditRecorder, ttl time.Duration) *LockManager {
    return &LockManager{locks: locks, registers: registers, audit: audit, ttl: ttl}
}

// Claim takes (or refreshes) the lock on a register for the actor. Any other
// lock the actor holds is released first, so a cashier moving stations never
// occupies two registers. A register held live by someone else fails with
// ErrConflict naming the holder.
func (m *LockManager) Claim(ctx context.Context, actor model.Actor, registerID string) (*model.RegisterLock, error) {
    if _, err := m.registers.GetByID(ctx, registerID); err != nil {
        return nil, err
    }

    released, err := m.locks.ReleaseOthersForEmployee(ctx, actor.ID, registerID)
    if err != nil {
        return nil, err
    }
    for _, id := range released {
        m.audit.Info(ctx, model.EventRegisterReleased, actor,
            model.AuditRefs{RegisterID: id}, map[string]string{"reason": "moved to " + registerID})
    }

    ok, lock, err := m.locks.Acquire(ctx, registerID, actor.ID, actor.Name, m.ttl)
    if err != nil {
        return nil, err
    }
    if !ok {
        holder := "another cashier"
        if lock != nil {
            holder = lock.EmployeeName
        }
        return nil, fmt.Errorf("register %s is in use by %s: %w", registerID, holder, repository.ErrConflict)
    }
    m.audit.Info(ctx, model.EventRegisterLocked, actor,
        model.AuditRefs{RegisterID: registerID}, map[string]any{"expires_at": lock.ExpiresAt})
    return lock, nil
}

// Release gives up the actor's lock on a register. Releasing a register the
// actor does not hold is a conflict unless the actor is an admin; releasing a
// free register is a no-op.
func (m *LockManager) Release(ctx context.Context, actor model.Actor, registerID string) error {
    lock, err := m.locks.Get(ctx, registerID)
    if err != nil {
        return err
    }
    if lock == nil {
        return nil
    }
    if lock.EmployeeID != actor.ID && !actor.IsAdmin() {
        return fmt.Errorf("register %s is locked by %s: %w", registerID, lock.EmployeeName, repository.ErrConflict)
    }
    if _, err := m.locks.Release(ctx, registerID); err != nil {
        return err
    }
    m.audit.Info(ctx, model.EventRegisterReleased, actor, model.AuditRefs{RegisterID: registerID}, nil)
    return nil
}

// Status returns the live lock on a register, or nil when it is free.
func (m *LockManager) Status(ctx context.Context, registerID string) (*model.RegisterLock, error) {
    if _, err := m.registers.GetByID(ctx, registerID); err != nil {
        return nil, err
    }
    return m.locks.Get(ctx, registerID)
}

// ListForActor returns the actor's live locks.
func (m *LockManager) ListForActor(ctx context.Context, actor model.Actor) ([]model.RegisterLock, error) {
    return m.locks.ListForEmployee(ctx, actor.ID)
}

// ListAll returns every live lock, for the admin dashboard.
func (m *LockManager) ListAll(ctx context.Context) ([]model.RegisterLock, error) {
    return m.locks.ListAll(ctx)
}

// ForceRelease removes the lock on a register regardless of holder. Admin
// only; the forced release is audited at warning severity with the evicted
// holder in the payload.
func (m *LockManager) ForceRelease(ctx context.Context, actor model.Actor, registerID string) error {
    lock, err := m.locks.Get(ctx, registerID)
    if err != nil {
        return err
    }
    if lock == nil {
        return nil
    }
    if _, err := m.locks.Release(ctx, registerID); err != nil {
        return err
    }
    m.audit.Warn(ctx, model.EventRegisterForceRelease, actor,
        model.AuditRefs{RegisterID: registerID},
        map[string]string{"evicted_id": lock.EmployeeID, "evicted_name": lock.EmployeeName})
    return nil
}

// ReleaseAll removes every lock, for the admin end-of-night reset. Returns
// the number of locks removed.
func (m *LockManager) ReleaseAll(ctx context.Context, actor model.Actor) (int64, error) {
    n, err := m.locks.ReleaseAll(ctx)
    if err != nil {
        return 0, err
    }
    if n > 0 {
        m.audit.Warn(ctx, model.EventRegisterForceRelease, actor,
            model.AuditRefs{}, map[string]int64{"released": n})
    }
    return n, nil
}
