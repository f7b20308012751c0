package model

import "time"

// RegisterLock marks a register as owned by a single cashier. There is at
// most one row per register (the register id is the primary key) and a row
// past its expiry is treated as absent on the next read — expiry is lazy, no
// sweeper is required for correctness.
//
// Fields:
//
//	RegisterID   – register being held; primary key of register_locks.
//	EmployeeID   – cashier holding the register.
//	EmployeeName – display name, kept so conflict messages can say who.
//	LockedAt     – when the lock was first taken or last re-taken.
//	ExpiresAt    – inactivity deadline; refreshed on every re-acquire.
type RegisterLock struct {
    RegisterID   string    // register_locks.register_id
    EmployeeID   string    // register_locks.employee_id
    EmployeeName string    // register_locks.employee_name
    LockedAt     time.Time // register_locks.locked_at
    ExpiresAt    time.Time // register_locks.expires_at
}

// Expired reports whether the lock is past its expiry at the given instant.
func (l RegisterLock) Expired(now time.Time) bool {
    return !l.ExpiresAt.After(now)
}

// HeldBy reports whether the lock is live and owned by the given employee.
func (l RegisterLock) HeldBy(employeeID string, now time.Time) bool {
    return !l.Expired(now) && l.EmployeeID == employeeID
}
