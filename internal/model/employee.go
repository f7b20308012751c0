package model

import "time"

// Employee roles used in JWT claims and route guards.
const (
    RoleCashier = "CASHIER"
    RoleAdmin   = "ADMIN"
)

// Employee is a venue staff member who can log into a register. Only the
// fields the core needs are modelled; the venue's HR data lives elsewhere.
type Employee struct {
    ID        string    // employees.id
    Name      string    // employees.name
    PINHash   string    // employees.pin_hash (bcrypt)
    Role      string    // employees.role
    IsActive  bool      // employees.is_active
    CreatedAt time.Time // employees.created_at
}

// Actor identifies who performed an operation. It travels from the auth
// middleware through services into audit entries.
type Actor struct {
    ID   string
    Name string
    Role string
    IP   string
}

// IsAdmin reports whether the actor may use privileged operations.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
