package model

import "time"

// Register is a physical or logical point of sale. Registers are provisioned
// out of band (seed data or the venue admin tooling); the core only validates
// that a register exists and is active before any lock, session or intent
// references it.
type Register struct {
    ID        string    // registers.id
    Name      string    // registers.name
    IsActive  bool      // registers.is_active
    CreatedAt time.Time // registers.created_at
}
