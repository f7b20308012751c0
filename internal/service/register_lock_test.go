package service

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/dmarquez/venue-pos/internal/model"
    "github.com/dmarquez/venue-pos/internal/repository"
)

var (
    alice = model.Actor{ID: "emp-1", Name: "Alice", Role: model.RoleCashier}
    bob   = model.Actor{ID: "emp-2", Name: "Bob", Role: model.RoleCashier}
    boss  = model.Actor{ID: "emp-9", Name: "Boss", Role: model.RoleAdmin}
)

func newLockManager(t *testing.T) (*LockManager, *memLocks, *memAudit) {
    t.Helper()
    locks := newMemLocks()
    audit := &memAudit{}
    registers := &memRegisters{ids: map[string]bool{"caja-1": true, "caja-2": true}}
    return NewLockManager(locks, registers, NewAuditRecorder(audit), 30*time.Minute), locks, audit
}

func TestLockClaimAndConflict(t *testing.T) {
    m, _, audit := newLockManager(t)
    ctx := context.Background()

    lock, err := m.Claim(ctx, alice, "caja-1")
    require.NoError(t, err)
    assert.Equal(t, alice.ID, lock.EmployeeID)
    assert.True(t, lock.ExpiresAt.After(time.Now()))

    // Someone else cannot take a held register.
    _, err = m.Claim(ctx, bob, "caja-1")
    require.Error(t, err)
    assert.ErrorIs(t, err, repository.ErrConflict)
    assert.Contains(t, err.Error(), "Alice")

    // The holder re-claiming is an idempotent refresh, not a conflict.
    again, err := m.Claim(ctx, alice, "caja-1")
    require.NoError(t, err)
    assert.Equal(t, alice.ID, again.EmployeeID)

    assert.NotEmpty(t, audit.byType(model.EventRegisterLocked))
}

func TestLockClaimUnknownRegister(t *testing.T) {
    m, _, _ := newLockManager(t)
    _, err := m.Claim(context.Background(), alice, "caja-99")
    assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLockClaimReleasesOtherRegisters(t *testing.T) {
    m, locks, audit := newLockManager(t)
    ctx := context.Background()

    _, err := m.Claim(ctx, alice, "caja-1")
    require.NoError(t, err)
    _, err = m.Claim(ctx, alice, "caja-2")
    require.NoError(t, err)

    // Moving stations released caja-1; Bob can now claim it.
    old, err := locks.Get(ctx, "caja-1")
    require.NoError(t, err)
    assert.Nil(t, old)
    _, err = m.Claim(ctx, bob, "caja-1")
    assert.NoError(t, err)

    assert.NotEmpty(t, audit.byType(model.EventRegisterReleased))
}

func TestLockReleaseOwnership(t *testing.T) {
    m, _, _ := newLockManager(t)
    ctx := context.Background()

    _, err := m.Claim(ctx, alice, "caja-1")
    require.NoError(t, err)

    // Bob cannot release Alice's register.
    err = m.Release(ctx, bob, "caja-1")
    assert.ErrorIs(t, err, repository.ErrConflict)

    // Alice can, and a second release is a no-op.
    require.NoError(t, m.Release(ctx, alice, "caja-1"))
    require.NoError(t, m.Release(ctx, alice, "caja-1"))

    lock, err := m.Status(ctx, "caja-1")
    require.NoError(t, err)
    assert.Nil(t, lock)
}

func TestLockExpiredIsReclaimable(t *testing.T) {
    m, locks, _ := newLockManager(t)
    ctx := context.Background()

    _, err := m.Claim(ctx, alice, "caja-1")
    require.NoError(t, err)

    // Age the lock past its TTL.
    locks.mu.Lock()
    l := locks.locks["caja-1"]
    l.ExpiresAt = time.Now().UTC().Add(-time.Minute)
    locks.locks["caja-1"] = l
    locks.mu.Unlock()

    lock, err := m.Claim(ctx, bob, "caja-1")
    require.NoError(t, err)
    assert.Equal(t, bob.ID, lock.EmployeeID)
}

func TestLockForceReleaseAndReleaseAll(t *testing.T) {
    m, _, audit := newLockManager(t)
    ctx := context.Background()

    _, err := m.Claim(ctx, alice, "caja-1")
    require.NoError(t, err)
    _, err = m.Claim(ctx, bob, "caja-2")
    require.NoError(t, err)

    require.NoError(t, m.ForceRelease(ctx, boss, "caja-1"))
    lock, err := m.Status(ctx, "caja-1")
    require.NoError(t, err)
    assert.Nil(t, lock)

    forced := audit.byType(model.EventRegisterForceRelease)
    require.NotEmpty(t, forced)
    assert.Equal(t, model.SeverityWarning, forced[0].Severity)

    n, err := m.ReleaseAll(ctx, boss)
    require.NoError(t, err)
    assert.Equal(t, int64(1), n)
}
