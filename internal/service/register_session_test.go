package service

import (
    "context"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/dmarquez/venue-pos/internal/model"
    "github.com/dmarquez/venue-pos/internal/repository"
)

func newSessionManager(t *testing.T, tolerance int64) (*SessionManager, *memSessions, *memShifts, *memAudit) {
    t.Helper()
    sessions := newMemSessions()
    shifts := newMemShifts()
    audit := &memAudit{}
    registers := &memRegisters{ids: map[string]bool{"caja-1": true, "caja-2": true}}
    return NewSessionManager(sessions, shifts, registers, NewAuditRecorder(audit), tolerance), sessions, shifts, audit
}

func TestSessionOpenRequiresShift(t *testing.T) {
    m, _, _, _ := newSessionManager(t, 1000)
    _, _, err := m.Open(context.Background(), alice, "caja-1", nil)
    assert.ErrorIs(t, err, repository.ErrPrecondition)
}

func TestSessionOpenAndIdempotentRetry(t *testing.T) {
    m, _, _, audit := newSessionManager(t, 1000)
    ctx := context.Background()

    _, err := m.OpenShift(ctx, boss, "2026-09-01")
    require.NoError(t, err)

    float := int64(5000)
    session, reused, err := m.Open(ctx, alice, "caja-1", &float)
    require.NoError(t, err)
    assert.False(t, reused)
    assert.Equal(t, model.SessionOpen, session.Status)

    // Same cashier retrying within the minute gets the same session back.
    again, reused, err := m.Open(ctx, alice, "caja-1", &float)
    require.NoError(t, err)
    assert.True(t, reused)
    assert.Equal(t, session.ID, again.ID)
    assert.Len(t, audit.byType(model.EventSessionOpened), 1)

    // A different cashier opening the same register conflicts.
    _, _, err = m.Open(ctx, bob, "caja-1", nil)
    assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestSessionCanSell(t *testing.T) {
    m, _, _, _ := newSessionManager(t, 1000)
    ctx := context.Background()

    ok, reason, err := m.CanSell(ctx, "caja-1")
    require.NoError(t, err)
    assert.False(t, ok)
    assert.Equal(t, "no shift is open", reason)

    _, err = m.OpenShift(ctx, boss, "2026-09-01")
    require.NoError(t, err)

    ok, reason, err = m.CanSell(ctx, "caja-1")
    require.NoError(t, err)
    assert.False(t, ok)
    assert.Equal(t, "register has no open session", reason)

    session, _, err := m.Open(ctx, alice, "caja-1", nil)
    require.NoError(t, err)

    ok, _, err = m.CanSell(ctx, "caja-1")
    require.NoError(t, err)
    assert.True(t, ok)

    require.NoError(t, m.StartClose(ctx, alice, session.ID))
    ok, _, err = m.CanSell(ctx, "caja-1")
    require.NoError(t, err)
    assert.False(t, ok)
}

func TestSessionStartCloseOwnership(t *testing.T) {
    m, _, _, _ := newSessionManager(t, 1000)
    ctx := context.Background()

    _, err := m.OpenShift(ctx, boss, "2026-09-01")
    require.NoError(t, err)
    session, _, err := m.Open(ctx, alice, "caja-1", nil)
    require.NoError(t, err)

    // Bob cannot close Alice's session, an admin can.
    err = m.StartClose(ctx, bob, session.ID)
    assert.ErrorIs(t, err, repository.ErrConflict)
    assert.NoError(t, m.StartClose(ctx, boss, session.ID))

    // A second start-close is a precondition failure, not a lost update.
    err = m.StartClose(ctx, boss, session.ID)
    assert.ErrorIs(t, err, repository.ErrPrecondition)
}

func TestSessionBlindCloseRedactsForCashier(t *testing.T) {
    m, sessions, _, _ := newSessionManager(t, 1000)
    ctx := context.Background()

    _, err := m.OpenShift(ctx, boss, "2026-09-01")
    require.NoError(t, err)
    session, _, err := m.Open(ctx, alice, "caja-1", nil)
    require.NoError(t, err)

    sessions.expected = model.MethodTotals{CashCents: 10_000, DebitCents: 4_000}
    sessions.tickets = 7

    declared := model.MethodTotals{CashCents: 9_900, DebitCents: 4_000}
    result, err := m.Close(ctx, alice, session.ID, declared, nil, nil)
    require.NoError(t, err)

    // 100 cents under, within the 1000-cent tolerance.
    assert.False(t, result.NeedsReview)
    assert.False(t, result.Disclosed)
    assert.Nil(t, result.Session.Expected, "cashier must not see expected totals")
    assert.Nil(t, result.Session.Variance)
    assert.Nil(t, result.Session.VarianceTotal)
    assert.NotNil(t, result.Session.Declared)

    // The stored session keeps the full figures for the admin surface.
    stored, err := sessions.GetByID(ctx, session.ID)
    require.NoError(t, err)
    require.NotNil(t, stored.Expected)
    assert.Equal(t, int64(10_000), stored.Expected.CashCents)
    require.NotNil(t, stored.VarianceTotal)
    assert.Equal(t, int64(-100), *stored.VarianceTotal)
}

func TestSessionCloseFlagsLargeVariance(t *testing.T) {
    m, sessions, _, audit := newSessionManager(t, 1000)
    ctx := context.Background()

    _, err := m.OpenShift(ctx, boss, "2026-09-01")
    require.NoError(t, err)
    session, _, err := m.Open(ctx, alice, "caja-1", nil)
    require.NoError(t, err)

    sessions.expected = model.MethodTotals{CashCents: 20_000}

    declared := model.MethodTotals{CashCents: 15_000}
    result, err := m.Close(ctx, boss, session.ID, declared, nil, nil)
    require.NoError(t, err)

    assert.True(t, result.NeedsReview)
    assert.True(t, result.Disclosed)
    require.NotNil(t, result.Session.VarianceTotal)
    assert.Equal(t, int64(-5_000), *result.Session.VarianceTotal)

    closes := audit.byType(model.EventSessionClosed)
    require.Len(t, closes, 1)
    assert.Equal(t, model.SeverityWarning, closes[0].Severity)

    flagged, err := m.ListCloses(ctx, true, 50)
    require.NoError(t, err)
    require.Len(t, flagged, 1)
    assert.Equal(t, session.ID, flagged[0].ID)
}

func TestSessionCloseIncludesOpeningFloat(t *testing.T) {
    m, sessions, _, _ := newSessionManager(t, 0)
    ctx := context.Background()

    _, err := m.OpenShift(ctx, boss, "2026-09-01")
    require.NoError(t, err)
    float := int64(5_000)
    session, _, err := m.Open(ctx, alice, "caja-1", &float)
    require.NoError(t, err)

    sessions.expected = model.MethodTotals{CashCents: 10_000}

    // Declared cash covers sales plus the float; variance is zero.
    declared := model.MethodTotals{CashCents: 15_000}
    result, err := m.Close(ctx, boss, session.ID, declared, nil, nil)
    require.NoError(t, err)
    assert.False(t, result.NeedsReview)
    assert.Equal(t, int64(0), *result.Session.VarianceTotal)
}

func TestSessionCloseIsFinal(t *testing.T) {
    m, _, _, _ := newSessionManager(t, 1000)
    ctx := context.Background()

    _, err := m.OpenShift(ctx, boss, "2026-09-01")
    require.NoError(t, err)
    session, _, err := m.Open(ctx, alice, "caja-1", nil)
    require.NoError(t, err)

    _, err = m.Close(ctx, boss, session.ID, model.MethodTotals{}, nil, nil)
    require.NoError(t, err)

    _, err = m.Close(ctx, boss, session.ID, model.MethodTotals{}, nil, nil)
    assert.ErrorIs(t, err, repository.ErrPrecondition)
}

func TestSessionResolve(t *testing.T) {
    m, sessions, _, _ := newSessionManager(t, 0)
    ctx := context.Background()

    _, err := m.OpenShift(ctx, boss, "2026-09-01")
    require.NoError(t, err)
    session, _, err := m.Open(ctx, alice, "caja-1", nil)
    require.NoError(t, err)

    // Resolving an open session is rejected.
    err = m.Resolve(ctx, boss, session.ID, nil)
    assert.ErrorIs(t, err, repository.ErrPrecondition)

    sessions.expected = model.MethodTotals{CashCents: 1_000}
    _, err = m.Close(ctx, boss, session.ID, model.MethodTotals{}, nil, nil)
    require.NoError(t, err)

    notes := "drawer miscount, retrained"
    require.NoError(t, m.Resolve(ctx, boss, session.ID, &notes))

    // Resolution happens once.
    err = m.Resolve(ctx, boss, session.ID, &notes)
    assert.ErrorIs(t, err, repository.ErrPrecondition)
}

func TestShiftLifecycle(t *testing.T) {
    m, _, _, _ := newSessionManager(t, 1000)
    ctx := context.Background()

    shift, err := m.OpenShift(ctx, boss, "2026-09-01")
    require.NoError(t, err)

    // Only one open shift at a time.
    _, err = m.OpenShift(ctx, boss, "2026-09-01")
    assert.ErrorIs(t, err, repository.ErrConflict)

    closed, err := m.CloseShift(ctx, boss, shift.ID)
    require.NoError(t, err)
    assert.Equal(t, model.ShiftClosed, closed.Status)

    cur, err := m.CurrentShift(ctx)
    require.NoError(t, err)
    assert.Nil(t, cur)
}
