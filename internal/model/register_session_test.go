package model

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestSessionTransitions(t *testing.T) {
    assert.True(t, SessionOpen.CanTransition(SessionPendingClose))
    assert.True(t, SessionOpen.CanTransition(SessionClosed), "fast-path close")
    assert.True(t, SessionPendingClose.CanTransition(SessionClosed))

    assert.False(t, SessionClosed.CanTransition(SessionOpen))
    assert.False(t, SessionClosed.CanTransition(SessionPendingClose))
    assert.False(t, SessionPendingClose.CanTransition(SessionOpen))
}

func TestSessionCanSell(t *testing.T) {
    assert.True(t, RegisterSession{Status: SessionOpen}.CanSell())
    assert.False(t, RegisterSession{Status: SessionPendingClose}.CanSell())
    assert.False(t, RegisterSession{Status: SessionClosed}.CanSell())
}

func TestMethodTotals(t *testing.T) {
    declared := MethodTotals{CashCents: 2500, DebitCents: 4000, CreditCents: 0}
    expected := MethodTotals{CashCents: 3000, DebitCents: 4000, CreditCents: 0}

    v := declared.Sub(expected)
    assert.Equal(t, int64(-500), v.CashCents)
    assert.Equal(t, int64(0), v.DebitCents)
    assert.Equal(t, int64(-500), v.Sum())
}
