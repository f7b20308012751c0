package service

import (
    "fmt"

    "github.com/dmarquez/venue-pos/internal/model"
    "github.com/dmarquez/venue-pos/internal/repository"
)

// Services return the repository sentinels (ErrConflict, ErrPrecondition,
// ErrNotFound, ErrValidation) wrapped with operation-specific reasons; the
// handlers map the sentinel to an HTTP status and surface the reason.

func errNoOpenShift() error {
    return fmt.Errorf("no shift is open: %w", repository.ErrPrecondition)
}

// requireSessionActor restricts a session mutation to the cashier who opened
// it, or an admin closing on their behalf.
func requireSessionActor(session *model.RegisterSession, actor model.Actor) error {
    if session.OpenedByID == actor.ID || actor.IsAdmin() {
        return nil
    }
    return fmt.Errorf("session %d belongs to %s: %w",
        session.ID, session.OpenedByName, repository.ErrConflict)
}
