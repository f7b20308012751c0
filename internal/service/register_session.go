package service

import (
    "context"
    "time"

    "github.com/dmarquez/venue-pos/internal/idempotency"
    "github.com/dmarquez/venue-pos/internal/model"
)

type sessionStore interface {
    Open(ctx context.Context, registerID string, shiftID uint64, employeeID, employeeName string, openingCashCents *int64, idemKey string) (*model.RegisterSession, bool, error)
    GetByID(ctx context.Context, id uint64) (*model.RegisterSession, error)
    GetOpenByRegister(ctx context.Context, registerID string, shiftID uint64) (*model.RegisterSession, error)
    StartClose(ctx context.Context, id uint64) error
    Close(ctx context.Context, id uint64, declared model.MethodTotals, closedBy string, notes, incidentsJSON *string, reviewToleranceCents int64) (*model.RegisterSession, error)
    ListClosed(ctx context.Context, onlyNeedsReview bool, limit int) ([]model.RegisterSession, error)
    Resolve(ctx context.Context, id uint64, resolvedBy string, notes *string) error
}

type shiftStore interface {
    Open(ctx context.Context, businessDate, openedBy string) (*model.Shift, error)
    GetByID(ctx context.Context, id uint64) (*model.Shift, error)
    GetOpen(ctx context.Context) (*model.Shift, error)
    Close(ctx context.Context, id uint64) (*model.Shift, error)
}

// CloseResult is what the caller gets back from closing a session. For
// cashiers Disclosed is false and the reconciliation fields on Session are
// stripped: the cashier declares counts blind and only learns whether the
// close needs review, never the expected totals they could have matched.
// Admins get the full picture.
type CloseResult struct {
    Session     *model.RegisterSession
    NeedsReview bool
    Disclosed   bool
}

// SessionManager runs the register session lifecycle: open under a shift,
// sell, then reconcile through a blind close. It also owns the shift
// open/close operations the sessions hang off.
type SessionManager struct {
    sessions          sessionStore
    shifts            shiftStore
    registers         registerStore
    audit             *AuditRecorder
    varianceTolerance int64
    now               func() time.Time
}

// NewSessionManager returns a SessionManager. varianceTolerance is the
// absolute total variance in cents above which a close is flagged for
// review.
func NewSessionManager(sessions sessionStore, shifts shiftStore, registers registerStore, audit *AuditRecorder, varianceTolerance int64) *SessionManager {
    return &SessionManager{
        sessions:          sessions,
        shifts:            shifts,
        registers:         registers,
        audit:             audit,
        varianceTolerance: varianceTolerance,
        now:               func() time.Time { return time.Now().UTC() },
    }
}

// OpenShift opens the business-day shift. Admin only (guarded at the route).
func (m *SessionManager) OpenShift(ctx context.Context, actor model.Actor, businessDate string) (*model.Shift, error) {
    shift, err := m.shifts.Open(ctx, businessDate, actor.ID)
    if err != nil {
        return nil, err
    }
    m.audit.Info(ctx, model.EventShiftOpened, actor,
        model.AuditRefs{ShiftID: shift.ID}, map[string]string{"business_date": businessDate})
    return shift, nil
}

// CloseShift closes a shift. Sessions still open under it stay open and must
// be reconciled individually; only new opens and sales are blocked.
func (m *SessionManager) CloseShift(ctx context.Context, actor model.Actor, shiftID uint64) (*model.Shift, error) {
    shift, err := m.shifts.Close(ctx, shiftID)
    if err != nil {
        return nil, err
    }
    m.audit.Info(ctx, model.EventShiftClosed, actor, model.AuditRefs{ShiftID: shiftID}, nil)
    return shift, nil
}

// CurrentShift returns the open shift, or nil when none is open.
func (m *SessionManager) CurrentShift(ctx context.Context) (*model.Shift, error) {
    return m.shifts.GetOpen(ctx)
}

// Open starts a session on a register under the current shift. The open is
// idempotent per actor+register+minute: a retried request returns the
// session created by the first one.
func (m *SessionManager) Open(ctx context.Context, actor model.Actor, registerID string, openingCashCents *int64) (*model.RegisterSession, bool, error) {
    if _, err := m.registers.GetByID(ctx, registerID); err != nil {
        return nil, false, err
    }
    shift, err := m.shifts.GetOpen(ctx)
    if err != nil {
        return nil, false, err
    }
    if shift == nil {
        return nil, false, errNoOpenShift()
    }

    key := idempotency.SessionOpenKey(registerID, shift.ID, actor.ID, m.now())
    session, reused, err := m.sessions.Open(ctx, registerID, shift.ID, actor.ID, actor.Name, openingCashCents, key)
    if err != nil {
        return nil, false, err
    }
    if !reused {
        m.audit.Info(ctx, model.EventSessionOpened, actor,
            model.AuditRefs{RegisterID: registerID, SessionID: session.ID, ShiftID: shift.ID}, nil)
    }
    return session, reused, nil
}

// Get returns a session by id.
func (m *SessionManager) Get(ctx context.Context, id uint64) (*model.RegisterSession, error) {
    return m.sessions.GetByID(ctx, id)
}

// CanSell reports whether a register can take sales right now, with a
// human-readable reason when it cannot. Selling requires an open shift and an
// OPEN session on the register.
func (m *SessionManager) CanSell(ctx context.Context, registerID string) (bool, string, error) {
    shift, err := m.shifts.GetOpen(ctx)
    if err != nil {
        return false, "", err
    }
    if shift == nil {
        return false, "no shift is open", nil
    }
    session, err := m.sessions.GetOpenByRegister(ctx, registerID, shift.ID)
    if err != nil {
        return false, "", err
    }
    if session == nil {
        return false, "register has no open session", nil
    }
    if !session.CanSell() {
        return false, "session is closing", nil
    }
    return true, "", nil
}

// StartClose moves a session to PENDING_CLOSE, stopping new sales while the
// cashier counts the drawer.
func (m *SessionManager) StartClose(ctx context.Context, actor model.Actor, sessionID uint64) error {
    session, err := m.sessions.GetByID(ctx, sessionID)
    if err != nil {
        return err
    }
    if err := requireSessionActor(session, actor); err != nil {
        return err
    }
    if err := m.sessions.StartClose(ctx, sessionID); err != nil {
        return err
    }
    m.audit.Info(ctx, model.EventSessionPendingClose, actor,
        model.AuditRefs{RegisterID: session.RegisterID, SessionID: sessionID, ShiftID: session.ShiftID}, nil)
    return nil
}

// Close finalizes a session against the cashier's blind declaration. The
// expected totals are computed inside the close transaction and compared to
// the declared counts; a total variance beyond the tolerance flags the close
// for admin review. Non-admin callers get the result with the expected and
// variance figures stripped.
func (m *SessionManager) Close(ctx context.Context, actor model.Actor, sessionID uint64, declared model.MethodTotals, notes, incidentsJSON *string) (*CloseResult, error) {
    session, err := m.sessions.GetByID(ctx, sessionID)
    if err != nil {
        return nil, err
    }
    if err := requireSessionActor(session, actor); err != nil {
        return nil, err
    }

    closed, err := m.sessions.Close(ctx, sessionID, declared, actor.Name, notes, incidentsJSON, m.varianceTolerance)
    if err != nil {
        return nil, err
    }

    refs := model.AuditRefs{RegisterID: closed.RegisterID, SessionID: sessionID, ShiftID: closed.ShiftID}
    payload := map[string]any{
        "declared": declared,
        "expected": closed.Expected,
        "variance": closed.Variance,
        "tickets":  closed.TicketCount,
    }
    if closed.NeedsReview {
        m.audit.Warn(ctx, model.EventSessionClosed, actor, refs, payload)
    } else {
        m.audit.Info(ctx, model.EventSessionClosed, actor, refs, payload)
    }

    result := &CloseResult{Session: closed, NeedsReview: closed.NeedsReview, Disclosed: actor.IsAdmin()}
    if !result.Disclosed {
        // The blind-close contract: the cashier never sees what the drawer
        // should have held.
        redacted := *closed
        redacted.Expected = nil
        redacted.Variance = nil
        redacted.VarianceTotal = nil
        result.Session = &redacted
    }
    return result, nil
}

// ListCloses returns closed sessions for the admin reconciliation view.
func (m *SessionManager) ListCloses(ctx context.Context, onlyNeedsReview bool, limit int) ([]model.RegisterSession, error) {
    return m.sessions.ListClosed(ctx, onlyNeedsReview, limit)
}

// Resolve records an admin decision on a flagged close.
func (m *SessionManager) Resolve(ctx context.Context, actor model.Actor, sessionID uint64, notes *string) error {
    if err := m.sessions.Resolve(ctx, sessionID, actor.Name, notes); err != nil {
        return err
    }
    m.audit.Info(ctx, model.EventSessionResolved, actor, model.AuditRefs{SessionID: sessionID}, nil)
    return nil
}
