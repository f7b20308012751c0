package handler

import (
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/dmarquez/venue-pos/internal/middleware"
    "github.com/dmarquez/venue-pos/internal/model"
    "github.com/dmarquez/venue-pos/internal/service"
)

// RegisterHandler serves the cashier-facing register flow: claiming a
// station, opening a session, and the close sequence.
type RegisterHandler struct {
    Locks    *service.LockManager
    Sessions *service.SessionManager
}

// NewRegisterHandler returns a RegisterHandler.
func NewRegisterHandler(locks *service.LockManager, sessions *service.SessionManager) *RegisterHandler {
    return &RegisterHandler{Locks: locks, Sessions: sessions}
}

// Claim handles POST /v1/registers/:id/claim. Claiming releases any other
// register the cashier holds and refreshes the lock TTL on repeat claims.
func (h *RegisterHandler) Claim(c echo.Context) error {
    actor := middleware.CurrentActor(c)
    lock, err := h.Locks.Claim(c.Request().Context(), actor, c.Param("id"))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, lockJSON(lock))
}

// Release handles DELETE /v1/registers/:id/claim.
func (h *RegisterHandler) Release(c echo.Context) error {
    actor := middleware.CurrentActor(c)
    if err := h.Locks.Release(c.Request().Context(), actor, c.Param("id")); err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"released": true})
}

// LockStatus handles GET /v1/registers/:id/lock.
func (h *RegisterHandler) LockStatus(c echo.Context) error {
    lock, err := h.Locks.Status(c.Request().Context(), c.Param("id"))
    if err != nil {
        return fail(c, err)
    }
    if lock == nil {
        return c.JSON(http.StatusOK, echo.Map{"locked": false})
    }
    return c.JSON(http.StatusOK, echo.Map{"locked": true, "lock": lockJSON(lock)})
}

// CanSell handles GET /v1/registers/:id/can-sell. The tablet polls this to
// decide whether to enable the sale buttons.
func (h *RegisterHandler) CanSell(c echo.Context) error {
    ok, reason, err := h.Sessions.CanSell(c.Request().Context(), c.Param("id"))
    if err != nil {
        return fail(c, err)
    }
    resp := echo.Map{"can_sell": ok}
    if !ok {
        resp["reason"] = reason
    }
    return c.JSON(http.StatusOK, resp)
}

// OpenSession handles POST /v1/registers/:id/sessions. A retried open inside
// the same minute returns the existing session with 200 instead of 201.
func (h *RegisterHandler) OpenSession(c echo.Context) error {
    var body struct {
        OpeningCashCents *int64 `json:"opening_cash_cents"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    actor := middleware.CurrentActor(c)
    session, reused, err := h.Sessions.Open(c.Request().Context(), actor, c.Param("id"), body.OpeningCashCents)
    if err != nil {
        return fail(c, err)
    }
    status := http.StatusCreated
    if reused {
        status = http.StatusOK
    }
    return c.JSON(status, sessionJSON(session))
}

// GetSession handles GET /v1/sessions/:id.
func (h *RegisterHandler) GetSession(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
    }
    session, err := h.Sessions.Get(c.Request().Context(), id)
    if err != nil {
        return fail(c, err)
    }
    actor := middleware.CurrentActor(c)
    if !actor.IsAdmin() {
        // Cashiers never see reconciliation figures, even on their own
        // closed sessions.
        redacted := *session
        redacted.Expected = nil
        redacted.Variance = nil
        redacted.VarianceTotal = nil
        session = &redacted
    }
    return c.JSON(http.StatusOK, sessionJSON(session))
}

// StartClose handles POST /v1/sessions/:id/start-close, freezing sales while
// the cashier counts the drawer.
func (h *RegisterHandler) StartClose(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
    }
    actor := middleware.CurrentActor(c)
    if err := h.Sessions.StartClose(c.Request().Context(), actor, id); err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"status": model.SessionPendingClose})
}

// CloseSession handles POST /v1/sessions/:id/close. The body carries the
// cashier's blind declaration; the response discloses reconciliation detail
// only to admins.
func (h *RegisterHandler) CloseSession(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
    }
    var body struct {
        DeclaredCashCents   int64   `json:"declared_cash_cents"`
        DeclaredDebitCents  int64   `json:"declared_debit_cents"`
        DeclaredCreditCents int64   `json:"declared_credit_cents"`
        Notes               *string `json:"notes"`
        IncidentsJSON       *string `json:"incidents_json"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.DeclaredCashCents < 0 || body.DeclaredDebitCents < 0 || body.DeclaredCreditCents < 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "declared amounts must not be negative"})
    }

    actor := middleware.CurrentActor(c)
    declared := model.MethodTotals{
        CashCents:   body.DeclaredCashCents,
        DebitCents:  body.DeclaredDebitCents,
        CreditCents: body.DeclaredCreditCents,
    }
    result, err := h.Sessions.Close(c.Request().Context(), actor, id, declared, body.Notes, body.IncidentsJSON)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "session":      sessionJSON(result.Session),
        "needs_review": result.NeedsReview,
    })
}
