// Package handler contains the HTTP layer: request binding, error-to-status
// mapping and response shaping. Business rules live in the service package;
// handlers never touch the database directly.
package handler

import (
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/dmarquez/venue-pos/internal/model"
    "github.com/dmarquez/venue-pos/internal/repository"
)

// fail maps the shared error taxonomy onto HTTP statuses. Unrecognized
// errors are logged and come back as an opaque 500.
func fail(c echo.Context, err error) error {
    switch {
    case errors.Is(err, repository.ErrValidation):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.Is(err, repository.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
    case errors.Is(err, repository.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    case errors.Is(err, repository.ErrPrecondition):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    }
    c.Logger().Error(err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func lockJSON(l *model.RegisterLock) echo.Map {
    return echo.Map{
        "register_id":   l.RegisterID,
        "employee_id":   l.EmployeeID,
        "employee_name": l.EmployeeName,
        "locked_at":     l.LockedAt,
        "expires_at":    l.ExpiresAt,
    }
}

func shiftJSON(s *model.Shift) echo.Map {
    return echo.Map{
        "id":            s.ID,
        "business_date": s.BusinessDate,
        "status":        s.Status,
        "opened_by":     s.OpenedBy,
        "opened_at":     s.OpenedAt,
        "closed_at":     s.ClosedAt,
    }
}

func totalsJSON(t *model.MethodTotals) echo.Map {
    if t == nil {
        return nil
    }
    return echo.Map{
        "cash_cents":   t.CashCents,
        "debit_cents":  t.DebitCents,
        "credit_cents": t.CreditCents,
    }
}

// sessionJSON shapes a session for the wire. Reconciliation fields are
// emitted only when present on the model; the session service strips them
// for cashiers, so the handler stays disclosure-agnostic.
func sessionJSON(s *model.RegisterSession) echo.Map {
    m := echo.Map{
        "id":             s.ID,
        "register_id":    s.RegisterID,
        "shift_id":       s.ShiftID,
        "opened_by_id":   s.OpenedByID,
        "opened_by_name": s.OpenedByName,
        "status":         s.Status,
        "opened_at":      s.OpenedAt,
    }
    if s.OpeningCashCents != nil {
        m["opening_cash_cents"] = *s.OpeningCashCents
    }
    if s.ClosedAt != nil {
        m["closed_at"] = *s.ClosedAt
        m["closed_by"] = s.ClosedBy
        m["needs_review"] = s.NeedsReview
    }
    if s.Declared != nil {
        m["declared"] = totalsJSON(s.Declared)
    }
    if s.Expected != nil {
        m["expected"] = totalsJSON(s.Expected)
        m["variance"] = totalsJSON(s.Variance)
        m["variance_total_cents"] = s.VarianceTotal
    }
    if s.TicketCount != nil {
        m["ticket_count"] = *s.TicketCount
    }
    if s.CloseNotes != nil {
        m["close_notes"] = *s.CloseNotes
    }
    if s.ResolvedAt != nil {
        m["resolved_by"] = s.ResolvedBy
        m["resolved_at"] = s.ResolvedAt
        m["resolution_notes"] = s.ResolutionNotes
    }
    return m
}

func intentJSON(p *model.PaymentIntent) echo.Map {
    m := echo.Map{
        "id":            p.ID,
        "register_id":   p.RegisterID,
        "session_id":    p.SessionID,
        "employee_id":   p.EmployeeID,
        "employee_name": p.EmployeeName,
        "amount_cents":  p.AmountCents,
        "currency":      p.Currency,
        "provider":      p.Provider,
        "status":        p.Status,
        "created_at":    p.CreatedAt,
        "updated_at":    p.UpdatedAt,
    }
    if p.ProviderRef != nil {
        m["provider_ref"] = *p.ProviderRef
    }
    if p.AuthCode != nil {
        m["auth_code"] = *p.AuthCode
    }
    if p.ErrorCode != nil {
        m["error_code"] = *p.ErrorCode
    }
    if p.ErrorMessage != nil {
        m["error_message"] = *p.ErrorMessage
    }
    if p.ClaimedByAgent != nil {
        m["claimed_by_agent"] = *p.ClaimedByAgent
        m["claimed_at"] = p.ClaimedAt
    }
    if p.SaleID != nil {
        m["sale_id"] = *p.SaleID
    }
    if p.ApprovedAt != nil {
        m["approved_at"] = *p.ApprovedAt
    }
    return m
}

// intentForAgentJSON is the claim payload handed to the terminal agent: the
// cart snapshot rides along so the terminal can show line items.
func intentForAgentJSON(p *model.PaymentIntent) echo.Map {
    m := intentJSON(p)
    m["cart_json"] = p.CartJSON
    return m
}

func saleJSON(s *model.Sale) echo.Map {
    m := echo.Map{
        "id":            s.ID,
        "register_id":   s.RegisterID,
        "session_id":    s.SessionID,
        "shift_id":      s.ShiftID,
        "employee_id":   s.EmployeeID,
        "employee_name": s.EmployeeName,
        "total_cents":   s.TotalCents,
        "payment_type":  s.PaymentType,
        "created_at":    s.CreatedAt,
    }
    if s.IntentID != nil {
        m["intent_id"] = *s.IntentID
    }
    if s.Provider != nil {
        m["provider"] = *s.Provider
    }
    return m
}

func heartbeatJSON(hb model.AgentHeartbeat, now time.Time, fresh time.Duration) echo.Map {
    return echo.Map{
        "register_id":  hb.RegisterID,
        "agent_name":   hb.AgentName,
        "connectivity": hb.Connectivity,
        "last_seen":    hb.LastSeen,
        "online":       hb.Online(now, fresh),
    }
}
