package handler

import (
    "context"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/dmarquez/venue-pos/internal/middleware"
    "github.com/dmarquez/venue-pos/internal/model"
    "github.com/dmarquez/venue-pos/internal/queue"
    "github.com/dmarquez/venue-pos/internal/service"
)

// PaymentHandler serves the cashier-facing payment flow: card intents and
// cash sales.
type PaymentHandler struct {
    Orchestrator *service.Orchestrator
}

// NewPaymentHandler returns a PaymentHandler.
func NewPaymentHandler(o *service.Orchestrator) *PaymentHandler {
    return &PaymentHandler{Orchestrator: o}
}

// CreateIntent handles POST /v1/payment-intents. A double-submitted cart
// comes back as the existing in-flight intent with 200 instead of 201.
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
    var body struct {
        RegisterID  string           `json:"register_id"`
        SessionID   uint64           `json:"session_id"`
        AmountCents int64            `json:"amount_cents"`
        Currency    string           `json:"currency"`
        Provider    string           `json:"provider"`
        Items       []model.CartItem `json:"items"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if strings.TrimSpace(body.RegisterID) == "" || body.SessionID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "register_id and session_id are required"})
    }
    if body.AmountCents <= 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount_cents must be positive"})
    }
    if body.Currency == "" {
        body.Currency = "EUR"
    }
    if body.Provider == "" {
        body.Provider = "terminal"
    }

    actor := middleware.CurrentActor(c)
    intent, reused, err := h.Orchestrator.CreateIntent(c.Request().Context(), actor, service.CreateIntentInput{
        RegisterID:  body.RegisterID,
        SessionID:   body.SessionID,
        AmountCents: body.AmountCents,
        Currency:    body.Currency,
        Provider:    body.Provider,
        Items:       body.Items,
    })
    if err != nil {
        return fail(c, err)
    }
    status := http.StatusCreated
    if reused {
        status = http.StatusOK
    }
    return c.JSON(status, intentJSON(intent))
}

// GetIntent handles GET /v1/payment-intents/:id. Tablets poll this while the
// customer taps their card.
func (h *PaymentHandler) GetIntent(c echo.Context) error {
    intent, err := h.Orchestrator.Get(c.Request().Context(), c.Param("id"))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, intentJSON(intent))
}

// CancelIntent handles POST /v1/payment-intents/:id/cancel. A cancel racing
// the agent's result loses cleanly: the settled status comes back in a 409.
func (h *PaymentHandler) CancelIntent(c echo.Context) error {
    actor := middleware.CurrentActor(c)
    intent, err := h.Orchestrator.Cancel(c.Request().Context(), actor, c.Param("id"))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, intentJSON(intent))
}

// ConfirmSale handles POST /v1/payment-intents/:id/sale, turning an approved
// intent into its sale. Retries return the already-created sale with 200.
func (h *PaymentHandler) ConfirmSale(c echo.Context) error {
    var body struct {
        PaymentType string `json:"payment_type"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.PaymentType == "" {
        body.PaymentType = model.PaymentCredit
    }

    actor := middleware.CurrentActor(c)
    sale, reused, err := h.Orchestrator.ConfirmSale(c.Request().Context(), actor, c.Param("id"), body.PaymentType)
    if err != nil {
        return fail(c, err)
    }
    status := http.StatusCreated
    if reused {
        status = http.StatusOK
    } else {
        publishSale(sale)
    }
    return c.JSON(status, saleJSON(sale))
}

// RecordCashSale handles POST /v1/sales. Cash needs no terminal round-trip;
// the sale is recorded directly against the register's open session.
func (h *PaymentHandler) RecordCashSale(c echo.Context) error {
    var body struct {
        RegisterID string           `json:"register_id"`
        TotalCents int64            `json:"total_cents"`
        Items      []model.CartItem `json:"items"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if strings.TrimSpace(body.RegisterID) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "register_id is required"})
    }

    actor := middleware.CurrentActor(c)
    sale, reused, err := h.Orchestrator.RecordCashSale(c.Request().Context(), actor, service.CashSaleInput{
        RegisterID: body.RegisterID,
        TotalCents: body.TotalCents,
        Items:      body.Items,
    })
    if err != nil {
        return fail(c, err)
    }
    status := http.StatusCreated
    if reused {
        status = http.StatusOK
    } else {
        publishSale(sale)
    }
    return c.JSON(status, saleJSON(sale))
}

// publishSale emits the sale.recorded event in the background. The sale is
// already committed; the broker round-trip must not hold up the response and
// a failed publish is only logged inside the publisher.
func publishSale(sale *model.Sale) {
    ev := queue.SaleRecordedEvent{
        SaleID:       sale.ID,
        RegisterID:   sale.RegisterID,
        SessionID:    sale.SessionID,
        ShiftID:      sale.ShiftID,
        EmployeeID:   sale.EmployeeID,
        EmployeeName: sale.EmployeeName,
        PaymentType:  sale.PaymentType,
        TotalCents:   sale.TotalCents,
        RecordedAt:   sale.CreatedAt.UTC().Format(time.RFC3339),
    }
    if sale.IntentID != nil {
        ev.IntentID = *sale.IntentID
    }
    go func() {
        ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer cancel()
        _ = queue.PublishSaleRecorded(ctx, ev)
    }()
}
