package handler

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/dmarquez/venue-pos/internal/middleware"
    "github.com/dmarquez/venue-pos/internal/model"
    "github.com/dmarquez/venue-pos/internal/repository"
    "github.com/dmarquez/venue-pos/internal/service"
)

// AgentHandler serves the terminal agents: short-poll claiming of payment
// intents, result reporting and heartbeats. Agents authenticate with the
// shared key middleware, not JWTs.
type AgentHandler struct {
    Orchestrator *service.Orchestrator
}

// NewAgentHandler returns an AgentHandler.
func NewAgentHandler(o *service.Orchestrator) *AgentHandler {
    return &AgentHandler{Orchestrator: o}
}

// ClaimIntent handles POST /v1/agent/intents/claim. An empty queue is a 204,
// which the agent treats as "poll again later"; a claimed intent comes back
// with the full cart snapshot for the terminal display.
func (h *AgentHandler) ClaimIntent(c echo.Context) error {
    var body struct {
        RegisterID string `json:"register_id"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if strings.TrimSpace(body.RegisterID) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "register_id is required"})
    }

    intent, err := h.Orchestrator.ClaimNext(c.Request().Context(), middleware.CurrentAgentID(c), body.RegisterID)
    if err != nil {
        return fail(c, err)
    }
    if intent == nil {
        return c.NoContent(http.StatusNoContent)
    }
    return c.JSON(http.StatusOK, intentForAgentJSON(intent))
}

// ReportResult handles POST /v1/agent/intents/:id/result. Only the claiming
// agent may report, and only once; a late result after a cashier cancel gets
// a 409 carrying the status that won.
func (h *AgentHandler) ReportResult(c echo.Context) error {
    var body struct {
        Status       string  `json:"status"`
        ProviderRef  *string `json:"provider_ref"`
        AuthCode     *string `json:"auth_code"`
        ErrorCode    *string `json:"error_code"`
        ErrorMessage *string `json:"error_message"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    result := model.IntentStatus(strings.ToUpper(strings.TrimSpace(body.Status)))
    if !result.ResultStatus() {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be APPROVED, DECLINED or ERROR"})
    }

    intent, err := h.Orchestrator.ReportResult(c.Request().Context(),
        middleware.CurrentAgentID(c), c.Param("id"), result, repository.ResultFields{
            ProviderRef:  body.ProviderRef,
            AuthCode:     body.AuthCode,
            ErrorCode:    body.ErrorCode,
            ErrorMessage: body.ErrorMessage,
        })
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, intentJSON(intent))
}

// Heartbeat handles POST /v1/agent/heartbeat. Pure telemetry; the response
// is a bare 204 and a lost heartbeat never affects payments.
func (h *AgentHandler) Heartbeat(c echo.Context) error {
    var body struct {
        RegisterID   string `json:"register_id"`
        Connectivity string `json:"connectivity"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if strings.TrimSpace(body.RegisterID) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "register_id is required"})
    }
    if body.Connectivity == "" {
        body.Connectivity = "ok"
    }
    if err := h.Orchestrator.Heartbeat(c.Request().Context(),
        middleware.CurrentAgentID(c), body.RegisterID, body.Connectivity); err != nil {
        return fail(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}
