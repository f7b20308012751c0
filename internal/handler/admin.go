package handler

import (
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/dmarquez/venue-pos/internal/middleware"
    "github.com/dmarquez/venue-pos/internal/repository"
    "github.com/dmarquez/venue-pos/internal/service"
)

// AdminHandler serves the back-office surface: shift control, the lock
// dashboard, reconciliation review and agent health. Every route is behind
// the ADMIN role guard.
type AdminHandler struct {
    Locks          *service.LockManager
    Sessions       *service.SessionManager
    Orchestrator   *service.Orchestrator
    Audit          *repository.AuditLogRepo
    HeartbeatFresh time.Duration
}

// NewAdminHandler returns an AdminHandler.
func NewAdminHandler(locks *service.LockManager, sessions *service.SessionManager, o *service.Orchestrator, audit *repository.AuditLogRepo, heartbeatFresh time.Duration) *AdminHandler {
    return &AdminHandler{
        Locks:          locks,
        Sessions:       sessions,
        Orchestrator:   o,
        Audit:          audit,
        HeartbeatFresh: heartbeatFresh,
    }
}

// OpenShift handles POST /v1/admin/shifts.
func (h *AdminHandler) OpenShift(c echo.Context) error {
    var body struct {
        BusinessDate string `json:"business_date"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if _, err := time.Parse("2006-01-02", body.BusinessDate); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "business_date must be YYYY-MM-DD"})
    }
    shift, err := h.Sessions.OpenShift(c.Request().Context(), middleware.CurrentActor(c), body.BusinessDate)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusCreated, shiftJSON(shift))
}

// CurrentShift handles GET /v1/admin/shifts/current.
func (h *AdminHandler) CurrentShift(c echo.Context) error {
    shift, err := h.Sessions.CurrentShift(c.Request().Context())
    if err != nil {
        return fail(c, err)
    }
    if shift == nil {
        return c.JSON(http.StatusOK, echo.Map{"open": false})
    }
    return c.JSON(http.StatusOK, echo.Map{"open": true, "shift": shiftJSON(shift)})
}

// CloseShift handles POST /v1/admin/shifts/:id/close.
func (h *AdminHandler) CloseShift(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid shift id"})
    }
    shift, err := h.Sessions.CloseShift(c.Request().Context(), middleware.CurrentActor(c), id)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, shiftJSON(shift))
}

// ListLocks handles GET /v1/admin/locks.
func (h *AdminHandler) ListLocks(c echo.Context) error {
    locks, err := h.Locks.ListAll(c.Request().Context())
    if err != nil {
        return fail(c, err)
    }
    out := make([]echo.Map, 0, len(locks))
    for i := range locks {
        out = append(out, lockJSON(&locks[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"locks": out})
}

// ForceRelease handles DELETE /v1/admin/registers/:id/lock, evicting whoever
// holds the register.
func (h *AdminHandler) ForceRelease(c echo.Context) error {
    if err := h.Locks.ForceRelease(c.Request().Context(), middleware.CurrentActor(c), c.Param("id")); err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"released": true})
}

// ReleaseAllLocks handles DELETE /v1/admin/locks, the end-of-night reset.
func (h *AdminHandler) ReleaseAllLocks(c echo.Context) error {
    n, err := h.Locks.ReleaseAll(c.Request().Context(), middleware.CurrentActor(c))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"released": n})
}

// ListCloses handles GET /v1/admin/closes?needs_review=1&limit=50. Admin
// responses carry the full reconciliation detail.
func (h *AdminHandler) ListCloses(c echo.Context) error {
    onlyReview := c.QueryParam("needs_review") == "1" || c.QueryParam("needs_review") == "true"
    limit, _ := strconv.Atoi(c.QueryParam("limit"))
    sessions, err := h.Sessions.ListCloses(c.Request().Context(), onlyReview, limit)
    if err != nil {
        return fail(c, err)
    }
    out := make([]echo.Map, 0, len(sessions))
    for i := range sessions {
        out = append(out, sessionJSON(&sessions[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"closes": out})
}

// ResolveClose handles POST /v1/admin/sessions/:id/resolve, recording the
// review decision on a flagged close.
func (h *AdminHandler) ResolveClose(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
    }
    var body struct {
        Notes *string `json:"notes"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if err := h.Sessions.Resolve(c.Request().Context(), middleware.CurrentActor(c), id, body.Notes); err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"resolved": true})
}

// ListSessionIntents handles GET /v1/admin/sessions/:id/intents, showing what
// a register was doing before a flagged close.
func (h *AdminHandler) ListSessionIntents(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
    }
    intents, err := h.Orchestrator.ListBySession(c.Request().Context(), id)
    if err != nil {
        return fail(c, err)
    }
    out := make([]echo.Map, 0, len(intents))
    for i := range intents {
        out = append(out, intentJSON(&intents[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"intents": out})
}

// ListAgents handles GET /v1/admin/agents. Online/offline is derived from
// heartbeat freshness at read time.
func (h *AdminHandler) ListAgents(c echo.Context) error {
    agents, err := h.Orchestrator.ListAgents(c.Request().Context())
    if err != nil {
        return fail(c, err)
    }
    now := time.Now().UTC()
    out := make([]echo.Map, 0, len(agents))
    for _, hb := range agents {
        out = append(out, heartbeatJSON(hb, now, h.HeartbeatFresh))
    }
    return c.JSON(http.StatusOK, echo.Map{"agents": out})
}

// ListAudit handles GET /v1/admin/audit?event_type=&limit=.
func (h *AdminHandler) ListAudit(c echo.Context) error {
    limit, _ := strconv.Atoi(c.QueryParam("limit"))
    entries, err := h.Audit.ListRecent(c.Request().Context(), c.QueryParam("event_type"), limit)
    if err != nil {
        return fail(c, err)
    }
    out := make([]echo.Map, 0, len(entries))
    for _, e := range entries {
        m := echo.Map{
            "id":         e.ID,
            "event_type": e.EventType,
            "severity":   e.Severity,
            "actor_id":   e.ActorID,
            "actor_name": e.ActorName,
            "created_at": e.CreatedAt,
        }
        if e.RegisterID != nil {
            m["register_id"] = *e.RegisterID
        }
        if e.SessionID != nil {
            m["session_id"] = *e.SessionID
        }
        if e.IntentID != nil {
            m["intent_id"] = *e.IntentID
        }
        if e.ShiftID != nil {
            m["shift_id"] = *e.ShiftID
        }
        if e.PayloadJSON != nil {
            m["payload"] = *e.PayloadJSON
        }
        out = append(out, m)
    }
    return c.JSON(http.StatusOK, echo.Map{"entries": out})
}
