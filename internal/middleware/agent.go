package middleware

import (
    "crypto/subtle"
    "net/http"

    "github.com/labstack/echo/v4"
)

// Header names the terminal agents authenticate with. Agents are machines on
// the venue LAN, not employees, so they carry a shared key instead of a JWT.
const (
    HeaderAgentKey = "X-Agent-Key"
    HeaderAgentID  = "X-Agent-ID"
)

// agentIDKey is the context key the agent's self-reported id is stored under.
const agentIDKey = "agent_id"

// AgentAuth returns a middleware that guards the agent routes with a shared
// key, compared in constant time. The agent must also identify itself via
// X-Agent-ID; the id is recorded on claims and results for traceability.
func AgentAuth(key string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            got := c.Request().Header.Get(HeaderAgentKey)
            if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid agent key"})
            }
            agentID := c.Request().Header.Get(HeaderAgentID)
            if agentID == "" {
                return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing " + HeaderAgentID + " header"})
            }
            c.Set(agentIDKey, agentID)
            return next(c)
        }
    }
}

// CurrentAgentID returns the agent id stored by AgentAuth.
func CurrentAgentID(c echo.Context) string {
    if s, ok := c.Get(agentIDKey).(string); ok {
        return s
    }
    return ""
}
