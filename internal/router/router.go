// Package router wires handlers, middlewares and route groups onto the Echo
// instance. Three surfaces exist: cashier routes behind JWT auth, agent
// routes behind the shared key, and admin routes behind the ADMIN role.
package router

import (
    "github.com/labstack/echo/v4"

    "github.com/dmarquez/venue-pos/internal/handler"
    "github.com/dmarquez/venue-pos/internal/middleware"
    "github.com/dmarquez/venue-pos/internal/model"
)

// Handlers bundles everything the router needs to register the full surface.
type Handlers struct {
    Auth     *handler.AuthHandler
    Register *handler.RegisterHandler
    Payment  *handler.PaymentHandler
    Agent    *handler.AgentHandler
    Admin    *handler.AdminHandler
}

// Register registers every route. jwtSecret verifies cashier/admin tokens,
// agentKey guards the agent surface, and rateLimit (which may be a
// pass-through) throttles the authenticated groups.
func Register(e *echo.Echo, h Handlers, jwtSecret, agentKey string, rateLimit echo.MiddlewareFunc) {
    e.GET("/healthz", handler.Health)

    e.POST("/v1/auth/login", h.Auth.Login)

    // Cashier surface. Admins may use it too (a manager covering a register
    // is still a cashier for these routes).
    cashier := e.Group("/v1")
    cashier.Use(middleware.JWTAuth(jwtSecret))
    cashier.Use(middleware.RequireRole(model.RoleCashier, model.RoleAdmin))
    cashier.Use(rateLimit)

    cashier.POST("/registers/:id/claim", h.Register.Claim)
    cashier.DELETE("/registers/:id/claim", h.Register.Release)
    cashier.GET("/registers/:id/lock", h.Register.LockStatus)
    cashier.GET("/registers/:id/can-sell", h.Register.CanSell)
    cashier.POST("/registers/:id/sessions", h.Register.OpenSession)
    cashier.GET("/sessions/:id", h.Register.GetSession)
    cashier.POST("/sessions/:id/start-close", h.Register.StartClose)
    cashier.POST("/sessions/:id/close", h.Register.CloseSession)

    cashier.POST("/payment-intents", h.Payment.CreateIntent)
    cashier.GET("/payment-intents/:id", h.Payment.GetIntent)
    cashier.POST("/payment-intents/:id/cancel", h.Payment.CancelIntent)
    cashier.POST("/payment-intents/:id/sale", h.Payment.ConfirmSale)
    cashier.POST("/sales", h.Payment.RecordCashSale)

    // Agent surface: payment terminal bridges on the venue LAN.
    agent := e.Group("/v1/agent")
    agent.Use(middleware.AgentAuth(agentKey))
    agent.Use(rateLimit)

    agent.POST("/intents/claim", h.Agent.ClaimIntent)
    agent.POST("/intents/:id/result", h.Agent.ReportResult)
    agent.POST("/heartbeat", h.Agent.Heartbeat)

    // Admin surface.
    admin := e.Group("/v1/admin")
    admin.Use(middleware.JWTAuth(jwtSecret))
    admin.Use(middleware.RequireRole(model.RoleAdmin))

    admin.POST("/shifts", h.Admin.OpenShift)
    admin.GET("/shifts/current", h.Admin.CurrentShift)
    admin.POST("/shifts/:id/close", h.Admin.CloseShift)
    admin.GET("/locks", h.Admin.ListLocks)
    admin.DELETE("/locks", h.Admin.ReleaseAllLocks)
    admin.DELETE("/registers/:id/lock", h.Admin.ForceRelease)
    admin.GET("/closes", h.Admin.ListCloses)
    admin.POST("/sessions/:id/resolve", h.Admin.ResolveClose)
    admin.GET("/sessions/:id/intents", h.Admin.ListSessionIntents)
    admin.GET("/agents", h.Admin.ListAgents)
    admin.GET("/audit", h.Admin.ListAudit)
}
