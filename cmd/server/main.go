package main

import (
    "context"
    "log"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/dmarquez/venue-pos/internal/config"
    "github.com/dmarquez/venue-pos/internal/database"
    "github.com/dmarquez/venue-pos/internal/handler"
    "github.com/dmarquez/venue-pos/internal/middleware"
    "github.com/dmarquez/venue-pos/internal/queue"
    "github.com/dmarquez/venue-pos/internal/repository"
    "github.com/dmarquez/venue-pos/internal/router"
    "github.com/dmarquez/venue-pos/internal/service"
)

func main() {
    // .env is optional; deployments set real environment variables.
    _ = godotenv.Load()

    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    // Redis is advisory (rate limiting, agent heartbeats); nil means degrade.
    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Printf("redis unavailable; rate limiting and agent telemetry disabled")
    }

    lockRepo := repository.NewRegisterLockRepo(db)
    registerRepo := repository.NewRegisterRepo(db)
    employeeRepo := repository.NewEmployeeRepo(db)
    shiftRepo := repository.NewShiftRepo(db)
    sessionRepo := repository.NewRegisterSessionRepo(db)
    intentRepo := repository.NewPaymentIntentRepo(db)
    saleRepo := repository.NewSaleRepo(db)
    auditRepo := repository.NewAuditLogRepo(db)
    heartbeatRepo := repository.NewAgentHeartbeatRepo(rdb)

    audit := service.NewAuditRecorder(auditRepo)
    locks := service.NewLockManager(lockRepo, registerRepo, audit,
        time.Duration(cfg.LockTTLMin)*time.Minute)
    sessions := service.NewSessionManager(sessionRepo, shiftRepo, registerRepo, audit,
        cfg.VarianceToleranceCents)
    orchestrator := service.NewOrchestrator(intentRepo, saleRepo, sessionRepo, shiftRepo,
        heartbeatRepo, audit, cfg.AmountToleranceCents)

    e := echo.New()
    e.HideBanner = true

    rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
    router.Register(e, router.Handlers{
        Auth:     handler.NewAuthHandler(employeeRepo, cfg),
        Register: handler.NewRegisterHandler(locks, sessions),
        Payment:  handler.NewPaymentHandler(orchestrator),
        Agent:    handler.NewAgentHandler(orchestrator),
        Admin: handler.NewAdminHandler(locks, sessions, orchestrator, auditRepo,
            time.Duration(cfg.HeartbeatFreshMin)*time.Minute),
    }, cfg.JWTSecret, cfg.AgentAPIKey, rateLimit)

    // The sales-trail consumer runs for the life of the process and survives
    // broker restarts on its own.
    go func() {
        if err := queue.StartSalesConsumer(); err != nil {
            log.Printf("sales-consumer stopped: %v", err)
        }
    }()

    // Expired lock rows are ignored by every read; the sweeper just keeps the
    // table from accumulating them.
    go func() {
        ticker := time.NewTicker(time.Duration(cfg.LockTTLMin) * time.Minute)
        defer ticker.Stop()
        for range ticker.C {
            if n, err := lockRepo.SweepExpired(context.Background()); err != nil {
                log.Printf("lock sweep: %v", err)
            } else if n > 0 {
                log.Printf("lock sweep: removed %d expired locks", n)
            }
        }
    }()

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)
    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
