package main

import (
    "log"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/happyhu/event-booking/internal/config"
    "github.com/happyhu/event-booking/internal/database"
    "github.com/happyhu/event-booking/internal/engine"
    "github.com/happyhu/event-booking/internal/handler"
    "github.com/happyhu/event-booking/internal/hoursindex"
    "github.com/happyhu/event-booking/internal/payment"
    "github.com/happyhu/event-booking/internal/queue"
    "github.com/happyhu/event-booking/internal/repository"
    "github.com/happyhu/event-booking/internal/router"
    queue_publisher "github.com/happyhu/event-booking/internal/service"
    "github.com/happyhu/event-booking/internal/staged"
)

func main() {
    // .env is optional; real deployments set the environment directly.
    _ = godotenv.Load()
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    rdb, err := config.NewRedisClient()
    if err != nil {
        log.Fatalf("redis: %v", err)
    }
    defer rdb.Close()

    index, err := hoursindex.New(cfg.HoursIndexPath)
    if err != nil {
        log.Fatalf("hours index: %v", err)
    }

    bookingRepo := repository.NewBookingRepo(db)
    productRepo := repository.NewProductRepo(db)
    userRepo := repository.NewUserRepo(db)
    stagedStore := staged.New(rdb, time.Duration(cfg.StageTTLMin)*time.Minute)
    provider := payment.NewClient(cfg.PaymentBaseURL, cfg.PaymentAPIKey)
    publisher := queue_publisher.New()

    eng := engine.New(bookingRepo, productRepo, index, stagedStore, provider, publisher, cfg.PaymentReturn)

    // Notification consumer runs for the life of the process and
    // reconnects on broker failures.
    go func() {
        if err := queue.StartNotificationConsumer(); err != nil {
            log.Printf("notification consumer stopped: %v", err)
        }
    }()

    e := echo.New()
    router.RegisterRoutes(e, handler.NewBookingHandler(eng, bookingRepo))
    router.RegisterAdmin(e,
        handler.NewAuthHandler(userRepo, cfg.JWTSecret, cfg.AccessTTLMin),
        handler.NewAdminBookingHandler(eng, bookingRepo),
        cfg.JWTSecret,
    )

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)
    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
