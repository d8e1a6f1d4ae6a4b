// Command createadmin seeds an administrator account so staff can log
// in to the booking surface.  Usage:
//
//	createadmin -email admin@example.com -password secret
package main

import (
    "context"
    "flag"
    "log"
    "time"

    "github.com/joho/godotenv"

    "github.com/happyhu/event-booking/internal/config"
    "github.com/happyhu/event-booking/internal/database"
    "github.com/happyhu/event-booking/internal/repository"
    "github.com/happyhu/event-booking/internal/utils"
)

func main() {
    email := flag.String("email", "", "admin email address")
    password := flag.String("password", "", "admin password")
    flag.Parse()
    if *email == "" || *password == "" {
        log.Fatal("both -email and -password are required")
    }

    _ = godotenv.Load()
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    hash, err := utils.HashPassword(*password, cfg.BcryptCost)
    if err != nil {
        log.Fatalf("hash password: %v", err)
    }

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()

    u := &repository.User{Email: *email, PasswordHash: hash, Role: "ADMIN"}
    if err := repository.NewUserRepo(db).Create(ctx, u); err != nil {
        log.Fatalf("create admin: %v", err)
    }
    log.Printf("admin user %d created (%s)", u.ID, u.Email)
}
